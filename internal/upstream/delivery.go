package upstream

import (
	"context"
	"net/http"
	"time"
)

// DeliveryRequest asks the delivery service to answer a query and send the
// material to the caller. Number is the dialable form.
type DeliveryRequest struct {
	Query  string `json:"query"`
	Number string `json:"number,omitempty"`
	Email  string `json:"email,omitempty"`
}

// ChannelStatus is the delivery result on one channel.
type ChannelStatus struct {
	Status string `json:"status"`
}

// DeliveryResponse is the delivery service reply.
type DeliveryResponse struct {
	Status         string        `json:"status"`
	Summary        string        `json:"summary"`
	Error          string        `json:"error,omitempty"`
	WhatsAppStatus ChannelStatus `json:"whatsapp_status"`
	EmailStatus    ChannelStatus `json:"email_status"`
}

// Succeeded reports whether the service processed the query.
func (r *DeliveryResponse) Succeeded() bool { return r.Status == "success" }

// WhatsAppSent reports whether the WhatsApp message went out.
func (r *DeliveryResponse) WhatsAppSent() bool { return r.WhatsAppStatus.Status == "success" }

// EmailSent reports whether the email went out.
func (r *DeliveryResponse) EmailSent() bool { return r.EmailStatus.Status == "success" }

// BothSkipped reports whether neither channel had a usable address.
func (r *DeliveryResponse) BothSkipped() bool {
	return r.WhatsAppStatus.Status == "skipped" && r.EmailStatus.Status == "skipped"
}

// DeliveryClient calls the information-delivery service.
type DeliveryClient struct {
	url  string
	http *http.Client
}

// NewDeliveryClient creates a client with the given per-call timeout.
func NewDeliveryClient(url string, timeout time.Duration) *DeliveryClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &DeliveryClient{url: url, http: &http.Client{Timeout: timeout}}
}

// Send posts the request. A non-success reply status is returned as-is for the
// caller to interpret; transport and HTTP failures are UPSTREAM_FAILURE errors.
func (c *DeliveryClient) Send(ctx context.Context, req DeliveryRequest) (*DeliveryResponse, error) {
	var resp DeliveryResponse
	if err := postJSON(ctx, c.http, c.url, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
