package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/voicecall/internal/apperr"
	"github.com/ashureev/voicecall/internal/catalog"
	"github.com/ashureev/voicecall/internal/contact"
	"github.com/ashureev/voicecall/internal/directory"
	"github.com/ashureev/voicecall/internal/domain"
	"github.com/ashureev/voicecall/internal/upstream"
)

const (
	msgNeedContact       = "I need either your phone number or email address to send you the information. Could you please provide one of them?"
	msgDeliveryTrouble   = "I'm having trouble processing your request right now. Please try again in a moment."
	msgDeliveryUnknown   = "Unable to process request at this moment"
	msgDeliveryBothSkip  = "I processed your request, but no contact method was available to send the information. Please provide your phone number or email."
	msgDeliveryPreparing = "I've processed your request. The information is being prepared and sent."

	msgCheckNeedContact = "Either phone number or email must be provided to check user existence."
	msgCheckNotFound    = "User not found in database. Proceed with standard counseling flow."
	msgCheckError       = "Error checking user database. Proceeding with standard counseling flow."
	msgCheckFoundFmt    = "Found existing user profile for %s. You already have their information including course interest, city, budget, hostel preference, and intent level. Use this information to have a personalized conversation without asking the standard counseling questions."

	msgNoCareerPaths = "Please contact the counseling office for specific career path information for this branch."
	msgNoAlumni      = "Please contact the counseling office for specific alumni information for this branch."
	notAvailable     = "N/A"
)

var errNoContact = apperr.NewValidation("at least one of phone_number or email is required")

// Delivery sends detailed information to a caller.
type Delivery interface {
	Send(ctx context.Context, req upstream.DeliveryRequest) (*upstream.DeliveryResponse, error)
}

// Deps are the collaborators the tool handlers call into.
type Deps struct {
	Delivery  Delivery
	Directory directory.Resolver
	Catalog   *catalog.Catalog
}

type handlers struct {
	deps Deps
}

func newHandlers(deps Deps) *handlers {
	if deps.Catalog == nil {
		deps.Catalog = catalog.Default()
	}
	return &handlers{deps: deps}
}

func (h *handlers) requestDetailedInfo(ctx context.Context, args DetailedInfoArgs) (DetailedInfoResult, error) {
	c := contact.Normalize(domain.ContactInfo{RawPhone: args.PhoneNumber, RawEmail: args.Email})
	if c.IsEmpty() {
		return DetailedInfoResult{}, errNoContact
	}
	if h.deps.Delivery == nil {
		return DetailedInfoResult{}, apperr.NewUnavailable("delivery service not configured", nil)
	}

	resp, err := h.deps.Delivery.Send(ctx, upstream.DeliveryRequest{
		Query:  args.Query,
		Number: c.Dialable,
		Email:  c.Email,
	})
	if err != nil {
		return DetailedInfoResult{}, err
	}
	if !resp.Succeeded() {
		msg := resp.Error
		if msg == "" {
			msg = msgDeliveryUnknown
		}
		return DetailedInfoResult{}, apperr.NewUpstream(msg, nil)
	}

	out := DetailedInfoResult{
		WhatsAppSent: resp.WhatsAppSent(),
		EmailSent:    resp.EmailSent(),
	}
	out.Summary = joinSummary(resp.Summary, deliveryMessage(resp))
	return out, nil
}

func deliveryMessage(resp *upstream.DeliveryResponse) string {
	var sent []string
	if resp.WhatsAppSent() {
		sent = append(sent, "WhatsApp")
	}
	if resp.EmailSent() {
		sent = append(sent, "email")
	}
	switch {
	case len(sent) > 0:
		return "Information has been successfully sent via " + strings.Join(sent, ", ") + "."
	case resp.BothSkipped():
		return msgDeliveryBothSkip
	default:
		return msgDeliveryPreparing
	}
}

func joinSummary(summary, msg string) string {
	if summary == "" {
		return msg
	}
	return summary + "\n\n" + msg
}

func detailedInfoFallback(_ DetailedInfoArgs, err error) DetailedInfoResult {
	if errors.Is(err, errNoContact) {
		return DetailedInfoResult{Summary: msgNeedContact}
	}
	return DetailedInfoResult{Summary: msgDeliveryTrouble}
}

func (h *handlers) careerPaths(_ context.Context, args CareerPathsArgs) (CareerPathsResult, error) {
	b, ok := h.deps.Catalog.Match(args.Branch)
	if !ok {
		return careerPathsFallback(args, nil), nil
	}
	return CareerPathsResult{Branch: args.Branch, CareerPaths: b.CareerPaths}, nil
}

func careerPathsFallback(args CareerPathsArgs, _ error) CareerPathsResult {
	return CareerPathsResult{Branch: args.Branch, CareerPaths: []string{msgNoCareerPaths}}
}

func (h *handlers) alumniInfo(_ context.Context, args AlumniInfoArgs) (AlumniInfoResult, error) {
	b, ok := h.deps.Catalog.Match(args.Branch)
	if !ok {
		return alumniInfoFallback(args, nil), nil
	}
	return AlumniInfoResult{
		Branch:           args.Branch,
		PlacementStats:   b.Alumni.PlacementStats,
		TopRecruiters:    nonNil(b.Alumni.TopRecruiters),
		AlumniHighlights: nonNil(b.Alumni.AlumniHighlights),
		ExternalPrograms: nonNil(b.Alumni.ExternalPrograms),
	}, nil
}

func alumniInfoFallback(args AlumniInfoArgs, _ error) AlumniInfoResult {
	return AlumniInfoResult{
		Branch: args.Branch,
		PlacementStats: catalog.PlacementStats{
			AveragePackage: notAvailable,
			HighestPackage: notAvailable,
			PlacementRate:  notAvailable,
		},
		TopRecruiters:    []string{},
		AlumniHighlights: []string{msgNoAlumni},
		ExternalPrograms: []string{},
	}
}

func (h *handlers) checkUser(ctx context.Context, args CheckUserArgs) (CheckUserResult, error) {
	c := contact.Normalize(domain.ContactInfo{RawPhone: args.PhoneNumber, RawEmail: args.Email})
	if c.IsEmpty() {
		return CheckUserResult{}, errNoContact
	}
	if h.deps.Directory == nil {
		return CheckUserResult{}, apperr.NewUnavailable("user directory not configured", nil)
	}

	rec, err := h.deps.Directory.Resolve(ctx, c)
	if apperr.Is(err, apperr.CodeNotFound) {
		return CheckUserResult{UserExists: false, Message: msgCheckNotFound}, nil
	}
	if err != nil {
		return CheckUserResult{}, err
	}

	profile := rec.Profile
	analytics := rec.Analytics
	return CheckUserResult{
		UserExists:  true,
		UserProfile: &profile,
		Analytics:   &analytics,
		Message:     fmt.Sprintf(msgCheckFoundFmt, profile.Name),
	}, nil
}

// checkUserFallback reports an unreachable or unconfigured directory as "not
// found" so the conversation continues with the standard flow. Only an
// unexpected fault gets the error message.
func checkUserFallback(_ CheckUserArgs, err error) CheckUserResult {
	switch {
	case errors.Is(err, errNoContact):
		return CheckUserResult{Message: msgCheckNeedContact}
	case apperr.Is(err, apperr.CodeUnavailable):
		return CheckUserResult{UserExists: false, Message: msgCheckNotFound}
	default:
		return CheckUserResult{Message: msgCheckError}
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
