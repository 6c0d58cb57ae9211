package domain

// ContactInfo is caller contact data as received from a tool call.
type ContactInfo struct {
	RawPhone string
	RawEmail string
}

// NormalizedContact is ContactInfo after canonicalization. Empty fields were not supplied.
type NormalizedContact struct {
	Phone10  string
	Dialable string
	Email    string
}

// HasPhone reports whether a phone number was supplied.
func (c NormalizedContact) HasPhone() bool { return c.Phone10 != "" }

// HasEmail reports whether an email address was supplied.
func (c NormalizedContact) HasEmail() bool { return c.Email != "" }

// IsEmpty reports whether neither contact method was supplied.
func (c NormalizedContact) IsEmpty() bool { return !c.HasPhone() && !c.HasEmail() }
