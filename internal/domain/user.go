// Package domain contains core domain types for the voicecall service.
package domain

// UserProfile is the caller profile held by the directory store.
type UserProfile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// AnalyticsRecord holds the counselling analytics joined to a profile.
// Fields are omitted when empty so a missing record projects to {}.
type AnalyticsRecord struct {
	CourseInterest string `json:"course_interest,omitempty"`
	City           string `json:"city,omitempty"`
	Budget         string `json:"budget,omitempty"`
	HostelNeeded   string `json:"hostel_needed,omitempty"`
	IntentLevel    string `json:"intent_level,omitempty"`
}

// IsEmpty reports whether no analytics field is set.
func (a AnalyticsRecord) IsEmpty() bool {
	return a == AnalyticsRecord{}
}

// UserRecord is a resolved profile together with its analytics, if any.
type UserRecord struct {
	ID        string
	Profile   UserProfile
	Analytics AnalyticsRecord
}
