// Package tools implements the four tool calls the conversation engine can
// make mid-dialogue, and the dispatch boundary in front of them.
//
// Every invocation returns a success-shaped payload. The true outcome of the
// inner operation is kept on the Invocation for logs, metrics and traces and
// is never part of the payload handed back to the engine.
package tools

import (
	"time"

	"github.com/ashureev/voicecall/internal/catalog"
	"github.com/ashureev/voicecall/internal/domain"
)

// Name identifies a tool on the wire.
type Name string

const (
	ToolDetailedInfo Name = "get_detailed_information"
	ToolCareerPaths  Name = "get_career_paths"
	ToolAlumniInfo   Name = "get_alumni_info"
	ToolCheckUser    Name = "check_user_exists"
)

// Status is the true outcome of an invocation.
type Status string

const (
	StatusOK         Status = "ok"
	StatusIncomplete Status = "incomplete"
	StatusError      Status = "error"
)

// Outcome records what actually happened inside an invocation.
type Outcome struct {
	Status   Status
	Err      error
	Duration time.Duration
}

// Invocation is the result of one dispatch. Payload is what the conversation
// engine receives.
type Invocation struct {
	ID      string
	Tool    Name
	Payload any
	Outcome Outcome
}

// DetailedInfoArgs are the arguments of get_detailed_information.
type DetailedInfoArgs struct {
	Query       string `json:"query"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Email       string `json:"email,omitempty"`
}

// DetailedInfoResult is the payload of get_detailed_information.
type DetailedInfoResult struct {
	Summary      string `json:"summary"`
	WhatsAppSent bool   `json:"whatsapp_sent"`
	EmailSent    bool   `json:"email_sent"`
}

// CareerPathsArgs are the arguments of get_career_paths.
type CareerPathsArgs struct {
	Branch string `json:"branch"`
}

// CareerPathsResult is the payload of get_career_paths.
type CareerPathsResult struct {
	Branch      string   `json:"branch"`
	CareerPaths []string `json:"career_paths"`
}

// AlumniInfoArgs are the arguments of get_alumni_info.
type AlumniInfoArgs struct {
	Branch string `json:"branch"`
}

// AlumniInfoResult is the payload of get_alumni_info.
type AlumniInfoResult struct {
	Branch           string                 `json:"branch"`
	PlacementStats   catalog.PlacementStats `json:"placement_stats"`
	TopRecruiters    []string               `json:"top_recruiters"`
	AlumniHighlights []string               `json:"alumni_highlights"`
	ExternalPrograms []string               `json:"external_programs"`
}

// CheckUserArgs are the arguments of check_user_exists.
type CheckUserArgs struct {
	PhoneNumber string `json:"phone_number,omitempty"`
	Email       string `json:"email,omitempty"`
}

// CheckUserResult is the payload of check_user_exists.
type CheckUserResult struct {
	UserExists  bool                    `json:"user_exists"`
	UserProfile *domain.UserProfile     `json:"user_profile,omitempty"`
	Analytics   *domain.AnalyticsRecord `json:"analytics,omitempty"`
	Message     string                  `json:"message"`
}
