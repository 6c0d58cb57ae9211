package domain

import (
	"time"
)

// CallState is a step in the lifecycle of a call session.
type CallState string

const (
	CallCreated           CallState = "created"
	CallRoomProvisioned   CallState = "room_provisioned"
	CallRunning           CallState = "running"
	CallParticipantJoined CallState = "participant_joined"
	CallEnded             CallState = "ended"
)

// CallSession is the persisted record of one call.
type CallSession struct {
	ID                  string     `json:"id"`
	RoomName            string     `json:"room_name,omitempty"`
	RoomURL             string     `json:"room_url,omitempty"`
	State               CallState  `json:"state"`
	Participants        int        `json:"participants"`
	TranscriptTurns     int        `json:"transcript_turns"`
	TranscriptForwarded bool       `json:"transcript_forwarded"`
	Error               string     `json:"error,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	EndedAt             *time.Time `json:"ended_at,omitempty"`
}

// IsEnded reports whether the call has reached its terminal state.
func (c *CallSession) IsEnded() bool {
	return c.State == CallEnded
}

// Role is the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in the conversation context.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
