// Package pipeline bridges a call session to the external media pipeline
// that runs audio transport, transcription and the speech-to-speech model.
//
// Frames are JSON objects with a "type" field, exchanged over a websocket.
package pipeline

import "encoding/json"

// EventType identifies a frame sent by the pipeline.
type EventType string

const (
	EventParticipantJoined      EventType = "participant_joined"
	EventFirstParticipantJoined EventType = "first_participant_joined"
	EventParticipantLeft        EventType = "participant_left"
	EventMessage                EventType = "message"
	EventToolCall               EventType = "tool_call"
	EventDone                   EventType = "pipeline_done"
	EventError                  EventType = "error"
)

// Event is a frame from the pipeline. Only the fields relevant to Type are set.
type Event struct {
	Type          EventType       `json:"type"`
	ParticipantID string          `json:"participant_id,omitempty"`
	Role          string          `json:"role,omitempty"`
	Content       string          `json:"content,omitempty"`
	CallID        string          `json:"call_id,omitempty"`
	Name          string          `json:"name,omitempty"`
	Arguments     json.RawMessage `json:"arguments,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// CommandType identifies a frame sent to the pipeline.
type CommandType string

const (
	CommandConfigure            CommandType = "configure"
	CommandCaptureTranscription CommandType = "capture_transcription"
	CommandRunLLM               CommandType = "run_llm"
	CommandToolResult           CommandType = "tool_result"
	CommandEnd                  CommandType = "end"
)

// Command is a frame to the pipeline.
type Command struct {
	Type          CommandType `json:"type"`
	Configure     *Configure  `json:"configure,omitempty"`
	ParticipantID string      `json:"participant_id,omitempty"`
	CallID        string      `json:"call_id,omitempty"`
	Result        any         `json:"result,omitempty"`
}

// ModelSettings are forwarded unchanged to the speech-to-speech model.
type ModelSettings struct {
	ModelID     string  `json:"model_id"`
	VoiceID     string  `json:"voice_id"`
	Temperature float64 `json:"temperature"`
	ProjectID   string  `json:"project_id,omitempty"`
	Location    string  `json:"location,omitempty"`
}

// ToolSchema advertises one callable tool.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Message is one entry of the initial conversation context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Configure starts the pipeline for one room.
type Configure struct {
	SessionID         string        `json:"session_id"`
	RoomURL           string        `json:"room_url"`
	Token             string        `json:"token"`
	BotName           string        `json:"bot_name"`
	Model             ModelSettings `json:"model"`
	SystemInstruction string        `json:"system_instruction"`
	Tools             []ToolSchema  `json:"tools"`
	Messages          []Message     `json:"messages"`
}

// CaptureTranscription asks the pipeline to transcribe a participant.
func CaptureTranscription(participantID string) Command {
	return Command{Type: CommandCaptureTranscription, ParticipantID: participantID}
}

// RunLLM asks the model to take its turn.
func RunLLM() Command {
	return Command{Type: CommandRunLLM}
}

// ToolResult answers a tool_call event.
func ToolResult(callID string, result any) Command {
	return Command{Type: CommandToolResult, CallID: callID, Result: result}
}

// End tells the pipeline to finish.
func End() Command {
	return Command{Type: CommandEnd}
}
