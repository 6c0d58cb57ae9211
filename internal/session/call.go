package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/voicecall/internal/domain"
	"github.com/ashureev/voicecall/internal/pipeline"
	"github.com/ashureev/voicecall/internal/rooms"
	"github.com/ashureev/voicecall/internal/store"
)

// call is the state owned by one running session.
type call struct {
	id        string
	createdAt time.Time

	mu          sync.Mutex
	room        rooms.Room
	state       domain.CallState
	captured    map[string]struct{}
	firstJoined bool
	forwarded   bool
	updatedAt   time.Time
	transcript  Transcript
}

func newCall(id string, now time.Time) *call {
	return &call{
		id:        id,
		createdAt: now,
		state:     domain.CallCreated,
		captured:  make(map[string]struct{}),
		updatedAt: now,
	}
}

func (c *call) attachRoom(room rooms.Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = room
	c.state = domain.CallRoomProvisioned
	c.updatedAt = time.Now()
}

func (c *call) setState(state domain.CallState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.updatedAt = time.Now()
}

// markCaptured records a participant and reports whether it was new.
func (c *call) markCaptured(participantID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.captured[participantID]; ok {
		return false
	}
	c.captured[participantID] = struct{}{}
	return true
}

// claimFirstJoin reports whether this is the first first-participant event.
func (c *call) claimFirstJoin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.firstJoined {
		return false
	}
	c.firstJoined = true
	return true
}

func (c *call) summary(runErr error) store.CallSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := store.CallSummary{
		Participants:        len(c.captured),
		TranscriptTurns:     len(c.transcript.Spoken()),
		TranscriptForwarded: c.forwarded,
	}
	if runErr != nil {
		s.Error = runErr.Error()
	}
	return s
}

func (c *call) snapshot() domain.CallSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CallSession{
		ID:                  c.id,
		RoomName:            c.room.Name,
		RoomURL:             c.room.URL,
		State:               c.state,
		Participants:        len(c.captured),
		TranscriptTurns:     len(c.transcript.Spoken()),
		TranscriptForwarded: c.forwarded,
		CreatedAt:           c.createdAt,
		UpdatedAt:           c.updatedAt,
	}
}

// run drives one session until the caller leaves or the pipeline ends. Every
// exit path closes the pipeline and records the call as ended.
func (m *Manager) run(ctx context.Context, c *call, cfg pipeline.Configure) {
	ctx, cancel := context.WithCancel(ctx)
	logger := m.logger.With("session_id", c.id)

	var (
		conn    pipeline.Conn
		runErr  error
		toolsWG sync.WaitGroup
	)

	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("session panic: %v", r)
			logger.Error("Session panicked", "panic", r)
		}

		cancel()
		toolsWG.Wait()
		if conn != nil {
			if err := conn.Close(); err != nil {
				logger.Debug("Failed to close pipeline", "error", err)
			}
		}

		c.setState(domain.CallEnded)
		m.persist("EndCall", c.id, func(ctx context.Context) error {
			return m.deps.Repo.EndCall(ctx, c.id, c.summary(runErr))
		})

		result := "completed"
		if runErr != nil {
			result = "failed"
		}
		m.deps.Metrics.SessionEnded(result)
		m.tracker.unregister(c)
		m.running.Done()
		logger.Info("Session ended", "result", result)
	}()

	var err error
	conn, err = m.deps.Pipeline.Open(ctx, cfg)
	if err != nil {
		runErr = fmt.Errorf("open pipeline: %w", err)
		logger.Error("Failed to open pipeline", "error", err)
		return
	}
	c.setState(domain.CallRunning)
	m.persist("UpdateCallState", c.id, func(ctx context.Context) error {
		return m.deps.Repo.UpdateCallState(ctx, c.id, domain.CallRunning)
	})

	runErr = m.loop(ctx, c, conn, &toolsWG)
}

func (m *Manager) loop(ctx context.Context, c *call, conn pipeline.Conn, toolsWG *sync.WaitGroup) error {
	logger := m.logger.With("session_id", c.id)
	var lastErr error

	for {
		var ev pipeline.Event
		var ok bool
		select {
		case ev, ok = <-conn.Events():
			if !ok {
				logger.Info("Pipeline event stream closed")
				return lastErr
			}
		case <-ctx.Done():
			return ctx.Err()
		}

		switch ev.Type {
		case pipeline.EventFirstParticipantJoined, pipeline.EventParticipantJoined:
			if err := m.onJoin(ctx, c, conn, ev); err != nil {
				return err
			}

		case pipeline.EventMessage:
			c.transcript.Append(domain.Role(ev.Role), ev.Content)

		case pipeline.EventToolCall:
			toolsWG.Add(1)
			go func(ev pipeline.Event) {
				defer toolsWG.Done()
				m.answerToolCall(ctx, c, conn, ev)
			}(ev)

		case pipeline.EventParticipantLeft:
			logger.Info("Participant left", "participant_id", ev.ParticipantID)
			m.handOff(ctx, c)
			if err := conn.Send(ctx, pipeline.End()); err != nil {
				logger.Warn("Failed to send end", "error", err)
			}
			return lastErr

		case pipeline.EventDone:
			logger.Info("Pipeline completed")
			return lastErr

		case pipeline.EventError:
			lastErr = errors.New("pipeline: " + ev.Error)
			logger.Warn("Pipeline reported error", "error", ev.Error)

		default:
			logger.Debug("Ignoring pipeline event", "type", ev.Type)
		}
	}
}

// onJoin starts transcript capture once per participant. For the first
// participant it waits for audio to settle and then asks the model to speak.
func (m *Manager) onJoin(ctx context.Context, c *call, conn pipeline.Conn, ev pipeline.Event) error {
	logger := m.logger.With("session_id", c.id, "participant_id", ev.ParticipantID)
	logger.Info("Participant joined", "first", ev.Type == pipeline.EventFirstParticipantJoined)

	if c.markCaptured(ev.ParticipantID) {
		if err := conn.Send(ctx, pipeline.CaptureTranscription(ev.ParticipantID)); err != nil {
			return fmt.Errorf("capture transcription: %w", err)
		}
	}
	c.setState(domain.CallParticipantJoined)
	m.persist("UpdateCallState", c.id, func(ctx context.Context) error {
		return m.deps.Repo.UpdateCallState(ctx, c.id, domain.CallParticipantJoined)
	})

	if ev.Type != pipeline.EventFirstParticipantJoined || !c.claimFirstJoin() {
		return nil
	}

	if m.opts.SettleDelay > 0 {
		timer := time.NewTimer(m.opts.SettleDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	if err := conn.Send(ctx, pipeline.RunLLM()); err != nil {
		logger.Error("Error sending greeting", "error", err)
		return nil
	}
	logger.Info("Initial greeting triggered")
	return nil
}

func (m *Manager) answerToolCall(ctx context.Context, c *call, conn pipeline.Conn, ev pipeline.Event) {
	inv := m.deps.Tools.Dispatch(ctx, ev.Name, ev.Arguments)
	if err := conn.Send(ctx, pipeline.ToolResult(ev.CallID, inv.Payload)); err != nil {
		m.logger.Warn("Failed to return tool result",
			"session_id", c.id,
			"call_id", ev.CallID,
			"tool", ev.Name,
			"error", err)
	}
}

// handOff forwards the transcript to the summarizer when there is one.
// Failures are logged and never block teardown.
func (m *Manager) handOff(ctx context.Context, c *call) {
	logger := m.logger.With("session_id", c.id)
	text := c.transcript.Render(m.opts.AgentName)
	if strings.TrimSpace(text) == "" {
		logger.Warn("No conversation history to forward")
		m.deps.Metrics.RecordTranscriptForward("skipped")
		return
	}
	if m.deps.Summarizer == nil {
		m.deps.Metrics.RecordTranscriptForward("skipped")
		return
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.ForwardTimeout)
	defer cancel()

	turns := len(c.transcript.Spoken())
	logger.Info("Forwarding conversation history", "chars", len(text), "turns", turns)
	if err := m.deps.Summarizer.Forward(fctx, text); err != nil {
		logger.Error("Failed to forward conversation history", "error", err)
		m.deps.Metrics.RecordTranscriptForward("failed")
		return
	}

	c.mu.Lock()
	c.forwarded = true
	c.mu.Unlock()
	m.deps.Metrics.RecordTranscriptForward("ok")
	logger.Info("Conversation history forwarded")
}
