// Package session runs voice call sessions: it provisions a room, drives the
// media pipeline through the call, answers tool calls and hands the
// transcript off when the caller leaves.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ashureev/voicecall/internal/apperr"
	"github.com/ashureev/voicecall/internal/domain"
	"github.com/ashureev/voicecall/internal/metrics"
	"github.com/ashureev/voicecall/internal/pipeline"
	"github.com/ashureev/voicecall/internal/rooms"
	"github.com/ashureev/voicecall/internal/store"
	"github.com/ashureev/voicecall/internal/tools"
)

const (
	DefaultSettleDelay    = 500 * time.Millisecond
	DefaultForwardTimeout = 30 * time.Second
	DefaultBotName        = "Voice Bot"
	persistTimeout        = 5 * time.Second
)

// RoomProvisioner creates a room and an owner token.
type RoomProvisioner interface {
	Provision(ctx context.Context) (rooms.Room, error)
}

// Pipeline opens a media pipeline session for a room.
type Pipeline interface {
	Open(ctx context.Context, cfg pipeline.Configure) (pipeline.Conn, error)
}

// Summarizer receives the end-of-call transcript.
type Summarizer interface {
	Forward(ctx context.Context, conversation string) error
}

// GuardrailRenderer renders the operator guardrails for the system instruction.
type GuardrailRenderer interface {
	Render() string
}

// Deps are the collaborators a Manager drives.
type Deps struct {
	Rooms      RoomProvisioner
	Pipeline   Pipeline
	Tools      *tools.Dispatcher
	Guardrails GuardrailRenderer
	Summarizer Summarizer
	Repo       store.Repository
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Options tune session behaviour.
type Options struct {
	AgentName      string
	BotName        string
	BasePrompt     string
	SettleDelay    time.Duration
	ForwardTimeout time.Duration
	Timezone       string
	Model          pipeline.ModelSettings
	Now            func() time.Time
}

func (o *Options) setDefaults() {
	if o.AgentName == "" {
		o.AgentName = DefaultAgentName
	}
	if o.BotName == "" {
		o.BotName = DefaultBotName
	}
	if o.BasePrompt == "" {
		o.BasePrompt = DefaultBasePrompt(o.AgentName)
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.ForwardTimeout <= 0 {
		o.ForwardTimeout = DefaultForwardTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// StartResult is what the caller needs to join the room.
type StartResult struct {
	SessionID string `json:"session_id"`
	RoomURL   string `json:"room_url"`
	Token     string `json:"token"`
}

// Manager starts call sessions and tracks the ones that are running.
type Manager struct {
	deps      Deps
	opts      Options
	loc       *time.Location
	zoneLabel string
	logger    *slog.Logger

	rootCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	closed  bool
	running sync.WaitGroup
	tracker *tracker
}

// NewManager creates a Manager. Sessions run under an internal root context
// that Shutdown cancels.
func NewManager(deps Deps, opts Options) *Manager {
	opts.setDefaults()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	loc, label := LoadLocation(opts.Timezone)
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		deps:      deps,
		opts:      opts,
		loc:       loc,
		zoneLabel: label,
		logger:    deps.Logger,
		rootCtx:   ctx,
		cancel:    cancel,
		tracker:   newTracker(),
	}
}

// Start provisions a room and launches the session in the background. It
// returns as soon as the room is ready; the session is not awaited.
func (m *Manager) Start(ctx context.Context) (StartResult, error) {
	now := m.opts.Now()
	c := newCall(ulid.Make().String(), now)

	m.persist("CreateCall", c.id, func(ctx context.Context) error {
		return m.deps.Repo.CreateCall(ctx, &domain.CallSession{ID: c.id, State: domain.CallCreated, CreatedAt: now})
	})

	room, err := m.deps.Rooms.Provision(ctx)
	if err != nil {
		m.deps.Metrics.SessionFailed()
		m.persist("EndCall", c.id, func(ctx context.Context) error {
			return m.deps.Repo.EndCall(ctx, c.id, store.CallSummary{Error: err.Error()})
		})
		m.logger.Error("Failed to provision room", "session_id", c.id, "error", err)
		return StartResult{}, err
	}
	c.attachRoom(room)
	m.persist("AttachRoom", c.id, func(ctx context.Context) error {
		return m.deps.Repo.AttachRoom(ctx, c.id, room.Name, room.URL)
	})

	cfg := m.configure(c, room, now)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.persist("EndCall", c.id, func(ctx context.Context) error {
			return m.deps.Repo.EndCall(ctx, c.id, store.CallSummary{Error: "shutting down"})
		})
		return StartResult{}, apperr.NewUnavailable("session manager is shutting down", nil)
	}
	m.running.Add(1)
	m.mu.Unlock()

	m.tracker.register(c)
	m.deps.Metrics.SessionStarted()
	go m.run(m.rootCtx, c, cfg)

	m.logger.Info("Session started", "session_id", c.id, "room_url", room.URL)
	return StartResult{SessionID: c.id, RoomURL: room.URL, Token: room.Token}, nil
}

func (m *Manager) configure(c *call, room rooms.Room, now time.Time) pipeline.Configure {
	var rendered string
	if m.deps.Guardrails != nil {
		rendered = m.deps.Guardrails.Render()
	}
	instruction := SystemInstruction(m.opts.BasePrompt, DateTimeBlock(now, m.loc, m.zoneLabel), rendered)

	// The greeting opens the call context, so it is also the first turn of
	// the forwarded transcript.
	greeting := Greeting(m.opts.AgentName)
	c.transcript.Append(domain.RoleUser, greeting)

	var schemas []pipeline.ToolSchema
	if m.deps.Tools != nil {
		for _, def := range m.deps.Tools.Definitions() {
			schemas = append(schemas, pipeline.ToolSchema{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  tools.SchemaDocument(def),
			})
		}
	}

	return pipeline.Configure{
		SessionID:         c.id,
		RoomURL:           room.URL,
		Token:             room.Token,
		BotName:           m.opts.BotName,
		Model:             m.opts.Model,
		SystemInstruction: instruction,
		Tools:             schemas,
		Messages: []pipeline.Message{
			{Role: string(domain.RoleUser), Content: greeting},
		},
	}
}

// Active returns snapshots of the running sessions, oldest first.
func (m *Manager) Active() []domain.CallSession {
	return m.tracker.snapshots()
}

// Get returns the snapshot of a running session.
func (m *Manager) Get(id string) (domain.CallSession, bool) {
	c := m.tracker.get(id)
	if c == nil {
		return domain.CallSession{}, false
	}
	return c.snapshot(), true
}

// Shutdown stops accepting sessions, cancels the running ones and waits for
// them to finish or for ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for sessions: %w", ctx.Err())
	}
}

// persist runs a call log write detached from the caller's context. Failures
// are logged; the call log never fails a session.
func (m *Manager) persist(op, id string, fn func(ctx context.Context) error) {
	if m.deps.Repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := fn(ctx); err != nil && !errors.Is(err, store.ErrCallNotFound) {
		m.logger.Warn("Failed to update call log", "op", op, "session_id", id, "error", err)
	}
}
