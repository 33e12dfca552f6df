package agent

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/conductorhq/conductor/internal/types"
)

const defaultModel = "claude-sonnet-4-5-20250929"

// personaPrompts maps each agent persona to its system prompt
var personaPrompts = map[string]string{
	string(types.PersonaDeveloper): `You are a senior software developer. Write clean, working code.
Prefer small, reviewable changes. Include the complete code for anything you modify.`,
	string(types.PersonaTester): `You are a software test engineer. Write thorough tests with clear
assertions. Cover edge cases and failure paths, not just the happy path.`,
	string(types.PersonaSecurity): `You are a security engineer. Audit for vulnerabilities, insecure
defaults, and exposed secrets. For each finding, state the risk and a concrete fix.`,
	string(types.PersonaDevOps): `You are a DevOps engineer. Handle deployment, infrastructure, and
CI configuration. Call out anything irreversible before doing it.`,
	string(types.PersonaProductOwner): `You are a product owner. Break work into small, independently
deliverable tasks with clear acceptance criteria.`,
	string(types.PersonaDocumentation): `You are a technical writer. Produce clear, structured
documentation with headers and runnable examples.`,
}

// AnthropicConfig configures the Anthropic-backed driver
type AnthropicConfig struct {
	// APIKey is read from ANTHROPIC_API_KEY when empty
	APIKey string
	// Model defaults to a recent Sonnet
	Model string
	// MaxTokens per response. Default: 8192
	MaxTokens int
	// RequestsPerMinute paces API calls. Default: 30
	RequestsPerMinute int
}

// DefaultAnthropicConfig returns a config with sensible defaults
func DefaultAnthropicConfig() *AnthropicConfig {
	return &AnthropicConfig{
		Model:             defaultModel,
		MaxTokens:         8192,
		RequestsPerMinute: 30,
	}
}

// AnthropicDriver executes agent sessions against the Anthropic Messages
// API with streaming. A weighted semaphore of one serialises sessions; a
// rate limiter paces dispatch underneath it.
type AnthropicDriver struct {
	client    *anthropic.Client
	model     string
	maxTokens int

	sem     *semaphore.Weighted
	limiter *rate.Limiter

	mu        sync.Mutex
	subs      map[int]chan Event
	nextSubID int
	current   string
	cancel    context.CancelFunc
	cancelled map[string]bool
}

// NewAnthropicDriver creates a driver backed by the Anthropic API
func NewAnthropicDriver(cfg *AnthropicConfig) (*AnthropicDriver, error) {
	if cfg == nil {
		cfg = DefaultAnthropicConfig()
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &AnthropicDriver{
		client:    &client,
		model:     model,
		maxTokens: maxTokens,
		sem:       semaphore.NewWeighted(1),
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		subs:      make(map[int]chan Event),
		cancelled: make(map[string]bool),
	}, nil
}

// Send dispatches a session. The call returns once the session slot is
// acquired; streaming happens on a background goroutine.
func (d *AnthropicDriver) Send(ctx context.Context, req Request) error {
	if req.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if req.Prompt == "" {
		return fmt.Errorf("prompt is required")
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire session slot: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	d.current = req.SessionID
	d.cancel = cancel
	delete(d.cancelled, req.SessionID)
	d.mu.Unlock()

	go func() {
		defer d.sem.Release(1)
		defer cancel()
		d.run(runCtx, req)
	}()

	return nil
}

func (d *AnthropicDriver) run(ctx context.Context, req Request) {
	if err := d.limiter.Wait(ctx); err != nil {
		d.finish(req.SessionID, Event{SessionID: req.SessionID, Kind: EventError, Err: err})
		return
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(d.model),
		MaxTokens: int64(d.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if system, ok := personaPrompts[req.Persona]; ok {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	stream := d.client.Messages.NewStreaming(ctx, params)

	var accumulated string
	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				accumulated += delta.Text
				d.publish(Event{SessionID: req.SessionID, Kind: EventStream, Content: delta.Text})
			}
		}
	}

	if err := stream.Err(); err != nil {
		d.finish(req.SessionID, Event{SessionID: req.SessionID, Kind: EventError, Err: fmt.Errorf("API call failed: %w", err)})
		return
	}

	d.finish(req.SessionID, Event{SessionID: req.SessionID, Kind: EventComplete, Content: accumulated})
}

// finish publishes the terminal event unless the session was cancelled
func (d *AnthropicDriver) finish(sessionID string, event Event) {
	d.mu.Lock()
	suppressed := d.cancelled[sessionID]
	delete(d.cancelled, sessionID)
	d.mu.Unlock()
	if suppressed {
		return
	}
	d.publish(event)
}

// Subscribe returns a channel of driver events and a cancel function
func (d *AnthropicDriver) Subscribe() (<-chan Event, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextSubID
	d.nextSubID++
	ch := make(chan Event, 64)
	d.subs[id] = ch

	return ch, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if sub, ok := d.subs[id]; ok {
			delete(d.subs, id)
			close(sub)
		}
	}
}

// CancelCurrent aborts the in-flight session, if any. The run goroutine
// suppresses its terminal event when its session is marked cancelled.
func (d *AnthropicDriver) CancelCurrent() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancelled[d.current] = true
		d.cancel()
		d.cancel = nil
	}
}

func (d *AnthropicDriver) publish(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range d.subs {
		select {
		case ch <- event:
		default:
			// Slow subscribers drop events rather than stall the stream
		}
	}
}
