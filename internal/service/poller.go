package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	domainauth "github.com/target/esg-checklist-ui/internal/domain/auth"
	"github.com/target/esg-checklist-ui/internal/ports"
)

const (
	defaultPollInterval    = 5 * time.Second
	defaultPollMaxAttempts = 50

	// MsgPollingFailed is shown when a failed poll carries no backend message.
	MsgPollingFailed = "Polling request failed."
)

// ErrPollingTimeout is recorded when the attempt limit is reached before the
// stop condition matched.
var ErrPollingTimeout = errors.New("polling timed out")

// StopCondition inspects a decoded response and reports whether polling is done.
type StopCondition func(data any) bool

// JMESPathCondition compiles expr into a StopCondition. The condition matches
// when the expression evaluates to a truthy JMESPath value.
func JMESPathCondition(expr string) (StopCondition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("stop condition expression is empty")
	}
	compiled, err := jmespath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile stop condition: %w", err)
	}
	return func(data any) bool {
		v, err := compiled.Search(data)
		if err != nil {
			return false
		}
		return truthy(v)
	}, nil
}

// truthy applies JMESPath truth rules: false, null and empty values are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	Client ports.ResourceClient
	// Token supplies the bearer token for each request.
	Token func(ctx context.Context) string
	Path  string

	Interval    time.Duration
	MaxAttempts int
	StopWhen    StopCondition
	// OnResult receives every decoded response, in order.
	OnResult func(data any)
	Logger   *slog.Logger
}

// Poller repeatedly issues an authenticated GET until a stop condition
// matches, the attempt limit is reached, a request fails, or it is stopped.
type Poller struct {
	client      ports.ResourceClient
	token       func(ctx context.Context) string
	path        string
	interval    time.Duration
	maxAttempts int
	stopWhen    StopCondition
	onResult    func(data any)
	logger      *slog.Logger

	mu       sync.Mutex
	run      *pollRun
	lastDone chan struct{}
	attempts int
	last     any
	err      error
}

// pollRun identifies one Start..stop cycle so a stale loop cannot mutate a newer run.
type pollRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller constructs a Poller.
func NewPoller(opts PollerOptions) (*Poller, error) {
	if opts.Client == nil {
		return nil, errors.New("resource client is required")
	}
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("poll path is required")
	}
	p := &Poller{
		client:      opts.Client,
		token:       opts.Token,
		path:        opts.Path,
		interval:    opts.Interval,
		maxAttempts: opts.MaxAttempts,
		stopWhen:    opts.StopWhen,
		onResult:    opts.OnResult,
		logger:      opts.Logger,
	}
	if p.interval <= 0 {
		p.interval = defaultPollInterval
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = defaultPollMaxAttempts
	}
	if p.token == nil {
		p.token = func(context.Context) string { return "" }
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// Start begins polling: one request immediately, then one per interval. It
// returns false without doing anything when already polling. Cancelling ctx
// stops polling unconditionally.
func (p *Poller) Start(ctx context.Context) bool {
	p.mu.Lock()
	if p.run != nil {
		p.mu.Unlock()
		return false
	}
	rctx, cancel := context.WithCancel(ctx)
	run := &pollRun{cancel: cancel, done: make(chan struct{})}
	p.run = run
	p.lastDone = run.done
	p.attempts = 0
	p.err = nil
	p.mu.Unlock()

	go p.loop(rctx, run)
	return true
}

// Stop halts polling and resets the attempt counter. Safe to call repeatedly.
func (p *Poller) Stop() {
	p.mu.Lock()
	run := p.run
	p.run = nil
	p.attempts = 0
	p.mu.Unlock()
	if run != nil {
		run.cancel()
	}
}

// Wait blocks until the most recently started run has exited.
func (p *Poller) Wait() {
	p.mu.Lock()
	done := p.lastDone
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// IsPolling reports whether a run is active.
func (p *Poller) IsPolling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run != nil
}

// Attempts returns the number of requests issued by the current or last run.
func (p *Poller) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Last returns the most recent decoded response.
func (p *Poller) Last() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Err returns the error that ended the last run, if any.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// ErrorMessage returns the user-facing text for Err, or "" when there is none.
func (p *Poller) ErrorMessage() string {
	err := p.Err()
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPollingTimeout):
		return "Polling timed out before the operation finished."
	default:
		return domainauth.UserMessage(err, MsgPollingFailed)
	}
}

func (p *Poller) loop(ctx context.Context, run *pollRun) {
	defer close(run.done)
	defer run.cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if !p.poll(ctx, run) {
			return
		}
		select {
		case <-ctx.Done():
			p.finish(run, nil)
			return
		case <-ticker.C:
		}
	}
}

// poll issues one request and reports whether the loop should continue.
func (p *Poller) poll(ctx context.Context, run *pollRun) bool {
	if ctx.Err() != nil {
		p.finish(run, nil)
		return false
	}
	p.mu.Lock()
	if p.run != run {
		p.mu.Unlock()
		return false
	}
	p.attempts++
	attempt := p.attempts
	p.mu.Unlock()

	var data any
	err := p.client.GetJSON(ctx, p.path, p.token(ctx), &data)
	if ctx.Err() != nil {
		// Torn down while the request was in flight; the result is unused.
		p.finish(run, nil)
		return false
	}
	if err != nil {
		p.logger.DebugContext(ctx, "poll request failed", "path", p.path, "attempt", attempt, "error", err)
		p.finish(run, err)
		return false
	}

	p.mu.Lock()
	if p.run != run {
		p.mu.Unlock()
		return false
	}
	p.last = data
	p.mu.Unlock()

	if p.onResult != nil {
		p.onResult(data)
	}
	if p.stopWhen != nil && p.stopWhen(data) {
		p.logger.DebugContext(ctx, "poll stop condition matched", "path", p.path, "attempt", attempt)
		p.finish(run, nil)
		return false
	}
	if attempt >= p.maxAttempts {
		p.logger.DebugContext(ctx, "poll attempts exhausted", "path", p.path, "attempts", attempt)
		p.finish(run, ErrPollingTimeout)
		return false
	}
	return true
}

// finish ends run if it is still current, keeping the attempt count for inspection.
func (p *Poller) finish(run *pollRun, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.run != run {
		return
	}
	p.run = nil
	p.err = err
}
