package whatsapp

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/agenda-agent/pkg/logging"
)

// Transport is the subset of Client the dispatcher needs.
type Transport interface {
	SendText(ctx context.Context, inst Instance, phone, text string) error
	SendPresence(ctx context.Context, inst Instance, phone, presence string) error
}

// ChunkObserver receives one call per chunk with its send outcome.
type ChunkObserver func(status string)

// Dispatcher delivers a reply as paced, humanized chunks.
type Dispatcher struct {
	transport Transport
	humanize  bool
	pacing    Pacing
	sleep     func(ctx context.Context, d time.Duration) error
	observe   ChunkObserver
	logger    *logging.Logger
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPacing overrides the default typing cadence.
func WithPacing(p Pacing) DispatcherOption {
	return func(d *Dispatcher) { d.pacing = p }
}

// WithSleep replaces the wall-clock wait, mainly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) DispatcherOption {
	return func(d *Dispatcher) {
		if fn != nil {
			d.sleep = fn
		}
	}
}

// WithChunkObserver reports per-chunk outcomes (used for metrics).
func WithChunkObserver(fn ChunkObserver) DispatcherOption {
	return func(d *Dispatcher) { d.observe = fn }
}

// NewDispatcher builds a dispatcher. When humanize is false the reply goes out
// as a single message with no presence signalling.
func NewDispatcher(transport Transport, humanize bool, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if transport == nil {
		panic("whatsapp: transport required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		transport: transport,
		humanize:  humanize,
		pacing:    DefaultPacing(),
		sleep:     sleepContext,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends reply to phone and returns the chunks that were delivered.
// A failed chunk stops delivery; presence failures are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, inst Instance, phone, reply string) ([]string, error) {
	if !d.humanize {
		if err := d.transport.SendText(ctx, inst, phone, reply); err != nil {
			d.record("failed")
			return nil, fmt.Errorf("whatsapp: send reply: %w", err)
		}
		d.record("sent")
		return []string{reply}, nil
	}

	chunks := SplitReply(reply)
	sent := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		d.presence(ctx, inst, phone, PresenceComposing)
		delay := d.pacing.TypingDelay(chunk)
		if i == 0 {
			delay = d.pacing.FirstDelay()
		}
		if err := d.sleep(ctx, delay); err != nil {
			return sent, err
		}
		if err := d.transport.SendText(ctx, inst, phone, chunk); err != nil {
			d.record("failed")
			return sent, fmt.Errorf("whatsapp: send chunk %d/%d: %w", i+1, len(chunks), err)
		}
		d.record("sent")
		sent = append(sent, chunk)
	}
	d.presence(ctx, inst, phone, PresenceAvailable)
	return sent, nil
}

func (d *Dispatcher) presence(ctx context.Context, inst Instance, phone, state string) {
	if err := d.transport.SendPresence(ctx, inst, phone, state); err != nil {
		d.logger.Debug("presence signal failed", "presence", state, "error", err)
	}
}

func (d *Dispatcher) record(status string) {
	if d.observe != nil {
		d.observe(status)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
