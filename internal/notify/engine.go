// Package notify computes who should hear about a domain event and pushes
// the matching frame to every recipient that is online.
//
// Delivery is best-effort and at-most-once. Nothing here returns an error to
// the command that triggered the event; failures are logged and counted.
package notify

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vikaShenoy/Flockr-sub001/internal/presence"
)

// Presence is the read side of the presence registry used for delivery.
type Presence interface {
	ConnectionFor(userID uuid.UUID) (presence.Conn, bool)
}

// Recorder receives delivery counts. *metrics.Metrics satisfies it.
type Recorder interface {
	IncrementDelivered(frameType string)
	IncrementDropped(reason string)
	ObserveFanout(seconds float64)
}

// Options tunes an Engine. Zero values pick the defaults.
type Options struct {
	// Workers bounds concurrent sends for one event. Default 4.
	Workers int
	// QueueSize bounds events waiting for Run. Default 256.
	QueueSize int
	Logger    *slog.Logger
	Metrics   Recorder
}

type event struct {
	frame      Frame
	actor      uuid.UUID
	candidates []uuid.UUID
}

// Engine fans frames out to online recipients.
type Engine struct {
	presence Presence
	log      *slog.Logger
	metrics  Recorder
	workers  int
	queue    chan event
}

// New returns an Engine reading connections from p.
func New(p Presence, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = noopRecorder{}
	}
	return &Engine{
		presence: p,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		workers:  opts.Workers,
		queue:    make(chan event, opts.QueueSize),
	}
}

// Recipients returns candidates without actor and without duplicates, in
// first-seen order. Every frame type uses the same rule; the caller decides
// which users are candidates (trip members, co-members across trips, chat
// group members).
func Recipients(actor uuid.UUID, candidates []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(candidates))
	out := make([]uuid.UUID, 0, len(candidates))
	for _, id := range candidates {
		if id == actor || id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Deliver sends f to every online recipient and returns how many sends
// succeeded. Offline recipients, including ones that disconnect while the
// event is in flight, are skipped.
func (e *Engine) Deliver(ctx context.Context, f Frame, actor uuid.UUID, candidates []uuid.UUID) int {
	start := time.Now()
	defer func() { e.metrics.ObserveFanout(time.Since(start).Seconds()) }()

	recipients := Recipients(actor, candidates)
	if len(recipients) == 0 {
		return 0
	}
	payload, err := Encode(f)
	if err != nil {
		e.log.Warn("fan-out encode failed", "type", f.Type(), "error", err)
		e.metrics.IncrementDropped("encode")
		return 0
	}

	var delivered atomic.Int64
	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, id := range recipients {
		if ctx.Err() != nil {
			break
		}
		conn, ok := e.presence.ConnectionFor(id)
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := conn.Send(payload); err != nil {
				e.log.Debug("fan-out send failed", "type", f.Type(), "recipient", id, "error", err)
				e.metrics.IncrementDropped("send")
				return nil
			}
			e.metrics.IncrementDelivered(f.Type())
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(delivered.Load())
}

// Publish queues f for delivery by Run and returns immediately. When the
// queue is full the event is dropped and Publish returns false.
func (e *Engine) Publish(f Frame, actor uuid.UUID, candidates []uuid.UUID) bool {
	select {
	case e.queue <- event{frame: f, actor: actor, candidates: candidates}:
		return true
	default:
		e.log.Warn("fan-out queue full, dropping event", "type", f.Type(), "actor", actor)
		e.metrics.IncrementDropped("queue_full")
		return false
	}
}

// Run delivers queued events in publish order until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-e.queue:
			n := e.Deliver(ctx, ev.frame, ev.actor, ev.candidates)
			e.log.Debug("fan-out delivered", "type", ev.frame.Type(), "recipients", n)
		}
	}
}

type noopRecorder struct{}

func (noopRecorder) IncrementDelivered(string) {}
func (noopRecorder) IncrementDropped(string)   {}
func (noopRecorder) ObserveFanout(float64)     {}
