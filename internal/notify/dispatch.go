// Package notify fans a crash notification out to a set of device tokens
// and reports per-target outcomes. Delivery is best effort: one failed
// target never prevents attempts for the others, and the caller decides
// what to do with the report.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Message is the title/body pair delivered to every target.
type Message struct {
	Title string
	Body  string
}

// Failure records one target that could not be delivered to.
type Failure struct {
	Target string
	Reason string
}

// Report summarizes one fanout.
type Report struct {
	Attempted int
	Succeeded int
	Failures  []Failure
}

// Sender delivers a message to a single token.
type Sender interface {
	Send(ctx context.Context, token string, msg Message) error
}

// BatchSender is implemented by senders whose transport supports batching.
// SendEach returns exactly one error slot per token, nil for successes.
type BatchSender interface {
	SendEach(ctx context.Context, tokens []string, msg Message) []error
}

// errBatchShortfall fills report slots a misbehaving batch transport never
// produced an outcome for.
var errBatchShortfall = errors.New("no outcome returned by batch send")

// Dispatcher fans messages out through a Sender.
type Dispatcher struct {
	sender      Sender
	sendTimeout time.Duration
	logger      *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil sender disables delivery: every
// dispatch becomes a no-op with a zero report. sendTimeout bounds each
// transport call; zero disables the bound.
func NewDispatcher(sender Sender, sendTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, sendTimeout: sendTimeout, logger: logger}
}

// Dispatch sends msg to every target. Uses the transport's batch call when
// available, parallel independent sends otherwise. An empty target set
// performs no send at all.
func (d *Dispatcher) Dispatch(ctx context.Context, targets []string, msg Message) Report {
	if len(targets) == 0 {
		return Report{}
	}
	if d.sender == nil {
		d.logger.Warn("notification sender not configured, dropping dispatch", "targets", len(targets))
		return Report{}
	}

	var errs []error
	if batch, ok := d.sender.(BatchSender); ok {
		errs = d.sendBatched(ctx, batch, targets, msg)
	} else {
		errs = d.sendParallel(ctx, targets, msg)
	}

	report := Report{Attempted: len(targets)}
	for i, err := range errs {
		if err == nil {
			report.Succeeded++
			continue
		}
		report.Failures = append(report.Failures, Failure{Target: targets[i], Reason: err.Error()})
		d.logger.Warn("notification send failed", "target", targets[i], "error", err)
	}
	d.logger.Info("notification fanout finished",
		"attempted", report.Attempted, "succeeded", report.Succeeded, "failed", len(report.Failures))
	return report
}

func (d *Dispatcher) sendBatched(ctx context.Context, batch BatchSender, targets []string, msg Message) []error {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	errs := batch.SendEach(ctx, targets, msg)
	for len(errs) < len(targets) {
		errs = append(errs, errBatchShortfall)
	}
	return errs[:len(targets)]
}

func (d *Dispatcher) sendParallel(ctx context.Context, targets []string, msg Message) []error {
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, token := range targets {
		i, token := i, token
		wg.Add(1)
		go func() {
			defer wg.Done()
			sendCtx, cancel := d.bound(ctx)
			defer cancel()
			errs[i] = d.sender.Send(sendCtx, token, msg)
		}()
	}
	wg.Wait()
	return errs
}

func (d *Dispatcher) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.sendTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.sendTimeout)
}
