package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
)

// fakeSender fails the tokens listed in fail, counts every attempt.
type fakeSender struct {
	mu       sync.Mutex
	attempts []string
	fail     map[string]error
}

func (f *fakeSender) Send(ctx context.Context, token string, msg Message) error {
	f.mu.Lock()
	f.attempts = append(f.attempts, token)
	f.mu.Unlock()
	return f.fail[token]
}

// fakeBatchSender records whether the batch path was taken.
type fakeBatchSender struct {
	fakeSender
	batchCalls int
}

func (f *fakeBatchSender) SendEach(ctx context.Context, tokens []string, msg Message) []error {
	f.batchCalls++
	errs := make([]error, len(tokens))
	for i, tok := range tokens {
		errs[i] = f.Send(ctx, tok, msg)
	}
	return errs
}

func newTestDispatcher(s Sender) *Dispatcher {
	return NewDispatcher(s, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDispatchEmptyTargets(t *testing.T) {
	sender := &fakeSender{}
	report := newTestDispatcher(sender).Dispatch(context.Background(), nil, Message{Title: "t"})
	if report.Attempted != 0 || report.Succeeded != 0 || len(report.Failures) != 0 {
		t.Fatalf("expected zero report, got %+v", report)
	}
	if len(sender.attempts) != 0 {
		t.Fatalf("expected no send calls, got %v", sender.attempts)
	}
}

func TestDispatchPartialFailure(t *testing.T) {
	sender := &fakeSender{fail: map[string]error{"tok-b": errors.New("unregistered")}}
	targets := []string{"tok-a", "tok-b", "tok-c"}

	report := newTestDispatcher(sender).Dispatch(context.Background(), targets, Message{Title: "t", Body: "b"})

	if report.Attempted != 3 {
		t.Fatalf("expected 3 attempted, got %d", report.Attempted)
	}
	if report.Succeeded != 2 {
		t.Fatalf("expected 2 succeeded, got %d", report.Succeeded)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %+v", report.Failures)
	}
	if report.Failures[0].Target != "tok-b" || report.Failures[0].Reason != "unregistered" {
		t.Fatalf("unexpected failure record: %+v", report.Failures[0])
	}
	if len(sender.attempts) != 3 {
		t.Fatalf("one failure must not stop other attempts, attempts: %v", sender.attempts)
	}
}

func TestDispatchUsesBatchPath(t *testing.T) {
	sender := &fakeBatchSender{}
	targets := []string{"tok-a", "tok-b"}

	report := newTestDispatcher(sender).Dispatch(context.Background(), targets, Message{})

	if sender.batchCalls != 1 {
		t.Fatalf("expected one batch call, got %d", sender.batchCalls)
	}
	if report.Attempted != 2 || report.Succeeded != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestDispatchBatchShortfall(t *testing.T) {
	// A misbehaving batch transport returning too few outcomes still yields
	// a full report.
	short := &shortBatchSender{}
	report := newTestDispatcher(short).Dispatch(context.Background(), []string{"a", "b", "c"}, Message{})
	if report.Attempted != 3 || report.Succeeded != 1 || len(report.Failures) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

type shortBatchSender struct{}

func (s *shortBatchSender) Send(ctx context.Context, token string, msg Message) error { return nil }

func (s *shortBatchSender) SendEach(ctx context.Context, tokens []string, msg Message) []error {
	return []error{nil}
}

func TestDispatchNilSender(t *testing.T) {
	report := newTestDispatcher(nil).Dispatch(context.Background(), []string{"tok-a"}, Message{})
	if report.Attempted != 0 {
		t.Fatalf("disabled sender must not attempt sends, got %+v", report)
	}
}
