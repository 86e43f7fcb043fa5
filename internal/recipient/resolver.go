// Package recipient resolves which notification tokens to alert for a
// crash event.
//
// The traversal walks device → owner username → owner account → emergency
// contacts → contact accounts → tokens. Hops 1–4 short-circuit to an empty
// result when a record is missing; per-contact problems in the final hop
// are skipped so one bad contact never blocks the rest. Only
// infrastructure failures on the mandatory lookups escalate, as a
// *ResolutionError, so callers can tell "no recipients configured" from
// "lookup infrastructure failed".
package recipient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rideguard/rideguard-backend/internal/store"
)

// maxContactWorkers bounds the concurrent contact lookups per crash event.
const maxContactWorkers = 8

// Field aliases, checked in priority order. App versions disagree on where
// these live, so each is a single named policy rather than scattered
// fallbacks.
var (
	// contact entry → contact username
	contactUsernameFields = []string{"username", "contactUsername", "name"}
	// contact account → notification token
	tokenFields = []string{"fcmToken", "token"}
)

// ownerUsername extracts the owning username from a device document:
// either a direct username field or the nested current-user object.
func ownerUsername(device store.Document) (string, bool) {
	if u, ok := device.Str("username"); ok {
		return u, true
	}
	return device.Child("currentUser").Str("username")
}

func firstStr(doc store.Document, fields []string) (string, bool) {
	for _, f := range fields {
		if s, ok := doc.Str(f); ok {
			return s, true
		}
	}
	return "", false
}

// Directory is the slice of the document store the resolver needs.
type Directory interface {
	Device(ctx context.Context, id string) (store.Document, error)
	AccountByUsername(ctx context.Context, username string) (store.Document, error)
}

// ResolutionError marks an infrastructure failure during a mandatory hop
// of the traversal, as opposed to the legitimately empty outcomes.
type ResolutionError struct {
	Hop string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("recipient resolution failed at %s: %v", e.Hop, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Resolver walks the contact graph for a device.
type Resolver struct {
	dir           Directory
	logger        *slog.Logger
	lookupTimeout time.Duration
}

// New creates a Resolver. lookupTimeout bounds each store lookup; zero
// disables the bound.
func New(dir Directory, lookupTimeout time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{dir: dir, logger: logger, lookupTimeout: lookupTimeout}
}

// ResolveTargets returns the deduplicated set of notification tokens for
// the emergency contacts of the device's owner. Missing records along the
// mandatory hops yield an empty set and a nil error.
func (r *Resolver) ResolveTargets(ctx context.Context, deviceID string) ([]string, error) {
	// Hop 1: device record
	device, err := r.lookupDevice(ctx, deviceID)
	if err != nil {
		return nil, &ResolutionError{Hop: "device lookup", Err: err}
	}
	if device == nil {
		r.logger.Info("device not found", "rideguard_id", deviceID)
		return nil, nil
	}

	// Hop 2: owner username from the device document
	username, ok := ownerUsername(device)
	if !ok {
		r.logger.Info("device has no owner username", "rideguard_id", deviceID)
		return nil, nil
	}

	// Hop 3: owner account
	owner, err := r.lookupAccount(ctx, username)
	if err != nil {
		return nil, &ResolutionError{Hop: "owner account lookup", Err: err}
	}
	if owner == nil {
		r.logger.Info("owner account not found", "username", username)
		return nil, nil
	}

	// Hop 4: emergency contact list. Anything that is not a proper
	// sequence counts as empty.
	contacts, _ := owner["emergencyContacts"].([]any)
	if len(contacts) == 0 {
		r.logger.Info("no emergency contacts", "username", username)
		return nil, nil
	}

	// Hops 5–6: resolve each contact to a token. Independent lookups, so
	// they run concurrently; every failure mode here is a skip.
	set := newTokenSet()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxContactWorkers)
	for _, entry := range contacts {
		contact, ok := entry.(map[string]any)
		if !ok {
			r.logger.Warn("malformed emergency contact entry, skipping", "username", username)
			continue
		}
		contactName, ok := firstStr(store.Document(contact), contactUsernameFields)
		if !ok {
			r.logger.Warn("emergency contact missing username, skipping", "username", username)
			continue
		}

		g.Go(func() error {
			r.resolveContact(gctx, contactName, set)
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors; failures are skips

	tokens := set.values()
	r.logger.Info("resolved notification targets",
		"rideguard_id", deviceID, "contacts", len(contacts), "tokens", len(tokens))
	return tokens, nil
}

// resolveContact looks up one contact account and collects its token.
// Never fails: lookup errors and missing tokens are logged and skipped.
func (r *Resolver) resolveContact(ctx context.Context, contactName string, set *tokenSet) {
	account, err := r.lookupAccount(ctx, contactName)
	if err != nil {
		r.logger.Warn("emergency contact lookup failed, skipping",
			"contact", contactName, "error", err)
		return
	}
	if account == nil {
		r.logger.Warn("emergency contact account not found, skipping", "contact", contactName)
		return
	}
	token, ok := firstStr(account, tokenFields)
	if !ok {
		r.logger.Warn("emergency contact has no notification token, skipping", "contact", contactName)
		return
	}
	set.add(token)
}

func (r *Resolver) lookupDevice(ctx context.Context, id string) (store.Document, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.dir.Device(ctx, id)
}

func (r *Resolver) lookupAccount(ctx context.Context, username string) (store.Document, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.dir.AccountByUsername(ctx, username)
}

func (r *Resolver) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.lookupTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.lookupTimeout)
}

// tokenSet is a concurrency-safe insertion-ordered string set.
type tokenSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
	out  []string
}

func newTokenSet() *tokenSet {
	return &tokenSet{seen: make(map[string]struct{})}
}

func (s *tokenSet) add(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[token]; dup {
		return
	}
	s.seen[token] = struct{}{}
	s.out = append(s.out, token)
}

func (s *tokenSet) values() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}
