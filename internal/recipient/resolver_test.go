package recipient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/rideguard/rideguard-backend/internal/store"
)

// fakeDirectory serves canned device and account documents.
type fakeDirectory struct {
	devices    map[string]store.Document
	accounts   map[string]store.Document
	deviceErr  error
	accountErr map[string]error
}

func (f *fakeDirectory) Device(ctx context.Context, id string) (store.Document, error) {
	if f.deviceErr != nil {
		return nil, f.deviceErr
	}
	return f.devices[id], nil
}

func (f *fakeDirectory) AccountByUsername(ctx context.Context, username string) (store.Document, error) {
	if err := f.accountErr[username]; err != nil {
		return nil, err
	}
	return f.accounts[username], nil
}

func newResolver(dir Directory) *Resolver {
	return New(dir, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func account(fields map[string]any) store.Document {
	return store.Document(fields)
}

func contacts(entries ...any) []any { return entries }

func TestResolveTargetsDeviceAbsent(t *testing.T) {
	r := newResolver(&fakeDirectory{})
	tokens, err := r.ResolveTargets(context.Background(), "missing")
	if err != nil {
		t.Fatalf("absent device must not be an error, got %v", err)
	}
	if len(tokens) != 0 {
		t.Fatalf("expected empty set, got %v", tokens)
	}
}

func TestResolveTargetsDeviceWithoutOwner(t *testing.T) {
	r := newResolver(&fakeDirectory{
		devices: map[string]store.Document{
			"d1": {"model": "rg-2"},
		},
	})
	tokens, err := r.ResolveTargets(context.Background(), "d1")
	if err != nil || len(tokens) != 0 {
		t.Fatalf("expected empty set and nil error, got %v, %v", tokens, err)
	}
}

func TestResolveTargetsNestedOwnerShape(t *testing.T) {
	dir := &fakeDirectory{
		devices: map[string]store.Document{
			"d1": {"currentUser": map[string]any{"username": "budi"}},
		},
		accounts: map[string]store.Document{
			"budi": account(map[string]any{
				"username":          "budi",
				"emergencyContacts": contacts(map[string]any{"username": "sari"}),
			}),
			"sari": account(map[string]any{"username": "sari", "fcmToken": "tok-sari"}),
		},
	}
	tokens, err := r(t, dir, "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 1 || tokens[0] != "tok-sari" {
		t.Fatalf("expected [tok-sari], got %v", tokens)
	}
}

// r runs a resolver against dir for deviceID.
func r(t *testing.T, dir Directory, deviceID string) ([]string, error) {
	t.Helper()
	return newResolver(dir).ResolveTargets(context.Background(), deviceID)
}

func TestResolveTargetsOwnerAccountAbsent(t *testing.T) {
	dir := &fakeDirectory{
		devices: map[string]store.Document{"d1": {"username": "ghost"}},
	}
	tokens, err := r(t, dir, "d1")
	if err != nil || len(tokens) != 0 {
		t.Fatalf("expected empty set and nil error, got %v, %v", tokens, err)
	}
}

func TestResolveTargetsContactsNotASequence(t *testing.T) {
	dir := &fakeDirectory{
		devices: map[string]store.Document{"d1": {"username": "budi"}},
		accounts: map[string]store.Document{
			"budi": account(map[string]any{"username": "budi", "emergencyContacts": "sari"}),
		},
	}
	tokens, err := r(t, dir, "d1")
	if err != nil || len(tokens) != 0 {
		t.Fatalf("non-sequence contacts must read as empty, got %v, %v", tokens, err)
	}
}

func TestResolveTargetsContactAliases(t *testing.T) {
	dir := &fakeDirectory{
		devices: map[string]store.Document{"d1": {"username": "budi"}},
		accounts: map[string]store.Document{
			"budi": account(map[string]any{
				"username": "budi",
				"emergencyContacts": contacts(
					map[string]any{"username": "a"},
					map[string]any{"contactUsername": "b"},
					map[string]any{"name": "c"},
				),
			}),
			"a": account(map[string]any{"fcmToken": "tok-a"}),
			"b": account(map[string]any{"fcmToken": "tok-b"}),
			// Legacy accounts store the token under "token".
			"c": account(map[string]any{"token": "tok-c"}),
		},
	}
	tokens, err := r(t, dir, "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sort.Strings(tokens)
	want := []string{"tok-a", "tok-b", "tok-c"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %v, got %v", want, tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, tokens)
		}
	}
}

func TestResolveTargetsAliasPriority(t *testing.T) {
	// "username" wins over "name" within one entry.
	dir := &fakeDirectory{
		devices: map[string]store.Document{"d1": {"username": "budi"}},
		accounts: map[string]store.Document{
			"budi": account(map[string]any{
				"username": "budi",
				"emergencyContacts": contacts(
					map[string]any{"username": "right", "name": "wrong"},
				),
			}),
			"right": account(map[string]any{"fcmToken": "tok-right"}),
			"wrong": account(map[string]any{"fcmToken": "tok-wrong"}),
		},
	}
	tokens, err := r(t, dir, "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 1 || tokens[0] != "tok-right" {
		t.Fatalf("expected alias priority to pick username, got %v", tokens)
	}
}

func TestResolveTargetsDeduplicatesTokens(t *testing.T) {
	// Two contacts resolving to the same token collapse to one target.
	dir := &fakeDirectory{
		devices: map[string]store.Document{"d1": {"username": "budi"}},
		accounts: map[string]store.Document{
			"budi": account(map[string]any{
				"username": "budi",
				"emergencyContacts": contacts(
					map[string]any{"username": "sari"},
					map[string]any{"username": "sari-alt"},
				),
			}),
			"sari":     account(map[string]any{"fcmToken": "shared"}),
			"sari-alt": account(map[string]any{"fcmToken": "shared"}),
		},
	}
	tokens, err := r(t, dir, "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 1 || tokens[0] != "shared" {
		t.Fatalf("expected set of size 1, got %v", tokens)
	}
}

func TestResolveTargetsSkipsBadContacts(t *testing.T) {
	dir := &fakeDirectory{
		devices: map[string]store.Document{"d1": {"username": "budi"}},
		accounts: map[string]store.Document{
			"budi": account(map[string]any{
				"username": "budi",
				"emergencyContacts": contacts(
					"not-an-object",
					map[string]any{"phone": "+62"},         // no usable username
					map[string]any{"username": "missing"},  // account absent
					map[string]any{"username": "tokenless"},
					map[string]any{"username": "flaky"},    // lookup fails
					map[string]any{"username": "ok"},
				),
			}),
			"tokenless": account(map[string]any{"username": "tokenless"}),
			"ok":        account(map[string]any{"fcmToken": "tok-ok"}),
		},
		accountErr: map[string]error{"flaky": errors.New("store timeout")},
	}
	tokens, err := r(t, dir, "d1")
	if err != nil {
		t.Fatalf("per-contact failures must not escalate, got %v", err)
	}
	if len(tokens) != 1 || tokens[0] != "tok-ok" {
		t.Fatalf("expected the one good contact, got %v", tokens)
	}
}

func TestResolveTargetsDeviceLookupFailure(t *testing.T) {
	dir := &fakeDirectory{deviceErr: errors.New("store unavailable")}
	_, err := r(t, dir, "d1")
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected *ResolutionError, got %v", err)
	}
	if resErr.Unwrap() == nil {
		t.Fatalf("expected wrapped cause")
	}
}

func TestResolveTargetsOwnerLookupFailure(t *testing.T) {
	dir := &fakeDirectory{
		devices:    map[string]store.Document{"d1": {"username": "budi"}},
		accountErr: map[string]error{"budi": errors.New("store unavailable")},
	}
	_, err := r(t, dir, "d1")
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected *ResolutionError, got %v", err)
	}
}
