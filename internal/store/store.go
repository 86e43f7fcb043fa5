// Package store defines the document-store boundary for the crash-response
// pipeline. Devices, accounts, and facilities are schemaless documents
// written by the mobile apps; the pipeline only ever reads them through
// the Store interface, so handlers and resolvers never touch pgx directly.
package store

import (
	"context"
	"time"

	"github.com/rideguard/rideguard-backend/internal/geo"
)

// Document is a raw store record. Field shapes vary between app versions,
// so readers probe fields through the accessors instead of unmarshalling
// into fixed structs.
type Document map[string]any

// Str returns the string value of a top-level field, or false when the
// field is absent, empty, or not a string.
func (d Document) Str(key string) (string, bool) {
	if d == nil {
		return "", false
	}
	s, ok := d[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Child returns a nested object field, or nil when the field is absent or
// not an object.
func (d Document) Child(key string) Document {
	if d == nil {
		return nil
	}
	switch v := d[key].(type) {
	case map[string]any:
		return Document(v)
	case Document:
		return v
	}
	return nil
}

// Num returns the float64 value of a top-level field, or false when the
// field is absent or not numeric. JSON numbers always decode as float64.
func (d Document) Num(key string) (float64, bool) {
	if d == nil {
		return 0, false
	}
	n, ok := d[key].(float64)
	return n, ok
}

// FacilityRecord is one raw entry from the emergency-services collection.
type FacilityRecord struct {
	ID  string
	Doc Document
}

// Crash is a processed crash event, recorded for replay suppression.
type Crash struct {
	ID       string
	DeviceID string
	Location geo.Coordinate
	SeenAt   time.Time
}

// Store is the read surface the crash pipeline needs plus the write
// operations used by the admin CLI.
//
// Device and AccountByUsername return a nil Document (and nil error) when
// no record exists; callers treat that as a legitimately empty hop, not a
// failure.
type Store interface {
	Facilities(ctx context.Context) ([]FacilityRecord, error)
	Device(ctx context.Context, id string) (Document, error)
	AccountByUsername(ctx context.Context, username string) (Document, error)

	CrashExists(ctx context.Context, crashID string) (bool, error)
	SaveCrash(ctx context.Context, c Crash) error

	AddFacility(ctx context.Context, id string, doc Document) (string, error)
	BindDevice(ctx context.Context, id string, doc Document) error
	SetAccountToken(ctx context.Context, username, token string) error
}
