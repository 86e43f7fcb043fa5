// Package crash orchestrates the response to a crash-detection event:
// nearest-facility resolution, recipient resolution, and notification
// fanout. Notification problems never downgrade a successful resolution.
package crash

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rideguard/rideguard-backend/internal/cache"
	"github.com/rideguard/rideguard-backend/internal/facility"
	"github.com/rideguard/rideguard-backend/internal/geo"
	"github.com/rideguard/rideguard-backend/internal/notify"
	"github.com/rideguard/rideguard-backend/internal/recipient"
	"github.com/rideguard/rideguard-backend/internal/store"
)

// Notification content sent to emergency contacts. Matches the mobile
// app's expected strings; localization is out of scope.
const notificationTitle = "TABRAKAN"

func notificationBody(facilityName string) string {
	return "RideGuard mendeteksi tabrakan, rumah sakit terdekat: " + facilityName
}

// Event is a validated crash-detection event.
type Event struct {
	CrashID  string
	DeviceID string
	Location geo.Coordinate
}

// Result is the outcome of processing one crash event.
type Result struct {
	Match      facility.Match
	Targets    int
	Report     notify.Report
	Duplicate  bool // true when dedup is on and the crash id was seen before
	Suppressed bool // true when the fanout was skipped because of dedup
}

// Service wires the crash pipeline together. Constructed once at startup.
type Service struct {
	store         store.Store
	cache         *cache.FacilityCache
	resolver      *recipient.Resolver
	dispatcher    *notify.Dispatcher
	dedupEnabled  bool
	lookupTimeout time.Duration
	logger        *slog.Logger
}

// NewService creates the crash pipeline service.
func NewService(
	st store.Store,
	facilityCache *cache.FacilityCache,
	resolver *recipient.Resolver,
	dispatcher *notify.Dispatcher,
	dedupEnabled bool,
	lookupTimeout time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:         st,
		cache:         facilityCache,
		resolver:      resolver,
		dispatcher:    dispatcher,
		dedupEnabled:  dedupEnabled,
		lookupTimeout: lookupTimeout,
		logger:        logger,
	}
}

// Respond runs the full pipeline for one crash event.
//
// Errors: facility.ErrNoFacilities when no facility resolves;
// *recipient.ResolutionError when the contact-graph lookups hit an
// infrastructure failure; any other error means the facility collection
// could not be read.
func (s *Service) Respond(ctx context.Context, ev Event) (*Result, error) {
	res := &Result{}

	// Crash event record. Replay suppression is a deployment policy; the
	// record itself is best effort either way and never blocks response.
	res.Duplicate = s.recordCrash(ctx, ev)
	res.Suppressed = res.Duplicate && s.dedupEnabled

	facilities, err := s.loadFacilities(ctx)
	if err != nil {
		return nil, err
	}

	match, err := facility.Nearest(ev.Location, facilities)
	if err != nil {
		return nil, err
	}
	res.Match = match
	s.logger.Info("nearest facility resolved",
		"crash_id", ev.CrashID,
		"facility_id", match.Facility.ID,
		"facility", match.Facility.Name,
		"distance_km", match.DistanceKm)

	targets, err := s.resolver.ResolveTargets(ctx, ev.DeviceID)
	if err != nil {
		return nil, err
	}
	res.Targets = len(targets)

	if len(targets) == 0 {
		s.logger.Info("no notification targets", "rideguard_id", ev.DeviceID)
		return res, nil
	}
	if res.Suppressed {
		s.logger.Info("duplicate crash, notification fanout suppressed",
			"crash_id", ev.CrashID, "targets", len(targets))
		return res, nil
	}

	res.Report = s.dispatcher.Dispatch(ctx, targets, notify.Message{
		Title: notificationTitle,
		Body:  notificationBody(match.Facility.Name),
	})
	return res, nil
}

// recordCrash persists the crash event and reports whether the id was seen
// before. Store problems here are logged and ignored: the event record
// must never block the crash response.
func (s *Service) recordCrash(ctx context.Context, ev Event) (duplicate bool) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if s.dedupEnabled {
		exists, err := s.store.CrashExists(ctx, ev.CrashID)
		if err != nil {
			s.logger.Warn("crash existence check failed", "crash_id", ev.CrashID, "error", err)
			return false
		}
		if exists {
			return true
		}
	}

	err := s.store.SaveCrash(ctx, store.Crash{
		ID:       ev.CrashID,
		DeviceID: ev.DeviceID,
		Location: ev.Location,
		SeenAt:   time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to record crash event", "crash_id", ev.CrashID, "error", err)
	}
	return false
}

// loadFacilities returns the decoded facility collection, served from the
// cache when fresh. A collection read failure escalates: without
// facilities there is no crash response.
func (s *Service) loadFacilities(ctx context.Context) ([]facility.Facility, error) {
	if cached, ok := s.cache.Get(); ok {
		return cached, nil
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	records, err := s.store.Facilities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load facility collection: %w", err)
	}
	facilities := facility.Decode(records, s.logger)
	s.cache.Set(facilities)
	return facilities, nil
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.lookupTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.lookupTimeout)
}
