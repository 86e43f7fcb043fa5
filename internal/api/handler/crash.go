package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rideguard/rideguard-backend/internal/api/respond"
	"github.com/rideguard/rideguard-backend/internal/crash"
	"github.com/rideguard/rideguard-backend/internal/facility"
	"github.com/rideguard/rideguard-backend/internal/geo"
	"github.com/rideguard/rideguard-backend/internal/recipient"
)

type crashRequest struct {
	CrashID     string   `json:"crash_id"`
	RideguardID string   `json:"rideguard_id"`
	Lat         *float64 `json:"lat"`
	Long        *float64 `json:"long"`
}

type crashResponse struct {
	Success         bool              `json:"success"`
	NearestHospital facility.Facility `json:"nearestHospital"`
	Distance        float64           `json:"distance"`
}

const validationMessage = "Valid 'crash_id', 'rideguard_id', 'lat' and 'long' are required"

// HandleCrash processes a crash-detection event: resolves the nearest
// facility, notifies the owner's emergency contacts, and returns the
// facility with its distance. Notification outcomes never change the
// response; a recipient-lookup infrastructure failure does.
func (h *Handler) HandleCrash(w http.ResponseWriter, r *http.Request) {
	var req crashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, validationMessage)
		return
	}

	loc := geo.Coordinate{}
	if req.Lat != nil && req.Long != nil {
		loc = geo.Coordinate{Lat: *req.Lat, Lng: *req.Long}
	}
	if req.CrashID == "" || req.RideguardID == "" || req.Lat == nil || req.Long == nil || !loc.Valid() {
		respond.WriteError(w, http.StatusBadRequest, validationMessage)
		return
	}

	slog.Info("crash event received",
		"crash_id", req.CrashID, "rideguard_id", req.RideguardID,
		"lat", loc.Lat, "long", loc.Lng)

	res, err := h.svc.Respond(r.Context(), crash.Event{
		CrashID:  req.CrashID,
		DeviceID: req.RideguardID,
		Location: loc,
	})
	if err != nil {
		h.writeCrashError(w, req.CrashID, err)
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, crashResponse{
		Success:         true,
		NearestHospital: res.Match.Facility,
		Distance:        res.Match.DistanceKm,
	})
}

func (h *Handler) writeCrashError(w http.ResponseWriter, crashID string, err error) {
	var resErr *recipient.ResolutionError
	switch {
	case errors.Is(err, facility.ErrNoFacilities):
		respond.WriteError(w, http.StatusNotFound, "No hospitals found")
	case errors.As(err, &resErr):
		slog.Error("recipient resolution failed", "crash_id", crashID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
	default:
		slog.Error("crash processing failed", "crash_id", crashID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
