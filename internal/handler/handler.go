// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campushub/class-enrollment/internal/model"
	"github.com/campushub/class-enrollment/internal/repository"
	"github.com/campushub/class-enrollment/internal/service"
)

// EnrollmentHandler holds all HTTP handlers for the enrollment API.
type EnrollmentHandler struct {
	enrollments   *service.EnrollmentService
	catalog       *service.CatalogService
	subscriptions *service.SubscriptionService
}

// NewEnrollmentHandler constructs an EnrollmentHandler.
func NewEnrollmentHandler(
	enrollments *service.EnrollmentService,
	catalog *service.CatalogService,
	subscriptions *service.SubscriptionService,
) *EnrollmentHandler {
	return &EnrollmentHandler{
		enrollments:   enrollments,
		catalog:       catalog,
		subscriptions: subscriptions,
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeDomainError maps the repository's typed results onto HTTP
// statuses: not-found 404, duplicates and conflicts 409, waitlist-full
// 503. Anything unrecognised is an internal failure and is reported
// without store details.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrNotEnrolled):
		writeError(w, http.StatusNotFound, "not enrolled in this offering")
	case errors.Is(err, repository.ErrNotWaitlisted):
		writeError(w, http.StatusNotFound, "not on the waitlist")
	case errors.Is(err, repository.ErrNotSubscribed):
		writeError(w, http.StatusNotFound, "not subscribed")
	case errors.Is(err, repository.ErrAlreadyEnrolled):
		writeError(w, http.StatusConflict, "already enrolled in this offering")
	case errors.Is(err, repository.ErrAlreadyWaitlisted):
		writeError(w, http.StatusConflict, "already on the waitlist")
	case errors.Is(err, repository.ErrWaitlistLimit):
		writeError(w, http.StatusConflict, "waitlist limit per student exceeded")
	case errors.Is(err, repository.ErrDuplicateOffering):
		writeError(w, http.StatusConflict, "offering already exists")
	case errors.Is(err, repository.ErrAlreadySubscribed):
		writeError(w, http.StatusConflict, "already subscribed")
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, "conflicting concurrent modification, please retry")
	case errors.Is(err, repository.ErrWaitlistFull):
		writeError(w, http.StatusServiceUnavailable, "waitlist is full")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ─── Offering administration ──────────────────────────────────────────────────

// CreateOffering handles POST /offerings
func (h *EnrollmentHandler) CreateOffering(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOfferingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	offering, err := h.catalog.CreateOffering(r.Context(), req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateOffering) {
			writeDomainError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, offering)
}

// ListOfferings handles GET /offerings
func (h *EnrollmentHandler) ListOfferings(w http.ResponseWriter, r *http.Request) {
	offerings, err := h.catalog.ListOfferings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list offerings")
		return
	}
	if offerings == nil {
		offerings = []model.Offering{}
	}
	writeJSON(w, http.StatusOK, offerings)
}

// ListAvailable handles GET /offerings/available
// Returns open-seat offerings the requesting student can still enroll in.
func (h *EnrollmentHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	offerings, err := h.catalog.ListAvailable(r.Context(), studentID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list available offerings")
		return
	}
	if offerings == nil {
		offerings = []model.Offering{}
	}
	writeJSON(w, http.StatusOK, offerings)
}

// GetOffering handles GET /offerings/{id}
func (h *EnrollmentHandler) GetOffering(w http.ResponseWriter, r *http.Request) {
	offering, err := h.catalog.GetOffering(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "offering not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get offering")
		return
	}
	writeJSON(w, http.StatusOK, offering)
}

// DeleteOffering handles DELETE /offerings/{id}
func (h *EnrollmentHandler) DeleteOffering(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteOffering(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "offering deleted"})
}

// ─── Enrollment ───────────────────────────────────────────────────────────────

// Enroll handles POST /offerings/{id}/enroll
// Responds 201 with an outcome of "enrolled" or "waitlisted".
func (h *EnrollmentHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.enrollments.Enroll(r.Context(), chi.URLParam(r, "id"), studentID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]model.EnrollOutcome{"outcome": outcome})
}

// Drop handles DELETE /offerings/{id}/enrollment
// The student gives up their own seat.
func (h *EnrollmentHandler) Drop(w http.ResponseWriter, r *http.Request) {
	if err := h.enrollments.Drop(r.Context(), chi.URLParam(r, "id"), studentID(r), false); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "dropped successfully"})
}

// AdministrativeDrop handles DELETE /offerings/{id}/enrollment/{studentID}
// An instructor or registrar removes a student from the offering.
func (h *EnrollmentHandler) AdministrativeDrop(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "studentID")
	if err := h.enrollments.Drop(r.Context(), chi.URLParam(r, "id"), target, true); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "dropped successfully"})
}

// ─── Waitlist ─────────────────────────────────────────────────────────────────

// WaitlistPosition handles GET /offerings/{id}/waitlist/position
func (h *EnrollmentHandler) WaitlistPosition(w http.ResponseWriter, r *http.Request) {
	rank, err := h.enrollments.WaitlistPosition(r.Context(), chi.URLParam(r, "id"), studentID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"position": rank})
}

// LeaveWaitlist handles DELETE /offerings/{id}/waitlist
func (h *EnrollmentHandler) LeaveWaitlist(w http.ResponseWriter, r *http.Request) {
	if err := h.enrollments.LeaveWaitlist(r.Context(), chi.URLParam(r, "id"), studentID(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "removed from waitlist"})
}

// ─── Instructor views ─────────────────────────────────────────────────────────

// Roster handles GET /offerings/{id}/roster
func (h *EnrollmentHandler) Roster(w http.ResponseWriter, r *http.Request) {
	enrollments, err := h.catalog.Roster(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if enrollments == nil {
		enrollments = []model.Enrollment{}
	}
	writeJSON(w, http.StatusOK, enrollments)
}

// Waitlist handles GET /offerings/{id}/waitlist
func (h *EnrollmentHandler) Waitlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.catalog.Waitlist(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []model.WaitlistEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Droplist handles GET /offerings/{id}/droplist
func (h *EnrollmentHandler) Droplist(w http.ResponseWriter, r *http.Request) {
	records, err := h.catalog.Droplist(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []model.DropRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// ─── Auto-enrollment policy ───────────────────────────────────────────────────

// GetPolicy handles GET /auto-enrollment
func (h *EnrollmentHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.catalog.AutoEnrollment(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.PolicyRequest{AutoEnrollmentEnabled: enabled})
}

// SetPolicy handles PUT /auto-enrollment
// Enabling the policy immediately sweeps all open offerings.
func (h *EnrollmentHandler) SetPolicy(w http.ResponseWriter, r *http.Request) {
	var req model.PolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	promoted, err := h.catalog.SetAutoEnrollment(r.Context(), req.AutoEnrollmentEnabled)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"auto_enrollment_enabled": req.AutoEnrollmentEnabled,
		"promoted":                promoted,
	})
}

// ─── Notification subscriptions ───────────────────────────────────────────────

// Subscribe handles POST /offerings/{id}/subscription
func (h *EnrollmentHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req model.SubscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	sub, err := h.subscriptions.Subscribe(r.Context(), chi.URLParam(r, "id"), studentID(r), req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotWaitlisted),
			errors.Is(err, repository.ErrAlreadySubscribed):
			writeDomainError(w, err)
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// ListSubscriptions handles GET /subscriptions
func (h *EnrollmentHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subscriptions.List(r.Context(), studentID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.Subscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// Unsubscribe handles DELETE /offerings/{id}/subscription
func (h *EnrollmentHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	if err := h.subscriptions.Unsubscribe(r.Context(), chi.URLParam(r, "id"), studentID(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "unsubscribed"})
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
