package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Thomasfairey/compliance-connect-sub003/internal/models"
	"github.com/Thomasfairey/compliance-connect-sub003/internal/service"
)

type stubTransitionStore struct {
	booking models.Booking
	err     error
	applied []service.StatusChange
}

func (s *stubTransitionStore) GetBooking(ctx context.Context, id string) (models.Booking, error) {
	if s.err != nil {
		return models.Booking{}, s.err
	}
	return s.booking, nil
}

func (s *stubTransitionStore) ApplyStatusChange(ctx context.Context, bookingID string, change service.StatusChange) error {
	s.applied = append(s.applied, change)
	return nil
}

func transitionRouter(store *stubTransitionStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &Handler{
		Transitioner: &service.Transitioner{Store: store, Logger: zerolog.Nop()},
		Validator:    validator.New(),
		Logger:       zerolog.Nop(),
	}
	r := gin.New()
	r.POST("/api/bookings/:id/transition", h.Transition)
	return r
}

func postTransition(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, "/api/bookings/b1/transition", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTransitionHappyPath(t *testing.T) {
	store := &stubTransitionStore{booking: models.Booking{ID: "b1", Status: models.StatusPending}}
	r := transitionRouter(store)

	w := postTransition(t, r, `{"action":"accept","actor_id":"admin-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(store.applied) != 1 || store.applied[0].To != models.StatusConfirmed {
		t.Fatalf("expected CONFIRMED applied, got %+v", store.applied)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["from"] != "PENDING" || resp["to"] != "CONFIRMED" {
		t.Fatalf("unexpected response body: %v", resp)
	}
}

func TestTransitionRejectsMissingFields(t *testing.T) {
	store := &stubTransitionStore{booking: models.Booking{ID: "b1", Status: models.StatusPending}}
	r := transitionRouter(store)

	w := postTransition(t, r, `{"action":"accept"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing actor_id, got %d", w.Code)
	}
	if len(store.applied) != 0 {
		t.Fatalf("nothing should be applied on validation failure")
	}
}

func TestTransitionInvalidActionConflicts(t *testing.T) {
	store := &stubTransitionStore{booking: models.Booking{ID: "b1", Status: models.StatusCompleted}}
	r := transitionRouter(store)

	w := postTransition(t, r, `{"action":"accept","actor_id":"admin-1"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for invalid transition, got %d", w.Code)
	}

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error.Code != "INVALID_TRANSITION" {
		t.Fatalf("expected INVALID_TRANSITION code, got %s", resp.Error.Code)
	}
}

func TestTransitionBookingNotFound(t *testing.T) {
	store := &stubTransitionStore{err: service.ErrBookingNotFound}
	r := transitionRouter(store)

	w := postTransition(t, r, `{"action":"accept","actor_id":"admin-1"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestBookingsListRejectsBadDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{Logger: zerolog.Nop()}
	r := gin.New()
	r.GET("/api/bookings", h.BookingsList)

	req, _ := http.NewRequest(http.MethodGet, "/api/bookings?date=10-03-2025", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", w.Code)
	}
}

func TestEngineerRouteRequiresDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{Logger: zerolog.Nop()}
	r := gin.New()
	r.GET("/api/engineers/:id/route", h.EngineerRoute)

	req, _ := http.NewRequest(http.MethodGet, "/api/engineers/e1/route", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without date, got %d", w.Code)
	}
}
