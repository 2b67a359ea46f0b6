package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Thomasfairey/compliance-connect-sub003/internal/db"
	"github.com/Thomasfairey/compliance-connect-sub003/internal/models"
	"github.com/Thomasfairey/compliance-connect-sub003/internal/service"
)

type Handler struct {
	Store        *db.Store
	Allocator    *service.Allocator
	Transitioner *service.Transitioner
	Planner      *service.RoutePlanner
	Validator    *validator.Validate
	Logger       zerolog.Logger
	AdminKey     string
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary List bookings
// @Tags bookings
// @Produce json
// @Param status query string false "Booking status"
// @Param engineer_id query string false "Assigned engineer"
// @Param date query string false "Scheduled date (YYYY-MM-DD)"
// @Success 200 {object} map[string]any
// @Router /api/bookings [get]
func (h *Handler) BookingsList(c *gin.Context) {
	status := strings.ToUpper(strings.TrimSpace(c.Query("status")))
	engineerID := strings.TrimSpace(c.Query("engineer_id"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	var date *time.Time
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD", nil)
			return
		}
		date = &parsed
	}

	items, err := h.Store.ListBookings(c.Request.Context(), status, engineerID, date, limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list bookings", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

// @Summary Booking details
// @Description Booking with its allocation decision log and status history
// @Tags bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/bookings/{id} [get]
func (h *Handler) BookingDetails(c *gin.Context) {
	id := c.Param("id")
	booking, err := h.Store.GetBooking(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrBookingNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Booking not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get booking", err.Error())
		return
	}

	allocation, err := h.Store.GetAllocationLog(c.Request.Context(), id)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load allocation log", err.Error())
		return
	}
	history, err := h.Store.ListStatusLog(c.Request.Context(), id)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load status history", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking":        booking,
		"allocation":     allocation,
		"status_history": history,
	})
}

func (h *Handler) EngineersList(c *gin.Context) {
	items, err := h.Store.ListEngineerPool(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list engineers", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// @Summary Suggested route for an engineer's day
// @Tags engineers
// @Produce json
// @Param id path string true "Engineer ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} map[string]any
// @Router /api/engineers/{id}/route [get]
func (h *Handler) EngineerRoute(c *gin.Context) {
	engineerID := c.Param("id")
	raw := strings.TrimSpace(c.Query("date"))
	if raw == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "date is required", nil)
		return
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD", nil)
		return
	}

	stops, err := h.Planner.OptimizeRoute(c.Request.Context(), engineerID, date)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "ROUTE_ERROR", "Failed to plan route", err.Error())
		return
	}

	totalKm := 0.0
	totalMinutes := 0
	for _, stop := range stops {
		totalKm += stop.LegKm
		totalMinutes += stop.TravelMinutes
	}
	c.JSON(http.StatusOK, gin.H{
		"engineer_id":          engineerID,
		"date":                 raw,
		"stops":                stops,
		"total_km":             totalKm,
		"total_travel_minutes": totalMinutes,
	})
}

// @Summary Allocate an engineer to a pending booking
// @Tags bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} service.AllocationResult
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Failure 422 {object} map[string]any
// @Router /api/bookings/{id}/allocate [post]
func (h *Handler) Allocate(c *gin.Context) {
	id := c.Param("id")
	result, err := h.Allocator.Allocate(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBookingNotFound):
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Booking not found", nil)
		case errors.Is(err, service.ErrAlreadyAllocated):
			writeError(c, http.StatusConflict, "ALREADY_ALLOCATED", "Booking is no longer pending", nil)
		case errors.Is(err, service.ErrNoEligibleEngineer):
			writeError(c, http.StatusUnprocessableEntity, "NO_ELIGIBLE_ENGINEER", "No engineer can take this booking", err.Error())
		default:
			h.Logger.Error().Err(err).Str("booking_id", id).Msg("allocation failed")
			writeError(c, http.StatusInternalServerError, "ALLOCATION_ERROR", "Allocation failed", err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Requote a booking
// @Tags bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} service.QuoteResult
// @Failure 404 {object} map[string]any
// @Router /api/bookings/{id}/quote [post]
func (h *Handler) Quote(c *gin.Context) {
	id := c.Param("id")
	result, err := h.Allocator.Quote(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrBookingNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Booking not found", nil)
			return
		}
		h.Logger.Error().Err(err).Str("booking_id", id).Msg("quote failed")
		writeError(c, http.StatusInternalServerError, "QUOTE_ERROR", "Quote failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

type TransitionRequest struct {
	Action  string `json:"action" validate:"required"`
	ActorID string `json:"actor_id" validate:"required"`
}

// @Summary Apply a lifecycle action to a booking
// @Tags bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body TransitionRequest true "Action and actor"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/bookings/{id}/transition [post]
func (h *Handler) Transition(c *gin.Context) {
	id := c.Param("id")
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	action := models.BookingAction(strings.ToUpper(strings.TrimSpace(req.Action)))
	change, err := h.Transitioner.ApplyTransition(c.Request.Context(), id, action, req.ActorID)
	if err != nil {
		var invalid *service.InvalidTransitionError
		switch {
		case errors.Is(err, service.ErrBookingNotFound):
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Booking not found", nil)
		case errors.As(err, &invalid):
			writeError(c, http.StatusConflict, "INVALID_TRANSITION", invalid.Error(), gin.H{
				"action": string(invalid.Action),
				"from":   string(invalid.From),
			})
		case errors.Is(err, service.ErrMissingSignature):
			writeError(c, http.StatusConflict, "MISSING_SIGNATURE", "Completion requires a customer signature", nil)
		case errors.Is(err, service.ErrStatusConflict):
			writeError(c, http.StatusConflict, "STATUS_CONFLICT", "Booking changed concurrently, retry", nil)
		default:
			h.Logger.Error().Err(err).Str("booking_id", id).Msg("transition failed")
			writeError(c, http.StatusInternalServerError, "TRANSITION_ERROR", "Transition failed", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking_id": id,
		"action":     string(action),
		"from":       string(change.ExpectedFrom),
		"to":         string(change.To),
	})
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
