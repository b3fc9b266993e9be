package handler

import (
	"context"
	"net/http"

	"github.com/Temutjin2k/ride-match/internal/adapter/http/handler/dto"
	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
	"github.com/Temutjin2k/ride-match/pkg/validator"
	"github.com/google/uuid"
)

type RideService interface {
	Create(ctx context.Context, id models.Identity, req models.RideRequest) (*models.Ride, error)
	Get(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	ListOpen(ctx context.Context, id models.Identity) ([]*models.Ride, error)
	ActiveRide(ctx context.Context, id models.Identity) (*models.Ride, error)
	History(ctx context.Context, id models.Identity, filter models.HistoryFilter) ([]*models.Ride, models.Metadata, error)
	Relist(ctx context.Context, id models.Identity, rideID uuid.UUID) (*models.Ride, error)

	Apply(ctx context.Context, id models.Identity, rideID uuid.UUID, loc models.Location) (models.ApplicationResult, error)
	ListApplications(ctx context.Context, id models.Identity, rideID uuid.UUID, includeSuperseded bool) ([]*models.Application, error)
	Approve(ctx context.Context, id models.Identity, rideID, applicationID uuid.UUID) (*models.MatchResult, error)
	Reject(ctx context.Context, id models.Identity, rideID, applicationID uuid.UUID) (*models.Application, error)
	Accept(ctx context.Context, id models.Identity, rideID uuid.UUID) (*models.MatchResult, error)

	Start(ctx context.Context, id models.Identity, rideID uuid.UUID) (*models.Ride, error)
	Complete(ctx context.Context, id models.Identity, rideID uuid.UUID) (*models.Ride, error)
	Cancel(ctx context.Context, id models.Identity, rideID uuid.UUID) (*models.Ride, error)

	Review(ctx context.Context, id models.Identity, rideID uuid.UUID, rating int, comment string) (*models.Review, error)
	Events(ctx context.Context, id models.Identity, rideID uuid.UUID) ([]models.RideEvent, error)
}

type Ride struct {
	service RideService
	l       logger.Logger
}

func NewRide(service RideService, l logger.Logger) *Ride {
	return &Ride{
		service: service,
		l:       l,
	}
}

// rideRequest parses identity and {ride_id}, writing the error response itself on failure.
func (h *Ride) rideRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (context.Context, models.Identity, uuid.UUID, bool) {
	id, err := identity(r)
	if err != nil {
		errorResponse(w, http.StatusUnauthorized, err.Error())
		return ctx, models.Identity{}, uuid.Nil, false
	}

	rideID, err := pathUUID(r, "ride_id")
	if err != nil {
		h.l.Warn(ctx, "invalid ride id", "ride_id", r.PathValue("ride_id"))
		badRequestResponse(w, err.Error())
		return ctx, models.Identity{}, uuid.Nil, false
	}
	return wrap.WithRideID(ctx, rideID.String()), id, rideID, true
}

func (h *Ride) writeRide(ctx context.Context, w http.ResponseWriter, status int, ride *models.Ride) {
	if err := writeJSON(w, status, envelope{"ride": dto.NewRideResponse(ride)}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// CreateRide godoc
// @Summary      Create ride
// @Description  Customer creates a ride request. Fare is quoted from the route distance.
// @Tags         Rides
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      dto.CreateRideRequest  true  "Ride request"
// @Success      201      {object}  dto.RideResponse
// @Failure      409      {object}  map[string]string
// @Failure      422      {object}  map[string]string
// @Router       /rides [post]
func (h *Ride) CreateRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "create_ride")

	id, err := identity(r)
	if err != nil {
		errorResponse(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req dto.CreateRideRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Warn(ctx, "failed to read request JSON data", "error", err.Error())
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	ride, err := h.service.Create(ctx, id, req.ToModel())
	if err != nil {
		serviceErrorResponse(ctx, w, h.l, "failed to create ride", err)
		return
	}

	h.writeRide(ctx, w, http.StatusCreated, ride)
}

// ListOpenRides godoc
// @Summary      List open rides
// @Tags         Rides
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   dto.RideResponse
// @Router       /rides/open [get]
func (h *Ride) ListOpenRides(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "list_open_rides")

	id, err := identity(r)
	if err != nil {
		errorResponse(w, http.StatusUnauthorized, err.Error())
		return
	}

	rides, err := h.service.ListOpen(ctx, id)
	if err != nil {
		serviceErrorResponse(ctx, w, h.l, "failed to list open rides", err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"rides": dto.NewRideResponses(rides)}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// GetRide godoc
// @Summary      Ride status
// @Description  Authoritative ride state. Clients re-read it after every broadcast hint.
// @Tags         Rides
// @Produce      json
// @Security     BearerAuth
// @Param        ride_id  path      string  true  "Ride ID"
// @Success      200      {object}  dto.RideResponse
// @Failure      404      {object}  map[string]string
// @Router       /rides/{ride_id} [get]
func (h *Ride) GetRide(w http.ResponseWriter, r *http.Request) {
	ctx, _, rideID, ok := h.rideRequest(wrap.WithAction(r.Context(), "get_ride"), w, r)
	if !ok {
		return
	}

	ride, err := h.service.Get(ctx, rideID)
	if err != nil {
		serviceErrorResponse(ctx, w, h.l, "failed to get ride", err)
		return
	}

	h.writeRide(ctx, w, http.StatusOK, ride)
}

// Apply godoc
// @Summary      Apply for a ride
// @Description  Rider applies for an Available ride. A repeated apply returns the existing application.
// @Tags         Applications
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        ride_id  path      string            true  "Ride ID"
// @Param        request  body      dto.ApplyRequest  true  "Rider position"
// @Success      201      {object}  dto.ApplicationResponse
// @Success      200      {object}  dto.ApplicationResponse
// @Failure      409      {object}  map[string]string
// @Router       /rides/{ride_id}/applications [post]
func (h *Ride) Apply(w http.ResponseWriter, r *http.Request) {
	ctx, id, rideID, ok := h.rideRequest(wrap.WithAction(r.Context(), "apply"), w, r)
	if !ok {
		return
	}

	var req dto.ApplyRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Warn(ctx, "failed to read request JSON data", "error", err.Error())
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	res, err := h.service.Apply(ctx, id, rideID, *req.ToModel())
	if err != nil {
		serviceErrorResponse(ctx, w, h.l, "failed to apply for ride", err)
		return
	}

	status, message := http.StatusCreated, dto.ApplyMessageApplied
	if !res.Created {
		status, message = http.StatusOK, dto.ApplyMessageExists
	}

	response := envelope{
		"message":     message,
		"application": dto.NewApplicationResponse(res.Application),
	}
	if err := writeJSON(w, status, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// ListApplications godoc
// @Summary      List applications of a ride
// @Tags         Applications
// @Produce      json
// @Security     BearerAuth
// @Param        ride_id             path   string  true   "Ride ID"
// @Param        include_superseded  query  bool    false  "Include superseded applications"
// @Success      200  {array}  dto.ApplicationResponse
// @Failure      403  {object}  map[string]string
// @Router       /rides/{ride_id}/applications [get]
func (h *Ride) ListApplications(w http.ResponseWriter, r *http.Request) {
	ctx, id, rideID, ok := h.rideRequest(wrap.WithAction(r.Context(), "list_applications"), w, r)
	if !ok {
		return
	}

	v := validator.New()
	includeSuperseded := queryBool(r, "include_superseded", v)
	if !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	apps, err := h.service.ListApplications(ctx, id, rideID, includeSuperseded)
	if err != nil {
		serviceErrorResponse(ctx, w, h.l, "failed to list applications", err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"applications": dto.NewApplicationResponses(apps)}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// Approve godoc
// @Summary      Approve an application
// @Description  Customer assigns the applicant. Other pending applications become Superseded.
// @Tags         Applications
// @Produce      json
// @Security     BearerAuth
// @Param        ride_id         path  string  true  "Ride ID"
// @Param        application_id  path  string  true  "Application ID"
// @Success      200  {object}  map[string]any
// @Failure      409  {object}  map[string]string
// @Router       /rides/{ride_id}/applications/{application_id}/approve [post]
func (h *Ride) Approve(w http.ResponseWriter, r *http.Request) {
	ctx, id, rideID, ok := h.rideRequest(wrap.WithAction(r.Context(), "approve"), w, r)
	if !ok {
		return
	}
	appID, err := pathUUID(r, "application_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}
	ctx = wrap.WithApplicationID(ctx, appID.String())

	res, err := h.service.Approve(ctx, id, rideID, appID)
	if err != nil {
		serviceErrorResponse(ctx, w, h.l, "failed to approve application", err)
		return
	}
	h.writeMatch(ctx, w, res)
}

// Reject godoc
// @Summary      Reject an application
// @Tags         Applications
// @Produce      json
// @Security     BearerAuth
// @Param        ride_id         path  string  true  "Ride ID"
// @Param        application_id  path  string  true  "Application ID"
// @Success      200  {object}  dto.ApplicationResponse
// @Router       /rides/{ride_id}/applications/{application_id}/reject [post]
func (h *Ride) Reject(w http.ResponseWriter, r *http.Request) {
	ctx, id, rideID, ok := h.rideRequest(wrap.WithAction(r.Context(), "reject"), w, r)
	if !ok {
		return
	}
	appID, err := pathUUID(r, "application_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}
	ctx = wrap.WithApplicationID(ctx, appID.String())

	app, err := h.service.Reject(ctx, id, rideID, appID)
	if err != nil {
		serviceErrorResponse(ctx, w, h.l, "failed to reject application", err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"application": dto.NewApplicationResponse(app)}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// Accept godoc
// @Summary      Accept a ride
// @Description  Rider takes an Available ride directly. Exactly one concurrent accept wins.
// @Tags         Rides
// @Produce      json
// @Security     BearerAuth
// @Param        ride_id  path  string  true  "Ride ID"
// @Success      200  {object}  map[string]any
// @Failure      409  {object}  map[string]string
// @Router       /rides/{ride_id}/accept [post]
func (h *Ride) Accept(w http.ResponseWriter, r *http.Request) {
	ctx, id, rideID, ok := h.rideRequest(wrap.WithAction(r.Context(), "accept"), w, r)
	if !ok {
		return
	}

	res, err := h.service.Accept(ctx, id, rideID)
	if err != nil {
		serviceErrorResponse(ctx, w, h.l, "failed to accept ride", err)
		return
	}
	h.writeMatch(ctx, w, res)
}

func (h *Ride) writeMatch(ctx context.Context, w http.ResponseWriter, res *models.MatchResult) {
	response := envelope{
		"ride":        dto.NewRideResponse(res.Ride),
		"application": dto.NewApplicationResponse(res.Accepted),
		"superseded":  res.Superseded,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// StartRide godoc
// @Summary      Start a booked ride
// @Tags         Rides
// @Produce      json
// @Security     BearerAuth
// @Param        ride_id  path  string  true  "Ride ID"
// @Success      200  {object}  dto.RideResponse
// @Failure      409  {object}  map[string]string
// @Router       /rides/{ride_id}/start [post]
func (h *Ride) StartRide(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "start_ride", h.service.Start)
}

// CompleteRide godoc
// @Summary      Complete a ride in transit
// @Tags         Rides
// @Produce      json
// @Security     BearerAuth
// @Param        ride_id  path  string  true  "Ride ID"
// @Success      200  {object}  dto.RideResponse
// @Router       /rides/{ride_id}/complete [post]
func (h *Ride) CompleteRide(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "complete_ride", h.service.Complete)
}

// CancelRide godoc
// @Summary      Cancel a ride
// @Description  Customer cancels an Available or Booked ride, the assigned rider may cancel a Booked one.
// @Tags         Rides
// @Produce      json
// @Security     BearerAuth
// @Param        ride_id  path  string  true  "Ride ID"
// @Success      200  {object}  dto.RideResponse
// @Router       /rides/{ride_id}/cancel [post]
func (h *Ride) CancelRide(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "cancel_ride", h.service.Cancel)
}

// RelistRide godoc
// @Summary      Relist a cancelled ride
// @Description  Creates a new Available ride with the same route and type.
// @Tags         Rides
// @Produce      json
// @Security     BearerAuth
// @Param        ride_id  path  string  true  "Cancelled ride ID"
// @Success      201  {object}  dto.RideResponse
// @Router       /rides/{ride_id}/relist [post]
func (h *Ride) RelistRide(w http.ResponseWriter, r *http.Request) {
	ctx, id, rideID, ok := h.rideRequest(wrap.WithAction(r.Context(), "relist_ride"), w, r)
	if !ok {
		return
	}

	ride, err := h.service.Relist(ctx, id, rideID)
	if err != nil {
		serviceErrorResponse(ctx, w, h.l, "failed to relist ride", err)
		return
	}
	h.writeRide(ctx, w, http.StatusCreated, ride)
}

type transitionFunc func(ctx context.Context, id models.Identity, rideID uuid.UUID) (*models.Ride, error)

func (h *Ride) lifecycle(w http.ResponseWriter, r *http.Request, action string, fn transitionFunc) {
	ctx, id, rideID, ok := h.rideRequest(wrap.WithAction(r.Context(), action), w, r)
	if !ok {
		return
	}

	ride, err := fn(ctx, id, rideID)
	if err != nil {
		serviceErrorResponse(ctx, w, h.l, "failed to change ride status", err)
		return
	}
	h.writeRide(ctx, w, http.StatusOK, ride)
}

// ReviewRide godoc
// @Summary      Review a completed ride
// @Tags         Rides
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        ride_id  path  string             true  "Ride ID"
// @Param        request  body  dto.ReviewRequest  true  "Review"
// @Success      201  {object}  models.Review
// @Failure      409  {object}  map[string]string
// @Router       /rides/{ride_id}/review [post]
func (h *Ride) ReviewRide(w http.ResponseWriter, r *http.Request) {
	ctx, id, rideID, ok := h.rideRequest(wrap.WithAction(r.Context(), "review_ride"), w, r)
	if !ok {
		return
	}

	var req dto.ReviewRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	review, err := h.service.Review(ctx, id, rideID, req.Rating, req.Comment)
	if err != nil {
		serviceErrorResponse(ctx, w, h.l, "failed to review ride", err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, envelope{"review": review}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// RideEvents godoc
// @Summary      Ride audit log
// @Description  Every status change of the ride, oldest first.
// @Tags         Rides
// @Produce      json
// @Security     BearerAuth
// @Param        ride_id  path  string  true  "Ride ID"
// @Success      200  {array}  models.RideEvent
// @Router       /rides/{ride_id}/events [get]
func (h *Ride) RideEvents(w http.ResponseWriter, r *http.Request) {
	ctx, id, rideID, ok := h.rideRequest(wrap.WithAction(r.Context(), "ride_events"), w, r)
	if !ok {
		return
	}

	events, err := h.service.Events(ctx, id, rideID)
	if err != nil {
		serviceErrorResponse(ctx, w, h.l, "failed to list ride events", err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"events": events}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// self checks that {user_param} is the caller with the expected role.
func (h *Ride) self(w http.ResponseWriter, r *http.Request, param string, role types.UserRole) (models.Identity, bool) {
	id, err := identity(r)
	if err != nil {
		errorResponse(w, http.StatusUnauthorized, err.Error())
		return models.Identity{}, false
	}

	userID, err := pathUUID(r, param)
	if err != nil {
		badRequestResponse(w, err.Error())
		return models.Identity{}, false
	}
	if userID != id.UserID || id.Role != role {
		errorResponse(w, http.StatusForbidden, "forbidden: can only access own rides")
		return models.Identity{}, false
	}
	return id, true
}

// CustomerActiveRide godoc
// @Summary      Customer's active ride
// @Tags         Customers
// @Produce      json
// @Security     BearerAuth
// @Param        customer_id  path  string  true  "Customer ID"
// @Success      200  {object}  dto.RideResponse
// @Failure      404  {object}  map[string]string
// @Router       /customers/{customer_id}/active-ride [get]
func (h *Ride) CustomerActiveRide(w http.ResponseWriter, r *http.Request) {
	h.activeRide(w, r, "customer_id", types.CustomerRole)
}

// RiderActiveRide godoc
// @Summary      Rider's active ride
// @Tags         Riders
// @Produce      json
// @Security     BearerAuth
// @Param        rider_id  path  string  true  "Rider ID"
// @Success      200  {object}  dto.RideResponse
// @Failure      404  {object}  map[string]string
// @Router       /riders/{rider_id}/active-ride [get]
func (h *Ride) RiderActiveRide(w http.ResponseWriter, r *http.Request) {
	h.activeRide(w, r, "rider_id", types.RiderRole)
}

func (h *Ride) activeRide(w http.ResponseWriter, r *http.Request, param string, role types.UserRole) {
	ctx := wrap.WithAction(r.Context(), "active_ride")

	id, ok := h.self(w, r, param, role)
	if !ok {
		return
	}

	ride, err := h.service.ActiveRide(ctx, id)
	if err != nil {
		serviceErrorResponse(ctx, w, h.l, "failed to get active ride", err)
		return
	}
	h.writeRide(ctx, w, http.StatusOK, ride)
}

// CustomerHistory godoc
// @Summary      Customer ride history
// @Tags         Customers
// @Produce      json
// @Security     BearerAuth
// @Param        customer_id  path   string  true   "Customer ID"
// @Param        page         query  int     false  "Page"
// @Param        page_size    query  int     false  "Page size"
// @Param        status       query  string  false  "Ride status"
// @Success      200  {object}  map[string]any
// @Router       /customers/{customer_id}/rides [get]
func (h *Ride) CustomerHistory(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, "customer_id", types.CustomerRole)
}

// RiderHistory godoc
// @Summary      Rider ride history
// @Tags         Riders
// @Produce      json
// @Security     BearerAuth
// @Param        rider_id   path   string  true   "Rider ID"
// @Param        page       query  int     false  "Page"
// @Param        page_size  query  int     false  "Page size"
// @Param        status     query  string  false  "Ride status"
// @Success      200  {object}  map[string]any
// @Router       /riders/{rider_id}/rides [get]
func (h *Ride) RiderHistory(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, "rider_id", types.RiderRole)
}

func (h *Ride) history(w http.ResponseWriter, r *http.Request, param string, role types.UserRole) {
	ctx := wrap.WithAction(r.Context(), "ride_history")

	id, ok := h.self(w, r, param, role)
	if !ok {
		return
	}

	v := validator.New()
	filter := models.HistoryFilter{
		Page:     queryInt(r, "page", 1, v),
		PageSize: queryInt(r, "page_size", models.DefaultPageSize, v),
		Status:   types.RideStatus(r.URL.Query().Get("status")),
	}
	if filter.Validate(v); !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	rides, meta, err := h.service.History(ctx, id, filter)
	if err != nil {
		serviceErrorResponse(ctx, w, h.l, "failed to load ride history", err)
		return
	}

	response := envelope{
		"rides":    dto.NewRideResponses(rides),
		"metadata": meta,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}
