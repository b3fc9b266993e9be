package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Temutjin2k/ride-match/internal/adapter/http/handler"
	"github.com/Temutjin2k/ride-match/internal/adapter/memory"
	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/Temutjin2k/ride-match/internal/service/broadcast"
	ridecalc "github.com/Temutjin2k/ride-match/internal/service/calculator"
	"github.com/Temutjin2k/ride-match/internal/service/ride"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	"github.com/Temutjin2k/ride-match/pkg/trm"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ handler.RideService = (*ride.RideService)(nil)
	_ handler.FareService = (*ride.RideService)(nil)
)

type testAPI struct {
	t   *testing.T
	mux http.Handler
}

// identity передается заголовками, вместо JWT
func withTestIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get("X-User"); raw != "" {
			id := models.Identity{UserID: uuid.MustParse(raw), Role: types.UserRole(r.Header.Get("X-Role"))}
			r = r.WithContext(models.WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	l := logger.New(io.Discard, "handler-test", logger.LevelError)
	store := memory.NewStore()
	estimator := ridecalc.NewEstimator(ridecalc.New(ridecalc.DefaultPolicy()), nil, true, l)
	hub := broadcast.NewHub(16, l)
	t.Cleanup(hub.Close)

	svc := ride.NewRideService(ride.Repos{
		Ride:        memory.NewRideRepo(store),
		Application: memory.NewApplicationRepo(store),
		Event:       memory.NewRideEventRepo(store),
		Review:      memory.NewReviewRepo(store),
	}, trm.Nop{}, hub, estimator, l)

	rides := handler.NewRide(svc, l)
	fares := handler.NewFares(svc, l)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /rides", rides.CreateRide)
	mux.HandleFunc("GET /rides/open", rides.ListOpenRides)
	mux.HandleFunc("GET /rides/{ride_id}", rides.GetRide)
	mux.HandleFunc("POST /rides/{ride_id}/applications", rides.Apply)
	mux.HandleFunc("GET /rides/{ride_id}/applications", rides.ListApplications)
	mux.HandleFunc("POST /rides/{ride_id}/applications/{application_id}/approve", rides.Approve)
	mux.HandleFunc("POST /rides/{ride_id}/applications/{application_id}/reject", rides.Reject)
	mux.HandleFunc("POST /rides/{ride_id}/accept", rides.Accept)
	mux.HandleFunc("POST /rides/{ride_id}/start", rides.StartRide)
	mux.HandleFunc("POST /rides/{ride_id}/complete", rides.CompleteRide)
	mux.HandleFunc("POST /rides/{ride_id}/cancel", rides.CancelRide)
	mux.HandleFunc("POST /rides/{ride_id}/relist", rides.RelistRide)
	mux.HandleFunc("POST /rides/{ride_id}/review", rides.ReviewRide)
	mux.HandleFunc("GET /rides/{ride_id}/events", rides.RideEvents)
	mux.HandleFunc("GET /customers/{customer_id}/active-ride", rides.CustomerActiveRide)
	mux.HandleFunc("GET /customers/{customer_id}/rides", rides.CustomerHistory)
	mux.HandleFunc("GET /riders/{rider_id}/active-ride", rides.RiderActiveRide)
	mux.HandleFunc("GET /fares", fares.FarePolicy)
	mux.HandleFunc("GET /fares/quote", fares.FareQuote)

	return &testAPI{t: t, mux: withTestIdentity(mux)}
}

func (a *testAPI) do(method, path string, who *models.Identity, body any) (int, map[string]any) {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if who != nil {
		req.Header.Set("X-User", who.UserID.String())
		req.Header.Set("X-Role", who.Role.String())
	}

	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func identityOf(role types.UserRole) *models.Identity {
	return &models.Identity{UserID: uuid.New(), Role: role}
}

func rideBody() map[string]any {
	return map[string]any{
		"pickup":    map[string]any{"lat": 14.5995, "lng": 120.9842, "address": "Rizal Park"},
		"dropoff":   map[string]any{"lat": 14.6095, "lng": 120.9842, "address": "Binondo"},
		"ride_type": "Motor Taxi",
	}
}

func field(t *testing.T, m map[string]any, keys ...string) any {
	t.Helper()
	var cur any = m
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		require.True(t, ok, "expected object at %q", k)
		cur = obj[k]
	}
	return cur
}

func TestRideLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	cust := identityOf(types.CustomerRole)
	applicant := identityOf(types.RiderRole)
	winner := identityOf(types.RiderRole)

	code, body := api.do(http.MethodPost, "/rides", cust, rideBody())
	require.Equal(t, http.StatusCreated, code)
	rideID := field(t, body, "ride", "ride_id").(string)
	assert.Equal(t, "Available", field(t, body, "ride", "status"))
	assert.Equal(t, 40.0, field(t, body, "ride", "fare"))

	code, body = api.do(http.MethodGet, "/rides/open", applicant, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["rides"], 1)

	apply := map[string]any{"lat": 14.6, "lng": 120.98}
	code, body = api.do(http.MethodPost, "/rides/"+rideID+"/applications", applicant, apply)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "applied", body["message"])

	code, body = api.do(http.MethodPost, "/rides/"+rideID+"/applications", applicant, apply)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "exist", body["message"])

	code, body = api.do(http.MethodPost, "/rides/"+rideID+"/accept", winner, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Booked", field(t, body, "ride", "status"))
	assert.Equal(t, winner.UserID.String(), field(t, body, "ride", "assigned_rider_id"))

	code, _ = api.do(http.MethodPost, "/rides/"+rideID+"/accept", applicant, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, body = api.do(http.MethodGet, "/rides/"+rideID+"/applications?include_superseded=true", cust, nil)
	require.Equal(t, http.StatusOK, code)
	apps := body["applications"].([]any)
	require.Len(t, apps, 1)
	assert.Equal(t, "Superseded", apps[0].(map[string]any)["status"])

	code, body = api.do(http.MethodGet, "/riders/"+winner.UserID.String()+"/active-ride", winner, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, rideID, field(t, body, "ride", "ride_id"))

	code, _ = api.do(http.MethodPost, "/rides/"+rideID+"/complete", winner, nil)
	assert.Equal(t, http.StatusConflict, code, "complete before start")

	code, _ = api.do(http.MethodPost, "/rides/"+rideID+"/start", cust, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = api.do(http.MethodPost, "/rides/"+rideID+"/complete", applicant, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body = api.do(http.MethodPost, "/rides/"+rideID+"/complete", winner, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Completed", field(t, body, "ride", "status"))

	review := map[string]any{"rating": 5, "comment": "smooth"}
	code, _ = api.do(http.MethodPost, "/rides/"+rideID+"/review", cust, review)
	require.Equal(t, http.StatusCreated, code)
	code, _ = api.do(http.MethodPost, "/rides/"+rideID+"/review", cust, review)
	assert.Equal(t, http.StatusConflict, code)

	code, body = api.do(http.MethodGet, "/rides/"+rideID+"/events", cust, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["events"], 4)

	code, body = api.do(http.MethodGet, "/customers/"+cust.UserID.String()+"/rides?page=1&page_size=10", cust, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["rides"], 1)
	assert.Equal(t, 1.0, field(t, body, "metadata", "total_records"))
}

func TestCancelAndRelistOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	cust := identityOf(types.CustomerRole)
	rider := identityOf(types.RiderRole)

	_, body := api.do(http.MethodPost, "/rides", cust, rideBody())
	rideID := field(t, body, "ride", "ride_id").(string)

	code, _ := api.do(http.MethodPost, "/rides/"+rideID+"/accept", rider, nil)
	require.Equal(t, http.StatusOK, code)

	code, body = api.do(http.MethodPost, "/rides/"+rideID+"/cancel", cust, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Cancelled", field(t, body, "ride", "status"))
	assert.Nil(t, field(t, body, "ride", "assigned_rider_id"))

	code, _ = api.do(http.MethodPost, "/rides/"+rideID+"/start", cust, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = api.do(http.MethodGet, "/customers/"+cust.UserID.String()+"/active-ride", cust, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = api.do(http.MethodPost, "/rides/"+rideID+"/relist", cust, nil)
	require.Equal(t, http.StatusCreated, code)
	assert.NotEqual(t, rideID, field(t, body, "ride", "ride_id"))
	assert.Equal(t, "Available", field(t, body, "ride", "status"))
}

func TestRequestErrors(t *testing.T) {
	api := newTestAPI(t)
	cust := identityOf(types.CustomerRole)
	other := identityOf(types.CustomerRole)
	rider := identityOf(types.RiderRole)

	bad := rideBody()
	bad["ride_type"] = "Helicopter"

	noPickup := rideBody()
	delete(noPickup, "pickup")

	tests := []struct {
		name   string
		method string
		path   string
		who    *models.Identity
		body   any
		want   int
	}{
		{name: "anonymous create", method: http.MethodPost, path: "/rides", body: rideBody(), want: http.StatusUnauthorized},
		{name: "rider creates ride", method: http.MethodPost, path: "/rides", who: rider, body: rideBody(), want: http.StatusForbidden},
		{name: "unknown ride type", method: http.MethodPost, path: "/rides", who: cust, body: bad, want: http.StatusUnprocessableEntity},
		{name: "no pickup", method: http.MethodPost, path: "/rides", who: cust, body: noPickup, want: http.StatusUnprocessableEntity},
		{name: "malformed body", method: http.MethodPost, path: "/rides", who: cust, body: "nope", want: http.StatusBadRequest},
		{name: "bad ride id", method: http.MethodGet, path: "/rides/123", who: cust, want: http.StatusBadRequest},
		{name: "unknown ride", method: http.MethodGet, path: "/rides/" + uuid.NewString(), who: cust, want: http.StatusNotFound},
		{name: "customer lists open rides", method: http.MethodGet, path: "/rides/open", who: cust, want: http.StatusForbidden},
		{name: "foreign history", method: http.MethodGet, path: "/customers/" + cust.UserID.String() + "/rides", who: other, want: http.StatusForbidden},
		{name: "bad page size", method: http.MethodGet, path: "/customers/" + cust.UserID.String() + "/rides?page_size=1000", who: cust, want: http.StatusUnprocessableEntity},
		{name: "bad review", method: http.MethodPost, path: "/rides/" + uuid.NewString() + "/review", who: cust, body: map[string]any{"rating": 9}, want: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := api.do(tt.method, tt.path, tt.who, tt.body)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestFares(t *testing.T) {
	api := newTestAPI(t)

	code, body := api.do(http.MethodGet, "/fares", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 40.0, field(t, body, "fare", "first_2km"))
	assert.Equal(t, 10.0, field(t, body, "fare", "exceeding_2km"))

	code, body = api.do(http.MethodGet, "/fares/quote?pickup=14.5995,120.9842&dropoff=14.6095,120.9842", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 40.0, field(t, body, "quote", "fare"))
	assert.Equal(t, "haversine", field(t, body, "quote", "source"))

	code, _ = api.do(http.MethodGet, "/fares/quote?pickup=14.5995,120.9842", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = api.do(http.MethodGet, "/fares/quote?pickup=abc&dropoff=1,1", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestGetCode(t *testing.T) {
	tests := map[error]int{
		types.ErrRideNoLongerAvailable: http.StatusConflict,
		types.ErrInvalidTransition:     http.StatusConflict,
		types.ErrApplicationNotFound:   http.StatusNotFound,
		types.ErrNotRideParticipant:    http.StatusForbidden,
		types.ErrNoFareCalculated:      http.StatusUnprocessableEntity,
		types.ErrUpstreamUnavailable:   http.StatusServiceUnavailable,
		types.ErrInvalidToken:          http.StatusUnauthorized,
		io.EOF:                         http.StatusInternalServerError,
	}
	for err, want := range tests {
		assert.Equal(t, want, handler.GetCode(err), err.Error())
	}
}
