package ride_test

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"testing"

	"github.com/Temutjin2k/ride-match/internal/adapter/memory"
	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	ridecalc "github.com/Temutjin2k/ride-match/internal/service/calculator"
	"github.com/Temutjin2k/ride-match/internal/service/ride"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	"github.com/Temutjin2k/ride-match/pkg/trm"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topics []string
	event  models.BroadcastEvent
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *fakePublisher) PublishMany(_ context.Context, topics []string, event models.BroadcastEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{topics: topics, event: event})
	return nil
}

func (p *fakePublisher) topic(topic string) []models.BroadcastEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.BroadcastEvent
	for _, e := range p.events {
		if slices.Contains(e.topics, topic) {
			out = append(out, e.event)
		}
	}
	return out
}

var _ ride.Publisher = (*fakePublisher)(nil)

type routerFunc func(ctx context.Context, from, to models.Location) (float64, error)

func (f routerFunc) DrivingDistance(ctx context.Context, from, to models.Location) (float64, error) {
	return f(ctx, from, to)
}

type fixture struct {
	svc *ride.RideService
	pub *fakePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	l := logger.New(io.Discard, "ride-test", logger.LevelError)
	store := memory.NewStore()
	router := routerFunc(func(context.Context, models.Location, models.Location) (float64, error) {
		return 5000, nil
	})
	estimator := ridecalc.NewEstimator(ridecalc.New(ridecalc.DefaultPolicy()), router, true, l)
	pub := &fakePublisher{}

	svc := ride.NewRideService(ride.Repos{
		Ride:        memory.NewRideRepo(store),
		Application: memory.NewApplicationRepo(store),
		Event:       memory.NewRideEventRepo(store),
		Review:      memory.NewReviewRepo(store),
	}, trm.Nop{}, pub, estimator, l)

	return &fixture{svc: svc, pub: pub}
}

func customer() models.Identity {
	return models.Identity{UserID: uuid.New(), Role: types.CustomerRole}
}

func rider() models.Identity {
	return models.Identity{UserID: uuid.New(), Role: types.RiderRole}
}

var here = models.Location{Latitude: 14.5995, Longitude: 120.9842}

func request() models.RideRequest {
	return models.RideRequest{
		Pickup:   &models.Location{Latitude: 14.5995, Longitude: 120.9842, Address: "Rizal Park"},
		Dropoff:  &models.Location{Latitude: 14.6091, Longitude: 121.0223, Address: "Cubao"},
		RideType: types.MotorTaxi,
	}
}

func (f *fixture) create(t *testing.T, c models.Identity) *models.Ride {
	t.Helper()
	r, err := f.svc.Create(context.Background(), c, request())
	require.NoError(t, err)
	return r
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	c := customer()

	r := f.create(t, c)
	assert.Equal(t, types.StatusAvailable, r.Status)
	assert.Equal(t, 1, r.Version)
	assert.Equal(t, 5.0, r.DistanceKm)
	assert.Equal(t, 70.0, r.Fare)
	assert.Nil(t, r.AssignedRiderID)

	require.Len(t, f.pub.topic(types.TopicNewBookings), 1)
	evts := f.pub.topic(types.RideTopic(r.ID.String()))
	require.Len(t, evts, 1)
	assert.Equal(t, types.EventRideRequested, evts[0].EventType)

	t.Run("one active ride per customer", func(t *testing.T) {
		_, err := f.svc.Create(context.Background(), c, request())
		assert.ErrorIs(t, err, types.ErrActiveRideExists)
		assert.ErrorIs(t, err, types.ErrStateConflict)
	})

	t.Run("riders cannot create", func(t *testing.T) {
		_, err := f.svc.Create(context.Background(), rider(), request())
		assert.ErrorIs(t, err, types.ErrForbiddenRole)
	})

	t.Run("missing dropoff", func(t *testing.T) {
		req := request()
		req.Dropoff = nil
		_, err := f.svc.Create(context.Background(), customer(), req)
		assert.ErrorIs(t, err, types.ErrNoFareCalculated)
	})

	t.Run("unknown ride type", func(t *testing.T) {
		req := request()
		req.RideType = "Helicopter"
		_, err := f.svc.Create(context.Background(), customer(), req)
		assert.ErrorIs(t, err, types.ErrValidation)
	})
}

func TestAccept_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, customer())

	const n = 50
	riders := make([]models.Identity, n)
	for i := range riders {
		riders[i] = rider()
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []uuid.UUID
		losers  int
	)
	start := make(chan struct{})
	for _, rd := range riders {
		wg.Add(1)
		go func(rd models.Identity) {
			defer wg.Done()
			<-start
			_, err := f.svc.Accept(context.Background(), rd, r.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, rd.UserID)
			case errors.Is(err, types.ErrRideNoLongerAvailable):
				losers++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(rd)
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, n-1, losers)

	got, err := f.svc.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusBooked, got.Status)
	require.NotNil(t, got.AssignedRiderID)
	assert.Equal(t, winners[0], *got.AssignedRiderID)
	assert.Equal(t, 2, got.Version)
}

func TestApply_TwiceReturnsExisting(t *testing.T) {
	f := newFixture(t)
	c := customer()
	r := f.create(t, c)
	a := rider()

	first, err := f.svc.Apply(context.Background(), a, r.ID, here)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, types.ApplicationPending, first.Application.Status)

	second, err := f.svc.Apply(context.Background(), a, r.ID, here)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Application.ID, second.Application.ID)

	apps, err := f.svc.ListApplications(context.Background(), c, r.ID, true)
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

func TestApply_Rules(t *testing.T) {
	f := newFixture(t)
	c := customer()
	r := f.create(t, c)

	_, err := f.svc.Apply(context.Background(), c, r.ID, here)
	assert.ErrorIs(t, err, types.ErrForbiddenRole)

	_, err = f.svc.Apply(context.Background(), rider(), uuid.New(), here)
	assert.ErrorIs(t, err, types.ErrRideNotFound)

	_, err = f.svc.Apply(context.Background(), rider(), r.ID, models.Location{Latitude: 95})
	assert.ErrorIs(t, err, types.ErrInvalidCoordinate)

	_, err = f.svc.Accept(context.Background(), rider(), r.ID)
	require.NoError(t, err)

	_, err = f.svc.Apply(context.Background(), rider(), r.ID, here)
	assert.ErrorIs(t, err, types.ErrRideNotOpen)
}

func TestListApplications_ExcludesOwn(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, customer())
	a, b := rider(), rider()

	for _, rd := range []models.Identity{a, b} {
		_, err := f.svc.Apply(context.Background(), rd, r.ID, here)
		require.NoError(t, err)
	}

	apps, err := f.svc.ListApplications(context.Background(), a, r.ID, false)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, b.UserID, apps[0].ApplierID)

	// посторонние не видят заявки и координаты
	_, err = f.svc.ListApplications(context.Background(), rider(), r.ID, false)
	assert.ErrorIs(t, err, types.ErrNotRideParticipant)
	_, err = f.svc.ListApplications(context.Background(), customer(), r.ID, false)
	assert.ErrorIs(t, err, types.ErrNotRideParticipant)
}

func TestInvalidTransitionLeavesRideUnchanged(t *testing.T) {
	f := newFixture(t)
	c := customer()
	r := f.create(t, c)

	_, err := f.svc.Start(context.Background(), c, r.ID)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)

	got, err := f.svc.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusAvailable, got.Status)
	assert.Equal(t, 1, got.Version)
}

// A applies, B accepts directly.
func TestScenario_AcceptSupersedesOtherApplications(t *testing.T) {
	f := newFixture(t)
	c := customer()
	r := f.create(t, c)
	a, b, other := rider(), rider(), rider()

	resA, err := f.svc.Apply(context.Background(), a, r.ID, here)
	require.NoError(t, err)
	_, err = f.svc.Apply(context.Background(), other, r.ID, here)
	require.NoError(t, err)

	match, err := f.svc.Accept(context.Background(), b, r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusBooked, match.Ride.Status)
	assert.Equal(t, b.UserID, *match.Ride.AssignedRiderID)
	assert.Nil(t, match.Accepted)
	assert.Equal(t, 2, match.Superseded)

	apps, err := f.svc.ListApplications(context.Background(), c, r.ID, true)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	for _, app := range apps {
		assert.Equal(t, types.ApplicationSuperseded, app.Status)
	}

	hidden, err := f.svc.ListApplications(context.Background(), c, r.ID, false)
	require.NoError(t, err)
	assert.Empty(t, hidden)

	_, err = f.svc.Accept(context.Background(), a, r.ID)
	assert.ErrorIs(t, err, types.ErrRideNoLongerAvailable)

	_, err = f.svc.Approve(context.Background(), c, r.ID, resA.Application.ID)
	assert.ErrorIs(t, err, types.ErrApplicationNotPending)

	booked := f.pub.topic(types.RideTopic(r.ID.String()))
	require.Len(t, booked, 2)
	assert.Equal(t, types.EventRideBooked, booked[1].EventType)
	assert.Equal(t, b.UserID, *booked[1].AssignedRiderID)
	assert.Len(t, f.pub.topic(types.TopicNewBookings), 2)
}

func TestAccept_MarksOwnApplicationAccepted(t *testing.T) {
	f := newFixture(t)
	c := customer()
	r := f.create(t, c)
	a := rider()

	res, err := f.svc.Apply(context.Background(), a, r.ID, here)
	require.NoError(t, err)

	match, err := f.svc.Accept(context.Background(), a, r.ID)
	require.NoError(t, err)
	require.NotNil(t, match.Accepted)
	assert.Equal(t, res.Application.ID, match.Accepted.ID)
	assert.Equal(t, types.ApplicationAccepted, match.Accepted.Status)
}

func TestAccept_RefusedAfterReject(t *testing.T) {
	f := newFixture(t)
	c := customer()
	r := f.create(t, c)
	a, b := rider(), rider()

	res, err := f.svc.Apply(context.Background(), a, r.ID, here)
	require.NoError(t, err)
	_, err = f.svc.Reject(context.Background(), c, r.ID, res.Application.ID)
	require.NoError(t, err)

	_, err = f.svc.Accept(context.Background(), a, r.ID)
	assert.ErrorIs(t, err, types.ErrApplicationNotPending)

	got, err := f.svc.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusAvailable, got.Status)
	assert.Nil(t, got.AssignedRiderID)
	assert.Len(t, f.pub.topic(types.RideTopic(r.ID.String())), 1)

	match, err := f.svc.Accept(context.Background(), b, r.ID)
	require.NoError(t, err)
	assert.Equal(t, b.UserID, *match.Ride.AssignedRiderID)
}

func TestApproveAndReject(t *testing.T) {
	f := newFixture(t)
	c := customer()
	r := f.create(t, c)
	a, b := rider(), rider()

	resA, err := f.svc.Apply(context.Background(), a, r.ID, here)
	require.NoError(t, err)
	resB, err := f.svc.Apply(context.Background(), b, r.ID, here)
	require.NoError(t, err)

	_, err = f.svc.Reject(context.Background(), rider(), r.ID, resA.Application.ID)
	assert.ErrorIs(t, err, types.ErrNotRideParticipant)

	rejected, err := f.svc.Reject(context.Background(), c, r.ID, resA.Application.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ApplicationRejected, rejected.Status)

	again, err := f.svc.Apply(context.Background(), a, r.ID, here)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, types.ApplicationRejected, again.Application.Status)

	_, err = f.svc.Approve(context.Background(), c, r.ID, resA.Application.ID)
	assert.ErrorIs(t, err, types.ErrApplicationNotPending)

	_, err = f.svc.Approve(context.Background(), b, r.ID, resB.Application.ID)
	assert.ErrorIs(t, err, types.ErrNotRideParticipant)

	match, err := f.svc.Approve(context.Background(), c, r.ID, resB.Application.ID)
	require.NoError(t, err)
	assert.Equal(t, b.UserID, *match.Ride.AssignedRiderID)
	assert.Equal(t, types.ApplicationAccepted, match.Accepted.Status)

	apps, err := f.svc.ListApplications(context.Background(), c, r.ID, true)
	require.NoError(t, err)
	statuses := map[uuid.UUID]types.ApplicationStatus{}
	for _, app := range apps {
		statuses[app.ApplierID] = app.Status
	}
	assert.Equal(t, types.ApplicationRejected, statuses[a.UserID])
	assert.Equal(t, types.ApplicationAccepted, statuses[b.UserID])
}

// Booked, then cancelled by the customer.
func TestScenario_CancelBookedReleasesRider(t *testing.T) {
	f := newFixture(t)
	c := customer()
	r := f.create(t, c)
	b := rider()

	_, err := f.svc.Accept(context.Background(), b, r.ID)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), c, r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.AssignedRiderID)
	assert.Equal(t, 3, cancelled.Version)

	_, err = f.svc.Start(context.Background(), c, r.ID)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)

	// rider is free again and the customer may book a new ride
	_, err = f.svc.ActiveRide(context.Background(), b)
	assert.ErrorIs(t, err, types.ErrRideNotFound)

	r2 := f.create(t, c)
	_, err = f.svc.Accept(context.Background(), b, r2.ID)
	require.NoError(t, err)
}

func TestCancel_Authorization(t *testing.T) {
	f := newFixture(t)
	c := customer()
	r := f.create(t, c)
	b := rider()

	_, err := f.svc.Cancel(context.Background(), rider(), r.ID)
	assert.ErrorIs(t, err, types.ErrNotRideParticipant)

	_, err = f.svc.Accept(context.Background(), b, r.ID)
	require.NoError(t, err)
	_, err = f.svc.Start(context.Background(), b, r.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), c, r.ID)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
	_, err = f.svc.Cancel(context.Background(), b, r.ID)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestRiderCancelsBooked(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, customer())
	b := rider()

	_, err := f.svc.Accept(context.Background(), b, r.ID)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), b, r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.AssignedRiderID)
}

func TestRiderBusy(t *testing.T) {
	f := newFixture(t)
	b := rider()
	r1 := f.create(t, customer())
	r2 := f.create(t, customer())

	_, err := f.svc.Accept(context.Background(), b, r1.ID)
	require.NoError(t, err)

	_, err = f.svc.Accept(context.Background(), b, r2.ID)
	assert.ErrorIs(t, err, types.ErrRiderBusy)

	got, err := f.svc.Get(context.Background(), r2.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusAvailable, got.Status)
	assert.Equal(t, 1, got.Version)

	active, err := f.svc.ActiveRide(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, r1.ID, active.ID)
}

func TestAccept_OwnRide(t *testing.T) {
	f := newFixture(t)
	c := customer()
	r := f.create(t, c)

	_, err := f.svc.Accept(context.Background(), models.Identity{UserID: c.UserID, Role: types.RiderRole}, r.ID)
	assert.ErrorIs(t, err, types.ErrOwnRide)

	_, err = f.svc.Accept(context.Background(), customer(), r.ID)
	assert.ErrorIs(t, err, types.ErrForbiddenRole)
}

func TestFullLifecycleAndReview(t *testing.T) {
	f := newFixture(t)
	c := customer()
	r := f.create(t, c)
	b := rider()

	_, err := f.svc.Review(context.Background(), c, r.ID, 5, "")
	assert.ErrorIs(t, err, types.ErrRideNotCompleted)

	_, err = f.svc.Accept(context.Background(), b, r.ID)
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), c, r.ID)
	assert.ErrorIs(t, err, types.ErrNotRideParticipant)

	_, err = f.svc.Start(context.Background(), c, r.ID)
	require.NoError(t, err)

	done, err := f.svc.Complete(context.Background(), b, r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, done.Status)
	assert.Equal(t, b.UserID, *done.AssignedRiderID)
	assert.Equal(t, 4, done.Version)

	_, err = f.svc.Cancel(context.Background(), c, r.ID)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)

	_, err = f.svc.Review(context.Background(), c, r.ID, 6, "")
	assert.ErrorIs(t, err, types.ErrValidation)

	review, err := f.svc.Review(context.Background(), c, r.ID, 5, " smooth ride ")
	require.NoError(t, err)
	assert.Equal(t, b.UserID, review.RiderID)
	assert.Equal(t, "smooth ride", review.Comment)

	_, err = f.svc.Review(context.Background(), c, r.ID, 4, "")
	assert.ErrorIs(t, err, types.ErrReviewExists)

	events, err := f.svc.Events(context.Background(), b, r.ID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	wantTypes := []types.RideEvent{types.EventRideRequested, types.EventRideBooked, types.EventRideStarted, types.EventRideCompleted}
	for i, e := range events {
		assert.Equal(t, wantTypes[i], e.EventType)
		assert.Equal(t, i+1, e.Version)
	}

	_, err = f.svc.Events(context.Background(), rider(), r.ID)
	assert.ErrorIs(t, err, types.ErrNotRideParticipant)
}

func TestRelist(t *testing.T) {
	f := newFixture(t)
	c := customer()
	r := f.create(t, c)

	_, err := f.svc.Relist(context.Background(), c, r.ID)
	assert.ErrorIs(t, err, types.ErrRideNotCancelled)

	_, err = f.svc.Cancel(context.Background(), c, r.ID)
	require.NoError(t, err)

	_, err = f.svc.Relist(context.Background(), customer(), r.ID)
	assert.ErrorIs(t, err, types.ErrNotRideParticipant)

	fresh, err := f.svc.Relist(context.Background(), c, r.ID)
	require.NoError(t, err)
	assert.NotEqual(t, r.ID, fresh.ID)
	assert.Equal(t, types.StatusAvailable, fresh.Status)
	assert.Equal(t, r.Pickup, fresh.Pickup)

	old, err := f.svc.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, old.Status)
}

func TestPublishFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")

	r := f.create(t, customer())
	_, err := f.svc.Accept(context.Background(), rider(), r.ID)
	require.NoError(t, err)

	got, err := f.svc.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusBooked, got.Status)
}

func TestHistoryAndOpenRides(t *testing.T) {
	f := newFixture(t)
	c := customer()
	b := rider()

	for range 3 {
		r := f.create(t, c)
		_, err := f.svc.Cancel(context.Background(), c, r.ID)
		require.NoError(t, err)
	}
	open := f.create(t, c)

	rides, meta, err := f.svc.History(context.Background(), c, models.HistoryFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, rides, 2)
	assert.Equal(t, 4, meta.TotalRecords)
	assert.Equal(t, 2, meta.LastPage)

	cancelled, _, err := f.svc.History(context.Background(), c, models.HistoryFilter{Page: 1, PageSize: 10, Status: types.StatusCancelled})
	require.NoError(t, err)
	assert.Len(t, cancelled, 3)

	list, err := f.svc.ListOpen(context.Background(), b)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, open.ID, list[0].ID)

	_, err = f.svc.ListOpen(context.Background(), c)
	assert.ErrorIs(t, err, types.ErrForbiddenRole)

	active, err := f.svc.ActiveRide(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, open.ID, active.ID)
}

func TestAuthorizeSubscription(t *testing.T) {
	f := newFixture(t)
	c := customer()
	r := f.create(t, c)
	applicant, stranger := rider(), rider()
	topic := types.RideTopic(r.ID.String())

	_, err := f.svc.Apply(context.Background(), applicant, r.ID, here)
	require.NoError(t, err)

	assert.NoError(t, f.svc.AuthorizeSubscription(context.Background(), stranger, types.TopicNewBookings))
	assert.ErrorIs(t, f.svc.AuthorizeSubscription(context.Background(), c, types.TopicNewBookings), types.ErrForbiddenRole)

	assert.NoError(t, f.svc.AuthorizeSubscription(context.Background(), c, topic))
	assert.NoError(t, f.svc.AuthorizeSubscription(context.Background(), applicant, topic))
	assert.ErrorIs(t, f.svc.AuthorizeSubscription(context.Background(), stranger, topic), types.ErrNotRideParticipant)

	assert.ErrorIs(t, f.svc.AuthorizeSubscription(context.Background(), c, "driver.location"), types.ErrValidation)
	assert.ErrorIs(t, f.svc.AuthorizeSubscription(context.Background(), c, "ride.not-a-uuid"), types.ErrValidation)
	assert.ErrorIs(t, f.svc.AuthorizeSubscription(context.Background(), c, types.RideTopic(uuid.NewString())), types.ErrRideNotFound)
}
