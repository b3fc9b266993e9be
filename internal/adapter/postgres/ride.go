package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/Temutjin2k/ride-match/pkg/postgres"
)

const (
	activeCustomerIndex = "rides_active_customer_uq"
	activeRiderIndex    = "rides_active_rider_uq"
)

const rideColumns = `id, customer_id, assigned_rider_id,
	pickup_lat, pickup_lng, pickup_address,
	dropoff_lat, dropoff_lng, dropoff_address,
	ride_type, fare, distance_km, fare_source,
	status, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type RideRepo struct {
	db *pgxpool.Pool
}

func NewRideRepo(db *pgxpool.Pool) *RideRepo {
	return &RideRepo{db: db}
}

func (r *RideRepo) Create(ctx context.Context, ride *models.Ride) (err error) {
	const op = "ride.create"
	defer observe(op, time.Now(), &err)

	q := TxorDB(ctx, r.db)

	query := `INSERT INTO rides (` + rideColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17);`

	_, err = q.Exec(ctx, query,
		ride.ID, ride.CustomerID, ride.AssignedRiderID,
		ride.Pickup.Latitude, ride.Pickup.Longitude, ride.Pickup.Address,
		ride.Dropoff.Latitude, ride.Dropoff.Longitude, ride.Dropoff.Address,
		ride.RideType, ride.Fare, ride.DistanceKm, ride.FareSource,
		ride.Status, ride.Version, ride.CreatedAt, ride.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, activeCustomerIndex) {
			return types.ErrActiveRideExists
		}
		return fmt.Errorf("ride repo: Create: %w", err)
	}
	return nil
}

func (r *RideRepo) Get(ctx context.Context, rideID uuid.UUID) (ride *models.Ride, err error) {
	const op = "ride.get"
	defer observe(op, time.Now(), &err)

	q := TxorDB(ctx, r.db)

	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1;`

	ride, err = scanRide(q.QueryRow(ctx, query, rideID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrRideNotFound
		}
		return nil, fmt.Errorf("ride repo: Get: %w", err)
	}
	return ride, nil
}

// Transition is a compare-and-set on status: the row is touched only while it is still in t.From.
func (r *RideRepo) Transition(ctx context.Context, t models.Transition) (ride *models.Ride, err error) {
	const op = "ride.transition"
	defer observe(op, time.Now(), &err)

	q := TxorDB(ctx, r.db)

	query := `UPDATE rides
			  SET status = $3, assigned_rider_id = $4, version = version + 1, updated_at = now()
			  WHERE id = $1 AND status = $2
			  RETURNING ` + rideColumns + `;`

	ride, err = scanRide(q.QueryRow(ctx, query, t.RideID, t.From, t.To, t.AssignedRiderID))
	switch {
	case err == nil && t.Assigns():
		// строка поездки уже заблокирована, порядок блокировок тот же, что в Apply
		if err = r.checkWinner(ctx, q, t); err != nil {
			return nil, err
		}
		return ride, nil
	case err == nil:
		return ride, nil
	case postgres.IsUniqueViolation(err, activeRiderIndex):
		return nil, types.ErrRiderBusy
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("ride repo: Transition: %w", err)
	}

	// строка не обновилась: либо поездки нет, либо статус уже другой
	var exists bool
	if err = q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rides WHERE id = $1);`, t.RideID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("ride repo: Transition (exists): %w", err)
	}
	if !exists {
		return nil, types.ErrRideNotFound
	}
	return nil, types.ErrStaleState
}

// checkWinner locks the winner's live application and validates it.
// A failure leaves the ride updated, so the caller has to run Transition in a transaction.
func (r *RideRepo) checkWinner(ctx context.Context, q Querier, t models.Transition) error {
	query := `SELECT ` + applicationColumns + ` FROM applications
			  WHERE ride_id = $1 AND applier_id = $2 AND status <> 'Superseded'
			  FOR UPDATE;`

	app, err := scanApplication(q.QueryRow(ctx, query, t.RideID, *t.AssignedRiderID))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		app = nil
	case err != nil:
		return fmt.Errorf("ride repo: Transition (application): %w", err)
	}
	return t.CheckWinner(app)
}

func (r *RideRepo) ListOpen(ctx context.Context) (rides []*models.Ride, err error) {
	const op = "ride.list_open"
	defer observe(op, time.Now(), &err)

	q := TxorDB(ctx, r.db)

	query := `SELECT ` + rideColumns + ` FROM rides
			  WHERE status = $1
			  ORDER BY created_at DESC;`

	rows, err := q.Query(ctx, query, types.StatusAvailable)
	if err != nil {
		return nil, fmt.Errorf("ride repo: ListOpen: %w", err)
	}
	defer rows.Close()

	rides, err = collectRides(rows)
	if err != nil {
		return nil, fmt.Errorf("ride repo: ListOpen: %w", err)
	}
	return rides, nil
}

func (r *RideRepo) GetActiveByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides
			  WHERE customer_id = $1 AND status IN ('Available', 'Booked', 'In Transit')
			  LIMIT 1;`
	return r.getOne(ctx, "ride.active_customer", query, customerID)
}

func (r *RideRepo) GetActiveByRider(ctx context.Context, riderID uuid.UUID) (*models.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides
			  WHERE assigned_rider_id = $1 AND status IN ('Booked', 'In Transit')
			  LIMIT 1;`
	return r.getOne(ctx, "ride.active_rider", query, riderID)
}

func (r *RideRepo) getOne(ctx context.Context, op, query string, args ...any) (ride *models.Ride, err error) {
	defer observe(op, time.Now(), &err)

	ride, err = scanRide(TxorDB(ctx, r.db).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrRideNotFound
		}
		return nil, fmt.Errorf("ride repo: %s: %w", op, err)
	}
	return ride, nil
}

// History returns one page of the user's rides, newest first, and the total number of matching rides.
func (r *RideRepo) History(ctx context.Context, role types.UserRole, userID uuid.UUID, filter models.HistoryFilter) (rides []*models.Ride, total int, err error) {
	const op = "ride.history"
	defer observe(op, time.Now(), &err)

	var column string
	switch role {
	case types.CustomerRole:
		column = "customer_id"
	case types.RiderRole:
		column = "assigned_rider_id"
	default:
		return []*models.Ride{}, 0, nil
	}

	q := TxorDB(ctx, r.db)

	query := `SELECT count(*) OVER(), ` + rideColumns + ` FROM rides
			  WHERE ` + column + ` = $1 AND ($2 = '' OR status = $2)
			  ORDER BY created_at DESC, id
			  LIMIT $3 OFFSET $4;`

	rows, err := q.Query(ctx, query, userID, filter.Status.String(), filter.Limit(), filter.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("ride repo: History: %w", err)
	}
	defer rows.Close()

	rides = make([]*models.Ride, 0, filter.Limit())
	for rows.Next() {
		var ride models.Ride
		if err = rows.Scan(append([]any{&total}, rideDest(&ride)...)...); err != nil {
			return nil, 0, fmt.Errorf("ride repo: History (scan): %w", err)
		}
		rides = append(rides, &ride)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ride repo: History: %w", err)
	}

	// страница за пределами выборки: окно ничего не вернуло, считаем отдельно
	if len(rides) == 0 && filter.Offset() > 0 {
		countQuery := `SELECT count(*) FROM rides WHERE ` + column + ` = $1 AND ($2 = '' OR status = $2);`
		if err = q.QueryRow(ctx, countQuery, userID, filter.Status.String()).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("ride repo: History (count): %w", err)
		}
	}

	return rides, total, nil
}

func rideDest(ride *models.Ride) []any {
	return []any{
		&ride.ID, &ride.CustomerID, &ride.AssignedRiderID,
		&ride.Pickup.Latitude, &ride.Pickup.Longitude, &ride.Pickup.Address,
		&ride.Dropoff.Latitude, &ride.Dropoff.Longitude, &ride.Dropoff.Address,
		&ride.RideType, &ride.Fare, &ride.DistanceKm, &ride.FareSource,
		&ride.Status, &ride.Version, &ride.CreatedAt, &ride.UpdatedAt,
	}
}

func scanRide(row rowScanner) (*models.Ride, error) {
	var ride models.Ride
	if err := row.Scan(rideDest(&ride)...); err != nil {
		return nil, err
	}
	return &ride, nil
}

func collectRides(rows pgx.Rows) ([]*models.Ride, error) {
	rides := make([]*models.Ride, 0)
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}
