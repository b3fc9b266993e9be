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

type RideEventRepo struct {
	db *pgxpool.Pool
}

func NewRideEventRepo(db *pgxpool.Pool) *RideEventRepo {
	return &RideEventRepo{db: db}
}

// Append inserts a new ride event. It joins the transition's transaction when one is in ctx.
func (r *RideEventRepo) Append(ctx context.Context, event models.RideEvent) (err error) {
	const op = "ride_event.append"
	defer observe(op, time.Now(), &err)

	var oldStatus *types.RideStatus
	if event.OldStatus != "" {
		oldStatus = &event.OldStatus
	}

	query := `INSERT INTO ride_events (id, ride_id, event_type, old_status, new_status, assigned_rider_id, actor_id, version, occurred_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`

	_, err = TxorDB(ctx, r.db).Exec(ctx, query,
		event.ID, event.RideID, event.EventType.String(), oldStatus, event.NewStatus,
		event.AssignedRiderID, event.ActorID, event.Version, event.OccurredAt,
	)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return types.ErrRideNotFound
		}
		return fmt.Errorf("ride event repo: Append: %w", err)
	}
	return nil
}

// List returns the ride's events in version order.
func (r *RideEventRepo) List(ctx context.Context, rideID uuid.UUID) (events []models.RideEvent, err error) {
	const op = "ride_event.list"
	defer observe(op, time.Now(), &err)

	query := `SELECT id, ride_id, event_type, coalesce(old_status, ''), new_status, assigned_rider_id, actor_id, version, occurred_at
			  FROM ride_events
			  WHERE ride_id = $1
			  ORDER BY version;`

	rows, err := TxorDB(ctx, r.db).Query(ctx, query, rideID)
	if err != nil {
		return nil, fmt.Errorf("ride event repo: List: %w", err)
	}
	defer rows.Close()

	events = make([]models.RideEvent, 0)
	for rows.Next() {
		var e models.RideEvent
		if err = rows.Scan(&e.ID, &e.RideID, &e.EventType, &e.OldStatus, &e.NewStatus,
			&e.AssignedRiderID, &e.ActorID, &e.Version, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("ride event repo: List (scan): %w", err)
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ride event repo: List: %w", err)
	}
	return events, nil
}

type ReviewRepo struct {
	db *pgxpool.Pool
}

func NewReviewRepo(db *pgxpool.Pool) *ReviewRepo {
	return &ReviewRepo{db: db}
}

func (r *ReviewRepo) Create(ctx context.Context, review *models.Review) (err error) {
	const op = "review.create"
	defer observe(op, time.Now(), &err)

	query := `INSERT INTO ride_reviews (ride_id, customer_id, rider_id, rating, comment, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6);`

	_, err = TxorDB(ctx, r.db).Exec(ctx, query,
		review.RideID, review.CustomerID, review.RiderID, review.Rating, review.Comment, review.CreatedAt)
	switch {
	case err == nil:
		return nil
	case postgres.IsUniqueViolation(err, ""):
		return types.ErrReviewExists
	case postgres.IsForeignKeyViolation(err):
		return types.ErrRideNotFound
	default:
		return fmt.Errorf("review repo: Create: %w", err)
	}
}

func (r *ReviewRepo) Get(ctx context.Context, rideID uuid.UUID) (review *models.Review, err error) {
	const op = "review.get"
	defer observe(op, time.Now(), &err)

	query := `SELECT ride_id, customer_id, rider_id, rating, comment, created_at
			  FROM ride_reviews WHERE ride_id = $1;`

	var rv models.Review
	err = TxorDB(ctx, r.db).QueryRow(ctx, query, rideID).Scan(
		&rv.RideID, &rv.CustomerID, &rv.RiderID, &rv.Rating, &rv.Comment, &rv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrReviewNotFound
		}
		return nil, fmt.Errorf("review repo: Get: %w", err)
	}
	return &rv, nil
}
