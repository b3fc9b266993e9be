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
)

const applicationColumns = `id, ride_id, applier_id, applier_lat, applier_lng, applier_address, status, created_at, updated_at`

type ApplicationRepo struct {
	db *pgxpool.Pool
}

func NewApplicationRepo(db *pgxpool.Pool) *ApplicationRepo {
	return &ApplicationRepo{db: db}
}

// Apply locks the ride row FOR SHARE, so a concurrent transition waits for it.
// Must run inside a transaction to hold the lock until commit.
func (r *ApplicationRepo) Apply(ctx context.Context, app *models.Application) (result models.ApplicationResult, err error) {
	const op = "application.apply"
	defer observe(op, time.Now(), &err)

	q := TxorDB(ctx, r.db)

	var status types.RideStatus
	err = q.QueryRow(ctx, `SELECT status FROM rides WHERE id = $1 FOR SHARE;`, app.RideID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return result, types.ErrRideNotFound
		}
		return result, fmt.Errorf("application repo: Apply (ride): %w", err)
	}
	if status != types.StatusAvailable {
		return result, types.ErrRideNotOpen
	}

	insert := `INSERT INTO applications (` + applicationColumns + `)
			   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			   ON CONFLICT (ride_id, applier_id) WHERE status <> 'Superseded' DO NOTHING
			   RETURNING ` + applicationColumns + `;`

	created, err := scanApplication(q.QueryRow(ctx, insert,
		app.ID, app.RideID, app.ApplierID,
		app.ApplierLocation.Latitude, app.ApplierLocation.Longitude, app.ApplierLocation.Address,
		app.Status, app.CreatedAt, app.UpdatedAt,
	))
	if err == nil {
		return models.ApplicationResult{Created: true, Application: created}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return result, fmt.Errorf("application repo: Apply (insert): %w", err)
	}

	existing := `SELECT ` + applicationColumns + ` FROM applications
				 WHERE ride_id = $1 AND applier_id = $2 AND status <> 'Superseded';`

	found, err := scanApplication(q.QueryRow(ctx, existing, app.RideID, app.ApplierID))
	if err != nil {
		return result, fmt.Errorf("application repo: Apply (existing): %w", err)
	}
	return models.ApplicationResult{Created: false, Application: found}, nil
}

func (r *ApplicationRepo) Get(ctx context.Context, rideID, applicationID uuid.UUID) (app *models.Application, err error) {
	const op = "application.get"
	defer observe(op, time.Now(), &err)

	query := `SELECT ` + applicationColumns + ` FROM applications WHERE ride_id = $1 AND id = $2;`

	app, err = scanApplication(TxorDB(ctx, r.db).QueryRow(ctx, query, rideID, applicationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("application repo: Get: %w", err)
	}
	return app, nil
}

func (r *ApplicationRepo) List(ctx context.Context, rideID uuid.UUID) (apps []*models.Application, err error) {
	const op = "application.list"
	defer observe(op, time.Now(), &err)

	query := `SELECT ` + applicationColumns + ` FROM applications
			  WHERE ride_id = $1
			  ORDER BY created_at, id;`

	rows, err := TxorDB(ctx, r.db).Query(ctx, query, rideID)
	if err != nil {
		return nil, fmt.Errorf("application repo: List: %w", err)
	}
	defer rows.Close()

	apps, err = collectApplications(rows)
	if err != nil {
		return nil, fmt.Errorf("application repo: List: %w", err)
	}
	return apps, nil
}

func (r *ApplicationRepo) HasApplied(ctx context.Context, rideID, riderID uuid.UUID) (found bool, err error) {
	const op = "application.has_applied"
	defer observe(op, time.Now(), &err)

	query := `SELECT EXISTS (SELECT 1 FROM applications WHERE ride_id = $1 AND applier_id = $2);`

	if err = TxorDB(ctx, r.db).QueryRow(ctx, query, rideID, riderID).Scan(&found); err != nil {
		return false, fmt.Errorf("application repo: HasApplied: %w", err)
	}
	return found, nil
}

// ResolveMatch accepts the winner's Pending application and supersedes every other Pending one in a single statement.
func (r *ApplicationRepo) ResolveMatch(ctx context.Context, rideID, riderID uuid.UUID) (accepted *models.Application, superseded int, err error) {
	const op = "application.resolve_match"
	defer observe(op, time.Now(), &err)

	query := `UPDATE applications
			  SET status = CASE WHEN applier_id = $2 THEN 'Accepted' ELSE 'Superseded' END,
			      updated_at = now()
			  WHERE ride_id = $1 AND status = 'Pending'
			  RETURNING ` + applicationColumns + `;`

	rows, err := TxorDB(ctx, r.db).Query(ctx, query, rideID, riderID)
	if err != nil {
		return nil, 0, fmt.Errorf("application repo: ResolveMatch: %w", err)
	}
	defer rows.Close()

	apps, err := collectApplications(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("application repo: ResolveMatch: %w", err)
	}

	for _, app := range apps {
		if app.Status == types.ApplicationAccepted {
			accepted = app
			continue
		}
		superseded++
	}
	return accepted, superseded, nil
}

func (r *ApplicationRepo) Reject(ctx context.Context, rideID, applicationID uuid.UUID) (app *models.Application, err error) {
	const op = "application.reject"
	defer observe(op, time.Now(), &err)

	q := TxorDB(ctx, r.db)

	query := `UPDATE applications SET status = 'Rejected', updated_at = now()
			  WHERE ride_id = $1 AND id = $2 AND status = 'Pending'
			  RETURNING ` + applicationColumns + `;`

	app, err = scanApplication(q.QueryRow(ctx, query, rideID, applicationID))
	if err == nil {
		return app, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("application repo: Reject: %w", err)
	}

	var exists bool
	check := `SELECT EXISTS (SELECT 1 FROM applications WHERE ride_id = $1 AND id = $2);`
	if err = q.QueryRow(ctx, check, rideID, applicationID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("application repo: Reject (exists): %w", err)
	}
	if !exists {
		return nil, types.ErrApplicationNotFound
	}
	return nil, types.ErrApplicationNotPending
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var app models.Application
	err := row.Scan(
		&app.ID, &app.RideID, &app.ApplierID,
		&app.ApplierLocation.Latitude, &app.ApplierLocation.Longitude, &app.ApplierLocation.Address,
		&app.Status, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func collectApplications(rows pgx.Rows) ([]*models.Application, error) {
	apps := make([]*models.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}
