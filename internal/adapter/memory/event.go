package memory

import (
	"context"
	"slices"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/google/uuid"
)

type RideEventRepo struct {
	s *Store
}

func NewRideEventRepo(s *Store) *RideEventRepo {
	return &RideEventRepo{s: s}
}

func (r *RideEventRepo) Append(_ context.Context, event models.RideEvent) error {
	return r.s.withRide(event.RideID, func(e *entry) error {
		e.events = append(e.events, event)
		return nil
	})
}

func (r *RideEventRepo) List(_ context.Context, rideID uuid.UUID) ([]models.RideEvent, error) {
	var events []models.RideEvent
	err := r.s.withRide(rideID, func(e *entry) error {
		events = slices.Clone(e.events)
		return nil
	})
	return events, err
}

type ReviewRepo struct {
	s *Store
}

func NewReviewRepo(s *Store) *ReviewRepo {
	return &ReviewRepo{s: s}
}

func (r *ReviewRepo) Create(_ context.Context, review *models.Review) error {
	return r.s.withRide(review.RideID, func(e *entry) error {
		if e.review != nil {
			return types.ErrReviewExists
		}
		c := *review
		e.review = &c
		return nil
	})
}

func (r *ReviewRepo) Get(_ context.Context, rideID uuid.UUID) (*models.Review, error) {
	var review *models.Review
	err := r.s.withRide(rideID, func(e *entry) error {
		if e.review == nil {
			return types.ErrReviewNotFound
		}
		c := *e.review
		review = &c
		return nil
	})
	return review, err
}
