package ride

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
	"github.com/google/uuid"
)

const maxCommentLength = 500

// Review stores the customer's rating of a completed ride. One review per ride.
func (s *RideService) Review(ctx context.Context, id models.Identity, rideID uuid.UUID, rating int, comment string) (*models.Review, error) {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "review_ride"), rideID.String())

	comment = strings.TrimSpace(comment)
	if rating < 1 || rating > 5 {
		return nil, wrap.Error(ctx, fmt.Errorf("%w: rating must be between 1 and 5", types.ErrValidation))
	}
	if len(comment) > maxCommentLength {
		return nil, wrap.Error(ctx, fmt.Errorf("%w: comment must not exceed %d characters", types.ErrValidation, maxCommentLength))
	}

	ride, err := s.repos.ride.Get(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if !ride.IsCustomer(id.UserID) {
		return nil, wrap.Error(ctx, types.ErrNotRideParticipant)
	}
	if ride.Status != types.StatusCompleted || ride.AssignedRiderID == nil {
		return nil, wrap.Error(ctx, types.ErrRideNotCompleted)
	}

	review := &models.Review{
		RideID:     ride.ID,
		CustomerID: ride.CustomerID,
		RiderID:    *ride.AssignedRiderID,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repos.review.Create(ctx, review); err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("failed to save review: %w", err))
	}

	s.l.Info(ctx, "ride reviewed", "rating", rating)
	return review, nil
}
