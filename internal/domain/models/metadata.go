package models

import (
	"math"

	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/Temutjin2k/ride-match/pkg/validator"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var historyStatuses = []string{
	types.StatusAvailable.String(),
	types.StatusBooked.String(),
	types.StatusInTransit.String(),
	types.StatusCompleted.String(),
	types.StatusCancelled.String(),
}

// HistoryFilter holds pagination and an optional status filter for ride history.
// Results are always ordered newest first.
type HistoryFilter struct {
	Page     int
	PageSize int
	Status   types.RideStatus
}

func (f HistoryFilter) Validate(v *validator.Validator) {
	v.Check(f.Page > 0, "page", "must be greater than zero")
	v.Check(f.Page <= 10_000_000, "page", "must be a maximum of 10 million")
	v.Check(f.PageSize > 0, "page_size", "must be greater than zero")
	v.Check(f.PageSize <= MaxPageSize, "page_size", "must be a maximum of 100")
	if f.Status != "" {
		v.Check(validator.PermittedValue(f.Status.String(), historyStatuses...), "status", "invalid ride status")
	}
}

func (f HistoryFilter) Limit() int {
	return f.PageSize
}

func (f HistoryFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

type Metadata struct {
	CurrentPage  int `json:"current_page"`
	PageSize     int `json:"page_size"`
	FirstPage    int `json:"first_page"`
	LastPage     int `json:"last_page"`
	TotalRecords int `json:"total_records"`
}

// CalculateMetadata derives pagination metadata. An empty result set yields zero first/last pages.
func CalculateMetadata(totalRecords, page, pageSize int) Metadata {
	if totalRecords == 0 {
		return Metadata{CurrentPage: page, PageSize: pageSize}
	}
	return Metadata{
		CurrentPage:  page,
		PageSize:     pageSize,
		FirstPage:    1,
		LastPage:     int(math.Ceil(float64(totalRecords) / float64(pageSize))),
		TotalRecords: totalRecords,
	}
}
