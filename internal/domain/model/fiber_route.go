package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"opticalfiber-backend/internal/domain"
)

// Route lengths are stored as NUMERIC(14,6).
const lengthScale = 6

var maxLengthKM = decimal.New(1, 14-lengthScale)

// Coordinate is a single map point of a route path.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinate) valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// FiberRoute is a deployed fiber segment drawn on the map. Routes are never
// hard-deleted so that the quota history stays auditable.
type FiberRoute struct {
	ID        string
	CompanyID string // denormalized from the office for tenant-wide aggregates
	OfficeID  string
	Name      string
	Path      []Coordinate
	LengthKM  decimal.Decimal
	Deleted   bool
	DeletedAt *time.Time
	CreatedBy string // staff id
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewFiberRoute validates input shape and constructs a route.
func NewFiberRoute(id, companyID, officeID, name string, path []Coordinate, lengthKM decimal.Decimal, createdBy string) (*FiberRoute, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if companyID == "" || officeID == "" {
		return nil, domain.ErrInvalidArgument
	}
	r := &FiberRoute{
		ID:        id,
		CompanyID: companyID,
		OfficeID:  officeID,
		Name:      strings.TrimSpace(name),
		Path:      path,
		LengthKM:  lengthKM,
		CreatedBy: createdBy,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	return r, nil
}

// Validate checks the mutable fields. Used on create and after a partial update.
func (r *FiberRoute) Validate() error {
	if r.Name == "" || len(r.Name) > 255 {
		return domain.ErrInvalidArgument
	}
	if len(r.Path) < 2 {
		return domain.ErrInvalidArgument
	}
	for _, c := range r.Path {
		if !c.valid() {
			return domain.ErrInvalidArgument
		}
	}
	if !r.LengthKM.IsPositive() || r.LengthKM.GreaterThanOrEqual(maxLengthKM) {
		return domain.ErrInvalidArgument
	}
	if !r.LengthKM.Equal(r.LengthKM.Truncate(lengthScale)) {
		return domain.ErrInvalidArgument
	}
	return nil
}

// SoftDelete marks the route deleted. Returns false if it already was.
func (r *FiberRoute) SoftDelete(at time.Time) bool {
	if r.Deleted {
		return false
	}
	r.Deleted = true
	r.DeletedAt = &at
	r.UpdatedAt = at
	return true
}
