package model

import "time"

type OfficeType string

const (
	OfficeTypeHead    OfficeType = "head"
	OfficeTypeBranch  OfficeType = "branch"
	OfficeTypeService OfficeType = "service"
)

// Company is the tenant: the billing and data-isolation boundary.
type Company struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	IsActive  bool
	CreatedAt time.Time
}

// Office is a head office, branch or service center of a company. Fiber
// routes hang off an office; quota is accounted at the company level.
type Office struct {
	ID        string
	CompanyID string
	Name      string
	Type      OfficeType
	Latitude  float64
	Longitude float64
	CreatedAt time.Time
}
