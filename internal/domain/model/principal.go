package model

import "opticalfiber-backend/internal/domain"

type StaffRole string

const (
	StaffRoleAdmin    StaffRole = "admin"
	StaffRoleEngineer StaffRole = "engineer"
)

// Principal is the authenticated staff member on whose behalf a call runs.
// It is resolved once at the edge and passed explicitly into use cases.
type Principal struct {
	StaffID   string
	CompanyID string
	Role      StaffRole
	Name      string
}

func NewPrincipal(staffID, companyID string, role StaffRole, name string) (*Principal, error) {
	if staffID == "" || companyID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if role != StaffRoleAdmin && role != StaffRoleEngineer {
		return nil, domain.ErrUnauthenticated
	}
	return &Principal{StaffID: staffID, CompanyID: companyID, Role: role, Name: name}, nil
}

func (p *Principal) IsZero() bool  { return p == nil || p.CompanyID == "" }
func (p *Principal) IsAdmin() bool { return p != nil && p.Role == StaffRoleAdmin }
