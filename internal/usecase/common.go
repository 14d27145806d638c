package usecase

import (
	"opticalfiber-backend/internal/domain"
	"opticalfiber-backend/internal/domain/model"
)

func requirePrincipal(p *model.Principal) error {
	if p.IsZero() || p.StaffID == "" {
		return domain.ErrUnauthenticated
	}
	return nil
}
