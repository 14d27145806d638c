package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"opticalfiber-backend/internal/domain/model"
	"opticalfiber-backend/internal/usecase"
)

type routeRequest struct {
	OfficeID string             `json:"office_id"`
	Name     string             `json:"name"`
	Path     []model.Coordinate `json:"path"`
	LengthKM decimal.Decimal    `json:"length_km"`
}

type routePatchRequest struct {
	Name     *string            `json:"name"`
	Path     []model.Coordinate `json:"path"`
	LengthKM *decimal.Decimal   `json:"length_km"`
}

type routeDTO struct {
	ID        string             `json:"id"`
	OfficeID  string             `json:"office_id"`
	Name      string             `json:"name"`
	Path      []model.Coordinate `json:"path"`
	LengthKM  decimal.Decimal    `json:"length_km"`
	CreatedBy string             `json:"created_by"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type quotaDecisionDTO struct {
	ProjectedKM     decimal.Decimal `json:"projected_km"`
	RemainingKM     decimal.Decimal `json:"remaining_km"`
	PaidChunks      int64           `json:"paid_chunks"`
	BoundaryWarning bool            `json:"boundary_warning"`
}

type routeResponse struct {
	Route routeDTO          `json:"route"`
	Quota *quotaDecisionDTO `json:"quota,omitempty"`
}

func toRouteDTO(r *model.FiberRoute) routeDTO {
	return routeDTO{
		ID:        r.ID,
		OfficeID:  r.OfficeID,
		Name:      r.Name,
		Path:      r.Path,
		LengthKM:  r.LengthKM,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func toRouteResponse(res *usecase.RouteResult) routeResponse {
	out := routeResponse{Route: toRouteDTO(res.Route)}
	if d := res.Decision; d != nil {
		out.Quota = &quotaDecisionDTO{
			ProjectedKM:     d.ProjectedKM,
			RemainingKM:     d.RemainingKM,
			PaidChunks:      d.PaidChunks,
			BoundaryWarning: d.BoundaryWarning,
		}
	}
	return out
}

func (s *Server) createRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	in := usecase.RouteInput{OfficeID: req.OfficeID, Name: req.Name, Path: req.Path, LengthKM: req.LengthKM}
	p := PrincipalFrom(r.Context())

	if r.URL.Query().Get("async") == "true" {
		id, err := s.routes.Enqueue(r.Context(), p, in)
		if err != nil {
			writeError(w, r, s.log, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "queued"})
		return
	}

	res, err := s.routes.Create(r.Context(), p, in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRouteResponse(res))
}

func (s *Server) listRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := s.routes.List(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	items := make([]routeDTO, 0, len(routes))
	for _, rt := range routes {
		items = append(items, toRouteDTO(rt))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) getRoute(w http.ResponseWriter, r *http.Request) {
	rt, err := s.routes.Get(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toRouteDTO(rt))
}

func (s *Server) updateRoute(w http.ResponseWriter, r *http.Request) {
	var req routePatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	patch := usecase.RoutePatch{Name: req.Name, Path: req.Path, LengthKM: req.LengthKM}
	res, err := s.routes.Update(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toRouteResponse(res))
}

func (s *Server) deleteRoute(w http.ResponseWriter, r *http.Request) {
	if err := s.routes.Delete(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) quotaStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.quota.Status(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		TotalKM         decimal.Decimal `json:"total_km"`
		FreeAllowanceKM decimal.Decimal `json:"free_allowance_km"`
		ChunkKM         decimal.Decimal `json:"chunk_km"`
		RequiredChunks  int64           `json:"required_chunks"`
		PaidChunks      int64           `json:"paid_chunks"`
		CapacityKM      decimal.Decimal `json:"capacity_km"`
		RemainingKM     decimal.Decimal `json:"remaining_km"`
		OverQuota       bool            `json:"over_quota"`
		AtBoundary      bool            `json:"at_boundary"`
	}{
		TotalKM:         st.TotalKM,
		FreeAllowanceKM: st.FreeAllowanceKM,
		ChunkKM:         st.ChunkKM,
		RequiredChunks:  st.RequiredChunks,
		PaidChunks:      st.PaidChunks,
		CapacityKM:      st.CapacityKM,
		RemainingKM:     st.RemainingKM,
		OverQuota:       st.OverQuota,
		AtBoundary:      st.AtBoundary,
	})
}
