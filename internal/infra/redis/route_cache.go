package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"opticalfiber-backend/internal/domain/model"
	"opticalfiber-backend/internal/domain/ports/repository"
	"opticalfiber-backend/internal/infra/logging"
	"opticalfiber-backend/internal/infra/metrics"
)

var _ repository.RouteListCache = (*RouteCache)(nil)

// RouteCache stores the JSON encoded route listing of a company. Lookups
// that fail for any reason count as a miss.
type RouteCache struct {
	client KV
	ttl    time.Duration
	log    *zerolog.Logger
}

func NewRouteCache(client KV, ttl time.Duration, logger *zerolog.Logger) *RouteCache {
	l := logging.Component(logger, "RouteCache")
	return &RouteCache{client: client, ttl: ttl, log: l}
}

func RouteListKey(companyID string) string {
	return fmt.Sprintf("fiber_routes_company_%s", companyID)
}

func (c *RouteCache) Get(ctx context.Context, companyID string) ([]*model.FiberRoute, bool) {
	data, err := c.client.Load(ctx, RouteListKey(companyID))
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.log.Warn().Err(err).Str("company_id", companyID).Msg("route cache read failed")
		}
		metrics.IncCacheRequest("routes", "miss")
		return nil, false
	}
	var routes []*model.FiberRoute
	if err := json.Unmarshal(data, &routes); err != nil {
		c.log.Warn().Err(err).Str("company_id", companyID).Msg("route cache entry corrupt; dropping")
		_ = c.client.Drop(ctx, RouteListKey(companyID))
		metrics.IncCacheRequest("routes", "miss")
		return nil, false
	}
	metrics.IncCacheRequest("routes", "hit")
	return routes, true
}

func (c *RouteCache) Set(ctx context.Context, companyID string, routes []*model.FiberRoute) {
	if routes == nil {
		routes = []*model.FiberRoute{}
	}
	data, err := json.Marshal(routes)
	if err != nil {
		c.log.Warn().Err(err).Msg("route cache encode failed")
		return
	}
	if err := c.client.Store(ctx, RouteListKey(companyID), data, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("company_id", companyID).Msg("route cache write failed")
	}
}

func (c *RouteCache) Invalidate(ctx context.Context, companyID string) error {
	return c.client.Drop(ctx, RouteListKey(companyID))
}
