package v1

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/smartcache/internal/profile"
	"github.com/hrygo/smartcache/plugin/ai/metrics"
	"github.com/hrygo/smartcache/plugin/ai/smartcache"
	ratelimit "github.com/hrygo/smartcache/server/middleware"
	"github.com/hrygo/smartcache/store"
)

// CacheService is the engine surface exposed over HTTP.
type CacheService interface {
	GetAnswer(ctx context.Context, userID, question string, returnDebug bool) (*smartcache.Answer, error)
	StoreInteractionAutoCat(ctx context.Context, userID, query, answer string) (*store.Interaction, error)
	UserFeedback(ctx context.Context, userID, query string, helpful bool) error
	StatsBetween(ctx context.Context, tr metrics.TimeRange) (*smartcache.Stats, error)
}

var _ CacheService = (*smartcache.Service)(nil)

type APIV1Service struct {
	Profile *profile.Profile
	Cache   CacheService
	Logger  *slog.Logger

	limiter *ratelimit.RateLimiter
}

func NewAPIV1Service(profile *profile.Profile, cache CacheService, logger *slog.Logger) *APIV1Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIV1Service{
		Profile: profile,
		Cache:   cache,
		Logger:  logger,
		limiter: ratelimit.NewRateLimiter(ratelimit.DefaultRequestsPerSecond, ratelimit.DefaultBurst),
	}
}

// RegisterRoutes registers the JSON API with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	echoServer.GET("/healthz", s.Healthz)

	group := echoServer.Group("/api/v1")
	group.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(_ string) (bool, error) {
			return true, nil
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"*"},
	}))
	group.Use(s.limiter.Middleware(ratelimit.ClientKey))

	group.POST("/interactions", s.CreateInteraction)
	group.POST("/answer", s.GetAnswer)
	group.POST("/feedback", s.CreateFeedback)
	group.GET("/stats", s.GetStats)
}

// Healthz reports liveness.
// GET /healthz
func (s *APIV1Service) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
