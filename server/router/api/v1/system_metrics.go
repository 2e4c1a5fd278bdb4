package v1

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/smartcache/plugin/ai/metrics"
)

// GetStats returns answer metrics for a time range (1h, 24h, 7d, 30d or all).
// GET /api/v1/stats
func (s *APIV1Service) GetStats(c echo.Context) error {
	timeRange := c.QueryParam("range")
	if timeRange == "" {
		timeRange = "all"
	}
	tr, err := parseTimeRange(timeRange, time.Now())
	if err != nil {
		s.Logger.Warn("Invalid time range parameter in stats request", slog.String("range", timeRange), slog.String("error", err.Error()))
		return badRequest(c, "invalid time range")
	}

	stats, err := s.Cache.StatsBetween(c.Request().Context(), tr)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// parseTimeRange parses time range string into a metrics range ending now.
func parseTimeRange(timeRange string, now time.Time) (metrics.TimeRange, error) {
	var window time.Duration
	switch timeRange {
	case "all":
		return metrics.TimeRange{}, nil
	case "1h":
		window = time.Hour
	case "24h":
		window = 24 * time.Hour
	case "7d":
		window = 7 * 24 * time.Hour
	case "30d":
		window = 30 * 24 * time.Hour
	default:
		return metrics.TimeRange{}, fmt.Errorf("invalid time range: %s (valid: 1h, 24h, 7d, 30d, all)", timeRange)
	}
	return metrics.TimeRange{Start: now.Add(-window), End: now}, nil
}
