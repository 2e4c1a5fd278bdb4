package cache

import (
	"context"
	"sync"
	"time"
)

// ServiceConfig configures the cache service.
type ServiceConfig struct {
	TTL             time.Duration // Entry lifetime (default: 1 hour)
	Capacity        int           // Maximum number of entries, 0 for unbounded
	CleanupInterval time.Duration // Passive sweep interval, 0 disables the sweeper
	Clock           Clock
}

// DefaultServiceConfig returns default cache service configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		TTL:      time.Hour,
		Capacity: 10000,
	}
}

// Service is a TTLStore with an optional background sweeper.
type Service struct {
	*TTLStore

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cleanupInterval time.Duration
}

// NewService creates a new cache service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		TTLStore:        NewTTLStore(cfg.TTL, cfg.Capacity, cfg.Clock),
		ctx:             ctx,
		cancel:          cancel,
		cleanupInterval: cfg.CleanupInterval,
	}

	if s.cleanupInterval > 0 {
		s.wg.Add(1)
		go s.cleanupLoop()
	}

	return s
}

// Close stops the sweeper. Safe to call more than once.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// cleanupLoop periodically removes expired entries.
func (s *Service) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.CleanupExpired()
		}
	}
}
