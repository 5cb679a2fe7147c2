package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"roadsync/internal/report"
)

// DefaultListTimeout bounds read paths so a slow backend cannot stall
// the map and dashboard views.
const DefaultListTimeout = 2500 * time.Millisecond

// CachedListGateway decorates a gateway with a short timeout on the
// read paths, falling back to the last good snapshot (seeded from a
// demo dataset when configured). This is a UX concession only: write
// paths pass through untouched and never fabricate success.
type CachedListGateway struct {
	ReportGateway

	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	all      []report.RemoteReport
	byOwner  map[string][]report.RemoteReport
	seededAt time.Time
}

// NewCachedListGateway wraps inner. timeout <= 0 selects
// DefaultListTimeout.
func NewCachedListGateway(inner ReportGateway, timeout time.Duration, logger *slog.Logger) *CachedListGateway {
	if timeout <= 0 {
		timeout = DefaultListTimeout
	}

	return &CachedListGateway{
		ReportGateway: inner,
		timeout:       timeout,
		logger:        logger,
		byOwner:       make(map[string][]report.RemoteReport),
	}
}

// demoReport is the YAML shape of one seeded record.
type demoReport struct {
	ID          string  `yaml:"id"`
	OwnerID     string  `yaml:"ownerId"`
	Latitude    float64 `yaml:"latitude"`
	Longitude   float64 `yaml:"longitude"`
	Description string  `yaml:"description"`
	Category    string  `yaml:"category"`
	PhotoURL    string  `yaml:"photoUrl"`
	Status      string  `yaml:"status"`
	CreatedAt   any     `yaml:"createdAt"`
}

// SeedFromFile loads a demo dataset used as the fallback before the
// first successful remote list.
func (g *CachedListGateway) SeedFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading demo dataset: %w", err)
	}

	var demo []demoReport
	if err := yaml.Unmarshal(data, &demo); err != nil {
		return fmt.Errorf("parsing demo dataset: %w", err)
	}

	seeded := make([]report.RemoteReport, 0, len(demo))
	for _, d := range demo {
		seeded = append(seeded, report.RemoteReport{
			RemoteID:    d.ID,
			OwnerID:     d.OwnerID,
			Latitude:    d.Latitude,
			Longitude:   d.Longitude,
			Description: d.Description,
			Category:    report.Category(d.Category),
			PhotoURL:    d.PhotoURL,
			Status:      report.ParseStatus(d.Status),
			CreatedAt:   report.MillisFromAny(d.CreatedAt),
			UpdatedAt:   report.MillisFromAny(d.CreatedAt),
		})
	}

	g.mu.Lock()
	g.all = seeded
	g.seededAt = time.Now()
	g.mu.Unlock()

	g.logger.Info("demo dataset seeded", slog.Int("reports", len(seeded)))

	return nil
}

// ListAll lists with the read timeout, serving the cached snapshot on
// failure.
func (g *CachedListGateway) ListAll(ctx context.Context) ([]report.RemoteReport, error) {
	lctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	reports, err := g.ReportGateway.ListAll(lctx)
	if err == nil {
		g.mu.Lock()
		g.all = reports
		g.mu.Unlock()

		return reports, nil
	}

	g.mu.Lock()
	cached := g.all
	g.mu.Unlock()

	if cached == nil {
		return nil, err
	}

	g.logger.Warn("list failed, serving cached snapshot",
		slog.String("error", err.Error()),
		slog.Int("reports", len(cached)),
	)

	return cached, nil
}

// ListByOwner lists with the read timeout, serving the cached snapshot
// on failure.
func (g *CachedListGateway) ListByOwner(ctx context.Context, ownerID string) ([]report.RemoteReport, error) {
	lctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	reports, err := g.ReportGateway.ListByOwner(lctx, ownerID)
	if err == nil {
		g.mu.Lock()
		g.byOwner[ownerID] = reports
		g.mu.Unlock()

		return reports, nil
	}

	g.mu.Lock()
	cached, ok := g.byOwner[ownerID]
	g.mu.Unlock()

	if !ok {
		return nil, err
	}

	g.logger.Warn("owner list failed, serving cached snapshot",
		slog.String("ownerId", ownerID),
		slog.String("error", err.Error()),
	)

	return cached, nil
}
