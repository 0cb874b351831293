package activity

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/scrape"
)

// Services scraped concurrently during a scrape-all run.
const scrapeConcurrency = 4

// Scrape contains activities that pull remote metrics into the store.
type Scrape struct {
	services *core.ServiceService
	fetcher  *scrape.Fetcher
	csv      *scrape.CSVFetcher
}

// NewScrape creates a new Scrape activity struct.
func NewScrape(services *core.ServiceService, fetcher *scrape.Fetcher, csv *scrape.CSVFetcher) *Scrape {
	return &Scrape{services: services, fetcher: fetcher, csv: csv}
}

// ListActiveServiceIDs returns the ids of every active service.
func (a *Scrape) ListActiveServiceIDs(ctx context.Context) ([]int64, error) {
	services, err := a.services.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active services: %w", err)
	}
	ids := make([]int64, len(services))
	for i, service := range services {
		ids[i] = service.ID
	}
	return ids, nil
}

// ScrapeServiceMetrics runs every configured metrics source for one service.
// Remote failures surface only in the stats; a partial run is not an error.
func (a *Scrape) ScrapeServiceMetrics(ctx context.Context, serviceID int64) (scrape.Stats, error) {
	service, err := a.services.GetByID(ctx, serviceID)
	if err != nil {
		return scrape.Stats{}, fmt.Errorf("load service %d: %w", serviceID, err)
	}
	stats := a.fetcher.FetchAndStore(ctx, service)
	stats.Add(a.csv.FetchAndStore(ctx, service))
	return stats, nil
}

// ScrapeAllServices scrapes every active service, a few at a time. A failing
// service never aborts its siblings; its counters simply stay partial.
func (a *Scrape) ScrapeAllServices(ctx context.Context) (scrape.Stats, error) {
	services, err := a.services.ListActive(ctx)
	if err != nil {
		return scrape.Stats{}, fmt.Errorf("list active services: %w", err)
	}

	var mu sync.Mutex
	var total scrape.Stats
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scrapeConcurrency)
	for _, service := range services {
		g.Go(func() error {
			stats := a.fetcher.FetchAndStore(gctx, &service)
			stats.Add(a.csv.FetchAndStore(gctx, &service))
			mu.Lock()
			total.Add(stats)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return total, nil
}

// ScrapeUsageMetrics pulls account-scoped usage metrics for one
// (service, account) pair.
func (a *Scrape) ScrapeUsageMetrics(ctx context.Context, params core.UsageScrapeParams) (scrape.Stats, error) {
	service, err := a.services.GetByID(ctx, params.ServiceID)
	if err != nil {
		return scrape.Stats{}, fmt.Errorf("load service %d: %w", params.ServiceID, err)
	}
	return a.fetcher.FetchUsage(ctx, service, params.AccountType, params.AccountID), nil
}
