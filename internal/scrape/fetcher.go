// Package scrape pulls usage and catalog metrics from the remote endpoints a
// service declares in its config and hands them to the metric store. Remote
// failures never escape this package: a broken page or an unreachable host
// ends the run with whatever was already stored.
package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/model"
)

const (
	pageSize       = 100
	pageDelay      = time.Second
	requestTimeout = 30 * time.Second
)

// OrganizationResolver maps a SIRET/SIREN/INSEE identifier from a remote
// metrics row to a stored organization. Implemented by
// core.OrganizationService.
type OrganizationResolver interface {
	FindByIdentifier(ctx context.Context, identifier string) (*model.Organization, error)
}

// MetricWriter persists a batch of observations for one organization.
// Implemented by core.MetricService.
type MetricWriter interface {
	UpsertMetrics(ctx context.Context, serviceID int64, orgID string, entries []core.MetricEntry, reconcile bool) error
}

// Stats summarizes one fetch run. A run that hit a network error partway
// through still reports the pages and rows it managed to store.
type Stats struct {
	Pages   int
	Rows    int
	Stored  int
	Skipped int
}

// Add folds another run's counters into this one.
func (s *Stats) Add(other Stats) {
	s.Pages += other.Pages
	s.Rows += other.Rows
	s.Stored += other.Stored
	s.Skipped += other.Skipped
}

type sink struct {
	organizations OrganizationResolver
	metrics       MetricWriter
	log           zerolog.Logger
}

// store resolves the organization and writes the entries, reporting whether
// the row made it to the store. Unresolvable identifiers and write failures
// are logged and skipped.
func (s *sink) store(ctx context.Context, serviceID int64, identifier string, entries []core.MetricEntry, reconcile bool) bool {
	org, err := s.organizations.FindByIdentifier(ctx, identifier)
	if err != nil {
		s.log.Warn().Str("identifier", identifier).Err(err).Msg("skipping metrics row: organization not resolvable")
		observeRow(serviceID, false)
		return false
	}
	if err := s.metrics.UpsertMetrics(ctx, serviceID, org.ID, entries, reconcile); err != nil {
		s.log.Error().Str("organization_id", org.ID).Err(err).Msg("store metrics")
		observeRow(serviceID, false)
		return false
	}
	observeRow(serviceID, true)
	return true
}

// Fetcher walks a paginated JSON metrics endpoint.
type Fetcher struct {
	sink
	httpClient *http.Client
	// delay between page requests, a courtesy rate limit for the remote.
	delay time.Duration
}

func NewFetcher(organizations OrganizationResolver, metrics MetricWriter, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		sink:       sink{organizations: organizations, metrics: metrics, log: log},
		httpClient: &http.Client{Timeout: requestTimeout},
		delay:      pageDelay,
	}
}

type pageResponse struct {
	Count   int          `json:"count"`
	Results []resultItem `json:"results"`
}

type resultItem struct {
	SIRET   string             `json:"siret"`
	INSEE   string             `json:"insee"`
	Account *accountRef        `json:"account"`
	Metrics map[string]float64 `json:"metrics"`
}

type accountRef struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Email string `json:"email"`
}

// FetchAndStore pulls every page of the service's catalog metrics endpoint.
// A single run is not reentrant for the same service: two concurrent runs
// would interleave pagination state.
func (f *Fetcher) FetchAndStore(ctx context.Context, service *model.Service) Stats {
	mc := service.Metrics()
	if mc.Endpoint == "" {
		f.log.Debug().Int64("service_id", service.ID).Msg("no metrics endpoint configured")
		return Stats{}
	}
	return f.paginate(ctx, service, mc.Endpoint, mc.AuthToken, nil, false)
}

// FetchUsage pulls the account-scoped usage endpoint, optionally narrowed to
// a single account. Accounts named by the remote rows are reconciled against
// stored accounts, creating them when unseen.
func (f *Fetcher) FetchUsage(ctx context.Context, service *model.Service, accountType, accountID string) Stats {
	mc := service.Metrics()
	if mc.UsageEndpoint == "" {
		f.log.Debug().Int64("service_id", service.ID).Msg("no usage metrics endpoint configured")
		return Stats{}
	}
	extra := url.Values{}
	if accountType != "" {
		extra.Set("account_type", accountType)
	}
	if accountID != "" {
		extra.Set("account_id", accountID)
	}
	return f.paginate(ctx, service, mc.UsageEndpoint, mc.AuthToken, extra, true)
}

func (f *Fetcher) paginate(ctx context.Context, service *model.Service, endpoint, token string, extra url.Values, reconcile bool) Stats {
	var stats Stats
	offset := 0
	for {
		page, err := f.fetchPage(ctx, endpoint, token, offset, extra)
		if err != nil {
			f.log.Warn().Int64("service_id", service.ID).Int("offset", offset).Err(err).
				Msg("metrics fetch aborted, keeping partial results")
			return stats
		}
		stats.Pages++

		for _, item := range page.Results {
			stats.Rows++
			if f.storeItem(ctx, service, item, reconcile) {
				stats.Stored++
			} else {
				stats.Skipped++
			}
		}

		if len(page.Results) == 0 || offset+len(page.Results) >= page.Count {
			return stats
		}
		offset += len(page.Results)

		select {
		case <-ctx.Done():
			return stats
		case <-time.After(f.delay):
		}
	}
}

func (f *Fetcher) storeItem(ctx context.Context, service *model.Service, item resultItem, reconcile bool) bool {
	identifier := item.SIRET
	if identifier == "" {
		identifier = item.INSEE
	}
	if identifier == "" {
		f.log.Warn().Int64("service_id", service.ID).Msg("skipping metrics row without organization identifier")
		return false
	}

	entries := make([]core.MetricEntry, 0, len(item.Metrics))
	for key, value := range item.Metrics {
		entry := core.MetricEntry{Key: key, Value: value}
		if item.Account != nil {
			entry.AccountType = item.Account.Type
			entry.AccountID = item.Account.ID
			entry.AccountEmail = item.Account.Email
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return false
	}
	return f.store(ctx, service.ID, identifier, entries, reconcile)
}

func (f *Fetcher) fetchPage(ctx context.Context, endpoint, token string, offset int, extra url.Values) (*pageResponse, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse metrics endpoint: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("offset", strconv.Itoa(offset))
	for key, values := range extra {
		for _, v := range values {
			q.Set(key, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("metrics page request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch metrics page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch metrics page: status %d: %s", resp.StatusCode, string(body))
	}

	var page pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode metrics page: %w", err)
	}
	return &page, nil
}
