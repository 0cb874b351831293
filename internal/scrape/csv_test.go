package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/model"
)

func csvService(config map[string]any) *model.Service {
	base := map[string]any{
		"metrics_csv_mapping": map[string]any{
			"siret":   "siret",
			"users":   "active_users",
			"storage": "storage_used",
		},
	}
	for k, v := range config {
		base[k] = v
	}
	return &model.Service{ID: 5, Type: model.ServiceTypeDrive, Config: base}
}

func TestCSVFetcher_HTTPSource(t *testing.T) {
	organizations := &mockOrganizations{}
	metrics := &mockMetrics{}
	fetcher := NewCSVFetcher(organizations, metrics, nil, zerolog.Nop())
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "siret,users,storage\n21340126800017,12,2048\n")
	}))
	defer server.Close()

	organizations.On("FindByIdentifier", ctx, "21340126800017").
		Return(&model.Organization{ID: "org-1"}, nil).Once()
	metrics.On("UpsertMetrics", ctx, int64(5), "org-1",
		mock.MatchedBy(func(entries []core.MetricEntry) bool {
			if len(entries) != 2 {
				return false
			}
			byKey := map[string]float64{}
			for _, e := range entries {
				byKey[e.Key] = e.Value
			}
			return byKey["active_users"] == 12 && byKey["storage_used"] == 2048
		}), false).Return(nil).Once()

	stats := fetcher.FetchAndStore(ctx, csvService(map[string]any{"metrics_csv": server.URL}))
	assert.Equal(t, Stats{Rows: 1, Stored: 1}, stats)
	organizations.AssertExpectations(t)
	metrics.AssertExpectations(t)
}

func TestCSVFetcher_S3Source(t *testing.T) {
	organizations := &mockOrganizations{}
	metrics := &mockMetrics{}
	objects := &mockObjects{}
	fetcher := NewCSVFetcher(organizations, metrics, objects, zerolog.Nop())
	ctx := context.Background()

	objects.On("GetObject", ctx, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Bucket == "metrics" && *in.Key == "drive/latest.csv"
	})).Return(&s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader("siret,users\n21340126800017,7\n")),
	}, nil).Once()

	organizations.On("FindByIdentifier", ctx, "21340126800017").
		Return(&model.Organization{ID: "org-1"}, nil).Once()
	metrics.On("UpsertMetrics", ctx, int64(5), "org-1",
		[]core.MetricEntry{{Key: "active_users", Value: 7}}, false).Return(nil).Once()

	stats := fetcher.FetchAndStore(ctx, csvService(map[string]any{
		"metrics_csv": "s3://metrics/drive/latest.csv",
	}))
	assert.Equal(t, Stats{Rows: 1, Stored: 1}, stats)
	objects.AssertExpectations(t)
	organizations.AssertExpectations(t)
	metrics.AssertExpectations(t)
}

func TestCSVFetcher_CustomDelimiter(t *testing.T) {
	organizations := &mockOrganizations{}
	metrics := &mockMetrics{}
	fetcher := NewCSVFetcher(organizations, metrics, nil, zerolog.Nop())
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "siret;users\n21340126800017;3\n")
	}))
	defer server.Close()

	organizations.On("FindByIdentifier", ctx, "21340126800017").
		Return(&model.Organization{ID: "org-1"}, nil).Once()
	metrics.On("UpsertMetrics", ctx, int64(5), "org-1",
		[]core.MetricEntry{{Key: "active_users", Value: 3}}, false).Return(nil).Once()

	stats := fetcher.FetchAndStore(ctx, csvService(map[string]any{
		"metrics_csv":           server.URL,
		"metrics_csv_delimiter": ";",
	}))
	assert.Equal(t, Stats{Rows: 1, Stored: 1}, stats)
	organizations.AssertExpectations(t)
	metrics.AssertExpectations(t)
}

func TestCSVFetcher_SkipsUnresolvableAndNonNumericRows(t *testing.T) {
	organizations := &mockOrganizations{}
	metrics := &mockMetrics{}
	fetcher := NewCSVFetcher(organizations, metrics, nil, zerolog.Nop())
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "siret,users\n99999999999999,1\n21340126800017,not-a-number\n21440003300026,5\n")
	}))
	defer server.Close()

	organizations.On("FindByIdentifier", ctx, "99999999999999").
		Return(nil, pgx.ErrNoRows).Once()
	organizations.On("FindByIdentifier", ctx, "21440003300026").
		Return(&model.Organization{ID: "org-2"}, nil).Once()
	metrics.On("UpsertMetrics", ctx, int64(5), "org-2",
		[]core.MetricEntry{{Key: "active_users", Value: 5}}, false).Return(nil).Once()

	stats := fetcher.FetchAndStore(ctx, csvService(map[string]any{"metrics_csv": server.URL}))
	assert.Equal(t, Stats{Rows: 3, Stored: 1, Skipped: 2}, stats)
	organizations.AssertExpectations(t)
	metrics.AssertExpectations(t)
}

func TestCSVFetcher_HTTPErrorYieldsNothing(t *testing.T) {
	organizations := &mockOrganizations{}
	metrics := &mockMetrics{}
	fetcher := NewCSVFetcher(organizations, metrics, nil, zerolog.Nop())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	stats := fetcher.FetchAndStore(context.Background(),
		csvService(map[string]any{"metrics_csv": server.URL}))
	assert.Equal(t, Stats{}, stats)
	metrics.AssertExpectations(t)
}

func TestCSVFetcher_MissingMappingYieldsNothing(t *testing.T) {
	organizations := &mockOrganizations{}
	metrics := &mockMetrics{}
	fetcher := NewCSVFetcher(organizations, metrics, nil, zerolog.Nop())

	service := &model.Service{ID: 5, Config: map[string]any{"metrics_csv": "http://example.invalid/metrics.csv"}}
	stats := fetcher.FetchAndStore(context.Background(), service)
	assert.Equal(t, Stats{}, stats)
	metrics.AssertExpectations(t)
}
