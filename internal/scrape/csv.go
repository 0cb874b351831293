package scrape

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/model"
)

// Column mapping targets that name the organization identifier instead of a
// metric key.
const (
	csvTargetSIRET = "siret"
	csvTargetINSEE = "insee"
)

// ObjectStore is the slice of the S3 API the CSV fetcher needs.
type ObjectStore interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewObjectStore builds an S3 client for the configured object storage
// endpoint. An empty endpoint falls back to the SDK's region resolution.
func NewObjectStore(endpoint, accessKey, secretKey, region string) *s3.Client {
	opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle: true,
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
	}
	return s3.New(opts)
}

// CSVFetcher loads a whole metrics CSV in one request, over HTTP or from an
// s3:// URL, and stores one metrics batch per row. The service config maps
// CSV columns to either the organization identifier or a metric key.
type CSVFetcher struct {
	sink
	httpClient *http.Client
	objects    ObjectStore
}

func NewCSVFetcher(organizations OrganizationResolver, metrics MetricWriter, objects ObjectStore, log zerolog.Logger) *CSVFetcher {
	return &CSVFetcher{
		sink:       sink{organizations: organizations, metrics: metrics, log: log},
		httpClient: &http.Client{Timeout: requestTimeout},
		objects:    objects,
	}
}

func (f *CSVFetcher) FetchAndStore(ctx context.Context, service *model.Service) Stats {
	mc := service.Metrics()
	if mc.CSV == "" {
		f.log.Debug().Int64("service_id", service.ID).Msg("no metrics csv configured")
		return Stats{}
	}
	if len(mc.CSVMapping) == 0 {
		f.log.Warn().Int64("service_id", service.ID).Msg("metrics csv configured without a column mapping")
		return Stats{}
	}

	data, err := f.read(ctx, mc.CSV)
	if err != nil {
		f.log.Warn().Int64("service_id", service.ID).Str("source", mc.CSV).Err(err).
			Msg("metrics csv fetch failed")
		return Stats{}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = []rune(mc.CSVDelimiter)[0]
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		f.log.Warn().Int64("service_id", service.ID).Err(err).Msg("metrics csv has no header row")
		return Stats{}
	}

	var stats Stats
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			f.log.Warn().Int64("service_id", service.ID).Err(err).
				Msg("metrics csv aborted on malformed row, keeping partial results")
			break
		}
		stats.Rows++

		identifier, entries := f.parseRow(header, record, mc.CSVMapping)
		if identifier == "" || len(entries) == 0 {
			stats.Skipped++
			continue
		}
		if f.store(ctx, service.ID, identifier, entries, false) {
			stats.Stored++
		} else {
			stats.Skipped++
		}
	}
	return stats
}

func (f *CSVFetcher) parseRow(header, record []string, mapping map[string]string) (string, []core.MetricEntry) {
	identifier := ""
	var entries []core.MetricEntry
	for i, cell := range record {
		if i >= len(header) {
			break
		}
		target, ok := mapping[header[i]]
		if !ok {
			continue
		}
		switch target {
		case csvTargetSIRET, csvTargetINSEE:
			if identifier == "" {
				identifier = strings.TrimSpace(cell)
			}
		default:
			value, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				f.log.Debug().Str("column", header[i]).Str("value", cell).Msg("skipping non-numeric csv cell")
				continue
			}
			entries = append(entries, core.MetricEntry{Key: target, Value: value})
		}
	}
	return identifier, entries
}

func (f *CSVFetcher) read(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "s3://") {
		return f.readObject(ctx, source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("csv request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch csv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch csv: status %d: %s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}

func (f *CSVFetcher) readObject(ctx context.Context, source string) ([]byte, error) {
	if f.objects == nil {
		return nil, fmt.Errorf("no object store configured for %s", source)
	}
	u, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse csv source: %w", err)
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")

	out, err := f.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get csv object %s: %w", source, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read csv object %s: %w", source, err)
	}
	return data, nil
}
