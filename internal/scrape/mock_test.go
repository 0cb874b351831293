package scrape

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/mock"

	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/model"
)

type mockOrganizations struct {
	mock.Mock
}

func (m *mockOrganizations) FindByIdentifier(ctx context.Context, identifier string) (*model.Organization, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Organization), args.Error(1)
}

type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) UpsertMetrics(ctx context.Context, serviceID int64, orgID string, entries []core.MetricEntry, reconcile bool) error {
	args := m.Called(ctx, serviceID, orgID, entries, reconcile)
	return args.Error(0)
}

type mockObjects struct {
	mock.Mock
}

func (m *mockObjects) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}
