package entitlement

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/model"
)

// ---------- Mock stores ----------

type mockMetricStore struct {
	mock.Mock
}

func (m *mockMetricStore) LatestOrganizationMetric(ctx context.Context, serviceID int64, orgID, key string) (*model.Metric, error) {
	args := m.Called(ctx, serviceID, orgID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Metric), args.Error(1)
}

func (m *mockMetricStore) LatestAccountMetric(ctx context.Context, serviceID int64, accountID, key string) (*model.Metric, error) {
	args := m.Called(ctx, serviceID, accountID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Metric), args.Error(1)
}

type mockAccountStore struct {
	mock.Mock
}

func (m *mockAccountStore) Find(ctx context.Context, orgID, accountType, externalID, email string) (*model.Account, error) {
	args := m.Called(ctx, orgID, accountType, externalID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *mockAccountStore) GetServiceLink(ctx context.Context, accountID string, serviceID int64) (*model.AccountServiceLink, error) {
	args := m.Called(ctx, accountID, serviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccountServiceLink), args.Error(1)
}

func (m *mockAccountStore) FindAdminMatches(ctx context.Context, serviceID int64, externalID, email string) ([]core.AdminMatch, error) {
	args := m.Called(ctx, serviceID, externalID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]core.AdminMatch), args.Error(1)
}

type mockSubscriptionStore struct {
	mock.Mock
}

func (m *mockSubscriptionStore) GetActive(ctx context.Context, orgID string, serviceID int64) (*model.ServiceSubscription, error) {
	args := m.Called(ctx, orgID, serviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ServiceSubscription), args.Error(1)
}

type mockOrganizationStore struct {
	mock.Mock
}

func (m *mockOrganizationStore) FindByIdentifier(ctx context.Context, identifier string) (*model.Organization, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Organization), args.Error(1)
}

type mockEntitlementStore struct {
	mock.Mock
}

func (m *mockEntitlementStore) ListBySubscription(ctx context.Context, subscriptionID string) ([]model.Entitlement, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Entitlement), args.Error(1)
}

type mockOperatorStore struct {
	mock.Mock
}

func (m *mockOperatorStore) GetByID(ctx context.Context, id string) (*model.Operator, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Operator), args.Error(1)
}

// mockTrigger records usage scrape triggers.
type mockTrigger struct {
	calls []int64
}

func (m *mockTrigger) TriggerUsageScrape(_ context.Context, serviceID int64, _, _ string) {
	m.calls = append(m.calls, serviceID)
}
