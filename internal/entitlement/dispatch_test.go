package entitlement

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/model"
)

type dispatcherFixture struct {
	organizations *mockOrganizationStore
	subscriptions *mockSubscriptionStore
	entitlements  *mockEntitlementStore
	operators     *mockOperatorStore
	accounts      *mockAccountStore
	metrics       *mockMetricStore
	trigger       *mockTrigger
	dispatcher    *Dispatcher
}

func newDispatcherFixture() *dispatcherFixture {
	f := &dispatcherFixture{
		organizations: &mockOrganizationStore{},
		subscriptions: &mockSubscriptionStore{},
		entitlements:  &mockEntitlementStore{},
		operators:     &mockOperatorStore{},
		accounts:      &mockAccountStore{},
		metrics:       &mockMetricStore{},
		trigger:       &mockTrigger{},
	}
	f.dispatcher = NewDispatcher(f.organizations, f.subscriptions, f.entitlements,
		f.operators, f.accounts, f.metrics, f.trigger, zerolog.Nop())
	return f
}

func (f *dispatcherFixture) assertExpectations(t *testing.T) {
	t.Helper()
	f.organizations.AssertExpectations(t)
	f.subscriptions.AssertExpectations(t)
	f.entitlements.AssertExpectations(t)
	f.operators.AssertExpectations(t)
	f.accounts.AssertExpectations(t)
	f.metrics.AssertExpectations(t)
}

func TestDispatcher_ResolveMergesStorageAndAdmin(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()

	service := &model.Service{ID: 2, Type: model.ServiceTypeDrive, Config: map[string]any{}}
	org := &model.Organization{ID: "org-1", Name: "Ville Test"}
	sub := &model.ServiceSubscription{ID: "sub-1", OrganizationID: "org-1", ServiceID: 2, OperatorID: "op-1", IsActive: true}
	account := &model.Account{ID: "acc-1", OrganizationID: "org-1", Type: model.AccountTypeUser, Roles: []string{model.RoleAdmin}}

	f.organizations.On("FindByIdentifier", ctx, "21340126800017").Return(org, nil).Once()
	f.subscriptions.On("GetActive", ctx, "org-1", int64(2)).Return(sub, nil).Once()
	f.accounts.On("Find", ctx, "org-1", model.AccountTypeUser, "ext-1", "").Return(account, nil).Once()
	f.operators.On("GetByID", ctx, "op-1").Return(&model.Operator{ID: "op-1", Name: "Operator A"}, nil).Once()
	f.entitlements.On("ListBySubscription", ctx, "sub-1").Return([]model.Entitlement{
		{ID: "ent-1", Type: model.EntitlementDriveStorage, AccountType: model.AccountTypeUser,
			Config: map[string]any{"max_storage": int64(1000)}},
	}, nil).Once()
	f.metrics.On("LatestAccountMetric", ctx, int64(2), "acc-1", model.MetricKeyStorageUsed).
		Return(metric(500), nil).Once()

	response, err := f.dispatcher.Resolve(ctx, service, model.AccountTypeUser, "ext-1", "21340126800017")
	require.NoError(t, err)

	require.NotNil(t, response.Operator)
	assert.Equal(t, "op-1", response.Operator.ID)
	assert.Equal(t, "Operator A", response.Operator.Name)

	assert.Equal(t, true, response.Entitlements["can_access"])
	assert.Equal(t, true, response.Entitlements["can_upload"])
	assert.Equal(t, float64(500), response.Entitlements["storage_used"])
	assert.Equal(t, true, response.Entitlements["is_admin"])
	assert.Equal(t, AdminLevelOrganization, response.Entitlements["is_admin_resolve_level"])

	assert.Equal(t, []int64{2}, f.trigger.calls)
	f.assertExpectations(t)
}

func TestDispatcher_EmailIdentityRoutedToEmailLookup(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()

	service := &model.Service{ID: 2, Type: model.ServiceTypeDrive, Config: map[string]any{}}
	org := &model.Organization{ID: "org-1"}

	f.organizations.On("FindByIdentifier", ctx, "21340126800017").Return(org, nil).Once()
	f.subscriptions.On("GetActive", ctx, "org-1", int64(2)).Return(nil, pgx.ErrNoRows).Once()
	f.accounts.On("Find", ctx, "org-1", model.AccountTypeUser, "", "user@ville-test.fr").
		Return(nil, pgx.ErrNoRows).Once()

	response, err := f.dispatcher.Resolve(ctx, service, model.AccountTypeUser, "user@ville-test.fr", "21340126800017")
	require.NoError(t, err)
	assert.Equal(t, false, response.Entitlements["can_access"])
	assert.Equal(t, ReasonNotActivated, response.Entitlements["can_access_reason"])
	assert.Nil(t, response.Operator)
	assert.Empty(t, f.trigger.calls)
	f.assertExpectations(t)
}

func TestDispatcher_UnknownOrganizationStopsAtAccessGate(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()

	service := &model.Service{ID: 2, Type: model.ServiceTypeDrive, Config: map[string]any{}}
	f.organizations.On("FindByIdentifier", ctx, "21340126800017").Return(nil, pgx.ErrNoRows).Once()

	response, err := f.dispatcher.Resolve(ctx, service, model.AccountTypeUser, "ext-1", "21340126800017")
	require.NoError(t, err)
	assert.Equal(t, false, response.Entitlements["can_access"])
	assert.Equal(t, ReasonNoOrganization, response.Entitlements["can_access_reason"])
	assert.Empty(t, f.trigger.calls)
	f.assertExpectations(t)
}

func TestDispatcher_InvalidIdentifierPropagates(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()

	service := &model.Service{ID: 2, Type: model.ServiceTypeDrive, Config: map[string]any{}}
	f.organizations.On("FindByIdentifier", ctx, "not-a-siret").
		Return(nil, &core.ValidationError{Code: core.CodeInvalidIdentifier, Message: "bad identifier"}).Once()

	_, err := f.dispatcher.Resolve(ctx, service, model.AccountTypeUser, "ext-1", "not-a-siret")
	require.Error(t, err)
	verr, ok := core.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, core.CodeInvalidIdentifier, verr.Code)
	f.assertExpectations(t)
}

func TestDispatcher_UnregisteredEntitlementType(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()

	service := &model.Service{ID: 2, Type: model.ServiceTypeDrive, Config: map[string]any{}}
	org := &model.Organization{ID: "org-1"}
	sub := &model.ServiceSubscription{ID: "sub-1", OrganizationID: "org-1", ServiceID: 2, OperatorID: "op-1", IsActive: true}

	f.organizations.On("FindByIdentifier", ctx, "21340126800017").Return(org, nil).Once()
	f.subscriptions.On("GetActive", ctx, "org-1", int64(2)).Return(sub, nil).Once()
	f.accounts.On("Find", ctx, "org-1", model.AccountTypeUser, "ext-1", "").Return(nil, pgx.ErrNoRows).Once()
	f.operators.On("GetByID", ctx, "op-1").Return(&model.Operator{ID: "op-1", Name: "Operator A"}, nil).Once()
	f.entitlements.On("ListBySubscription", ctx, "sub-1").Return([]model.Entitlement{
		{ID: "ent-1", Type: "unmapped_feature", AccountType: model.AccountTypeOrganization},
	}, nil).Once()

	_, err := f.dispatcher.Resolve(ctx, service, model.AccountTypeUser, "ext-1", "21340126800017")
	require.Error(t, err)
	verr, ok := core.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, core.CodeInvalidEntitlement, verr.Code)

	// The usage scrape fires as soon as the active subscription is seen, even
	// though resolution itself failed.
	assert.Equal(t, []int64{2}, f.trigger.calls)
	f.assertExpectations(t)
}

func TestDispatcher_MessagesServiceUsesMessagesAdmin(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()

	service := &model.Service{ID: 7, Type: model.ServiceTypeMessages, Config: map[string]any{}}
	org := &model.Organization{ID: "org-1"}
	sub := &model.ServiceSubscription{ID: "sub-1", OrganizationID: "org-1", ServiceID: 7, OperatorID: "op-1", IsActive: true}
	sub.SetDomains([]string{"ville-test.fr"})

	f.organizations.On("FindByIdentifier", ctx, "21340126800017").Return(org, nil).Once()
	f.subscriptions.On("GetActive", ctx, "org-1", int64(7)).Return(sub, nil).Once()
	f.accounts.On("Find", ctx, "org-1", model.AccountTypeUser, "ext-1", "").Return(nil, pgx.ErrNoRows).Once()
	f.operators.On("GetByID", ctx, "op-1").Return(&model.Operator{ID: "op-1", Name: "Operator A"}, nil).Once()
	f.entitlements.On("ListBySubscription", ctx, "sub-1").Return(nil, nil).Once()
	f.accounts.On("FindAdminMatches", ctx, int64(7), "ext-1", "").
		Return([]core.AdminMatch{
			{Account: model.Account{ID: "acc-1", OrganizationID: "org-1", Roles: []string{model.RoleAdmin}}},
		}, nil).Once()
	f.subscriptions.On("GetActive", ctx, "org-1", int64(7)).Return(sub, nil).Once()

	response, err := f.dispatcher.Resolve(ctx, service, model.AccountTypeUser, "ext-1", "21340126800017")
	require.NoError(t, err)
	assert.Equal(t, []string{"ville-test.fr"}, response.Entitlements["can_admin_maildomains"])
	assert.Equal(t, []int64{7}, f.trigger.calls)
	f.assertExpectations(t)
}
