package entitlement

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/deploycenter/internal/model"
)

func adminContext(population int64, metadata map[string]any) *Context {
	pop := population
	return &Context{
		Service: &model.Service{ID: 4, Type: model.ServiceTypeADC, Config: map[string]any{}},
		Organization: &model.Organization{
			ID:         "org-1",
			Name:       "Ville Test",
			Type:       model.OrgTypeCommune,
			SIRET:      strPtr("13002526500013"),
			Population: &pop,
			Email:      strPtr("mairie@ville-test.fr"),
		},
		Subscription: &model.ServiceSubscription{ID: "sub-1", IsActive: true, Metadata: metadata},
		AccountType:  model.AccountTypeUser,
		AccountID:    "ext-1",
	}
}

func strPtr(s string) *string { return &s }

// ---------- Base resolver ----------

func TestAdminResolver_OrganizationRole(t *testing.T) {
	accounts := &mockAccountStore{}
	resolver := NewAdminResolver(accounts)
	ctx := context.Background()

	rc := adminContext(100000, nil)
	rc.Account = &model.Account{ID: "acc-1", Roles: []string{model.RoleAdmin}}

	result, err := resolver.Resolve(ctx, rc)
	require.NoError(t, err)
	assert.Equal(t, true, result["is_admin"])
	assert.Equal(t, AdminLevelOrganization, result["is_admin_resolve_level"])
	accounts.AssertExpectations(t)
}

func TestAdminResolver_ServiceLinkRole(t *testing.T) {
	accounts := &mockAccountStore{}
	resolver := NewAdminResolver(accounts)
	ctx := context.Background()

	rc := adminContext(100000, nil)
	rc.Account = &model.Account{ID: "acc-1", Roles: []string{}}

	accounts.On("GetServiceLink", ctx, "acc-1", int64(4)).
		Return(&model.AccountServiceLink{ID: "link-1", Roles: []string{model.RoleAdmin}}, nil).Once()

	result, err := resolver.Resolve(ctx, rc)
	require.NoError(t, err)
	assert.Equal(t, true, result["is_admin"])
	assert.Equal(t, AdminLevelService, result["is_admin_resolve_level"])
	accounts.AssertExpectations(t)
}

func TestAdminResolver_NoAccount(t *testing.T) {
	accounts := &mockAccountStore{}
	resolver := NewAdminResolver(accounts)
	ctx := context.Background()

	rc := adminContext(100000, nil)
	accounts.On("Find", ctx, "org-1", model.AccountTypeUser, "ext-1", "").
		Return(nil, pgx.ErrNoRows).Once()

	result, err := resolver.Resolve(ctx, rc)
	require.NoError(t, err)
	assert.Equal(t, false, result["is_admin"])
	assert.Equal(t, AdminReasonNoAccount, result["is_admin_reason"])
	accounts.AssertExpectations(t)
}

func TestAdminResolver_NoAdminRole(t *testing.T) {
	accounts := &mockAccountStore{}
	resolver := NewAdminResolver(accounts)
	ctx := context.Background()

	rc := adminContext(100000, nil)
	rc.Account = &model.Account{ID: "acc-1", Roles: []string{"viewer"}}

	accounts.On("GetServiceLink", ctx, "acc-1", int64(4)).
		Return(nil, pgx.ErrNoRows).Once()

	result, err := resolver.Resolve(ctx, rc)
	require.NoError(t, err)
	assert.Equal(t, false, result["is_admin"])
	assert.Equal(t, AdminReasonNoAdminRole, result["is_admin_reason"])
	accounts.AssertExpectations(t)
}

// ---------- Extended resolver ----------

func extendedFixture(t *testing.T, rc *Context, account *model.Account) (Result, error) {
	t.Helper()
	accounts := &mockAccountStore{}
	resolver := NewExtendedAdminResolver(accounts)
	ctx := context.Background()

	rc.Account = account
	if account != nil && !account.HasRole(model.RoleAdmin) {
		accounts.On("GetServiceLink", ctx, account.ID, rc.Service.ID).
			Return(nil, pgx.ErrNoRows).Once()
	}
	if account == nil {
		accounts.On("Find", ctx, rc.Organization.ID, rc.AccountType, rc.AccountID, rc.Email).
			Return(nil, pgx.ErrNoRows).Once()
	}
	return resolver.Resolve(ctx, rc)
}

func TestExtendedAdminResolver_EmailContactMatch(t *testing.T) {
	rc := adminContext(100000, nil)
	account := &model.Account{ID: "acc-1", Email: "MAIRIE@ville-test.FR", Roles: []string{}}

	result, err := extendedFixture(t, rc, account)
	require.NoError(t, err)
	assert.Equal(t, true, result["is_admin"])
	assert.Equal(t, AdminLevelEmailContact, result["is_admin_resolve_level"])
}

func TestExtendedAdminResolver_AutoAdminAll(t *testing.T) {
	rc := adminContext(100000, map[string]any{"auto_admin": "all"})
	account := &model.Account{ID: "acc-1", Email: "user@ville-test.fr", Roles: []string{}}

	result, err := extendedFixture(t, rc, account)
	require.NoError(t, err)
	assert.Equal(t, true, result["is_admin"])
	assert.Equal(t, AdminLevelAutoAdmin, result["is_admin_resolve_level"])
}

func TestExtendedAdminResolver_ManualSuppressesPopulationFallback(t *testing.T) {
	// Small commune that would pass the population fallback, but auto_admin
	// manual short-circuits to not-admin.
	rc := adminContext(500, map[string]any{"auto_admin": "manual"})
	account := &model.Account{ID: "acc-1", Email: "user@ville-test.fr", Roles: []string{}}

	result, err := extendedFixture(t, rc, account)
	require.NoError(t, err)
	assert.Equal(t, false, result["is_admin"])
	assert.Equal(t, AdminReasonManual, result["is_admin_reason"])
}

func TestExtendedAdminResolver_ManualDoesNotBlockEmailContact(t *testing.T) {
	rc := adminContext(500, map[string]any{"auto_admin": "manual"})
	account := &model.Account{ID: "acc-1", Email: "mairie@ville-test.fr", Roles: []string{}}

	result, err := extendedFixture(t, rc, account)
	require.NoError(t, err)
	assert.Equal(t, true, result["is_admin"])
	assert.Equal(t, AdminLevelEmailContact, result["is_admin_resolve_level"])
}

func TestExtendedAdminResolver_PopulationBelowThreshold(t *testing.T) {
	rc := adminContext(3499, nil)
	account := &model.Account{ID: "acc-1", Email: "user@ville-test.fr", Roles: []string{}}

	result, err := extendedFixture(t, rc, account)
	require.NoError(t, err)
	assert.Equal(t, true, result["is_admin"])
	assert.Equal(t, AdminLevelPopulation, result["is_admin_resolve_level"])
}

func TestExtendedAdminResolver_PopulationAtThreshold(t *testing.T) {
	// The threshold is strict: a population equal to it does not qualify.
	rc := adminContext(3500, nil)
	account := &model.Account{ID: "acc-1", Email: "user@ville-test.fr", Roles: []string{}}

	result, err := extendedFixture(t, rc, account)
	require.NoError(t, err)
	assert.Equal(t, false, result["is_admin"])
	assert.Equal(t, AdminReasonNoAdminRole, result["is_admin_reason"])
}

func TestExtendedAdminResolver_ConfiguredThreshold(t *testing.T) {
	rc := adminContext(8000, nil)
	rc.Service.Config["auto_admin_population_threshold"] = float64(10000)
	account := &model.Account{ID: "acc-1", Email: "user@ville-test.fr", Roles: []string{}}

	result, err := extendedFixture(t, rc, account)
	require.NoError(t, err)
	assert.Equal(t, true, result["is_admin"])
	assert.Equal(t, AdminLevelPopulation, result["is_admin_resolve_level"])
}

func TestExtendedAdminResolver_SIRETLessOrganizationSkipsFallbacks(t *testing.T) {
	// Without a SIRET none of the extended fallbacks apply, even for a small
	// commune whose contact address matches.
	rc := adminContext(500, nil)
	rc.Organization.SIRET = nil
	account := &model.Account{ID: "acc-1", Email: "mairie@ville-test.fr", Roles: []string{}}

	result, err := extendedFixture(t, rc, account)
	require.NoError(t, err)
	assert.Equal(t, false, result["is_admin"])
	assert.Equal(t, AdminReasonNoAdminRole, result["is_admin_reason"])
}

func TestExtendedAdminResolver_NoAccountStillChecksContextEmail(t *testing.T) {
	rc := adminContext(100000, nil)
	rc.AccountID = ""
	rc.Email = "mairie@ville-test.fr"

	accounts := &mockAccountStore{}
	resolver := NewExtendedAdminResolver(accounts)
	ctx := context.Background()

	accounts.On("Find", ctx, "org-1", model.AccountTypeUser, "", "mairie@ville-test.fr").
		Return(nil, pgx.ErrNoRows).Once()

	result, err := resolver.Resolve(ctx, rc)
	require.NoError(t, err)
	assert.Equal(t, true, result["is_admin"])
	assert.Equal(t, AdminLevelEmailContact, result["is_admin_resolve_level"])
	accounts.AssertExpectations(t)
}
