package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/deploycenter/internal/model"
)

func newMetricService(db DB) *MetricService {
	accounts := NewAccountService(db, zerolog.Nop())
	return NewMetricService(db, accounts, zerolog.Nop())
}

// ---------- UpsertMetrics ----------

func TestMetricService_UpsertMetrics_OrganizationScoped(t *testing.T) {
	db := &mockDB{}
	svc := newMetricService(db)
	ctx := context.Background()

	tx := &mockTx{}
	db.On("Begin", ctx).Return(tx, nil).Once()
	tx.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Twice()
	tx.On("Commit", ctx).Return(nil).Once()

	entries := []MetricEntry{
		{Key: model.MetricKeyStorageUsed, Value: 1024},
		{Key: "active_users", Value: 12},
	}
	err := svc.UpsertMetrics(ctx, 1, "org-1", entries, false)
	require.NoError(t, err)
	db.AssertExpectations(t)
	tx.AssertExpectations(t)
}

func TestMetricService_UpsertMetrics_ResolvesAccountFirst(t *testing.T) {
	db := &mockDB{}
	svc := newMetricService(db)
	ctx := context.Background()

	account := model.Account{
		ID:             "acc-1",
		OrganizationID: "org-1",
		Type:           model.AccountTypeUser,
		ExternalID:     "ext-1",
		Roles:          []string{},
	}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: accountScanFunc(account)}).Once()

	tx := &mockTx{}
	db.On("Begin", ctx).Return(tx, nil).Once()
	tx.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()
	tx.On("Commit", ctx).Return(nil).Once()

	entries := []MetricEntry{
		{Key: model.MetricKeyStorageUsed, Value: 2048, AccountType: model.AccountTypeUser, AccountID: "ext-1"},
	}
	err := svc.UpsertMetrics(ctx, 1, "org-1", entries, true)
	require.NoError(t, err)
	db.AssertExpectations(t)
	tx.AssertExpectations(t)
}

func TestMetricService_UpsertMetrics_ExecErrorRollsBack(t *testing.T) {
	db := &mockDB{}
	svc := newMetricService(db)
	ctx := context.Background()

	tx := &mockTx{}
	db.On("Begin", ctx).Return(tx, nil).Once()
	tx.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("disk full")).Once()

	err := svc.UpsertMetrics(ctx, 1, "org-1", []MetricEntry{{Key: "k", Value: 1}}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert metric")
	db.AssertExpectations(t)
	tx.AssertExpectations(t)
}

func TestMetricService_UpsertMetrics_BeginError(t *testing.T) {
	db := &mockDB{}
	svc := newMetricService(db)
	ctx := context.Background()

	db.On("Begin", ctx).Return(nil, errors.New("pool exhausted")).Once()

	err := svc.UpsertMetrics(ctx, 1, "org-1", []MetricEntry{{Key: "k", Value: 1}}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin metric upsert")
	db.AssertExpectations(t)
}

// ---------- Latest reads ----------

func TestMetricService_LatestOrganizationMetric(t *testing.T) {
	db := &mockDB{}
	svc := newMetricService(db)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond)
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*string)) = "metric-1"
			*(dest[1].(*int64)) = int64(1)
			*(dest[2].(*string)) = "org-1"
			*(dest[3].(**string)) = nil
			*(dest[4].(*string)) = model.MetricKeyStorageUsed
			*(dest[5].(*float64)) = 10001
			*(dest[6].(*time.Time)) = now
			return nil
		}}).Once()

	m, err := svc.LatestOrganizationMetric(ctx, 1, "org-1", model.MetricKeyStorageUsed)
	require.NoError(t, err)
	assert.Equal(t, float64(10001), m.Value)
	assert.Nil(t, m.AccountID)
	assert.Equal(t, now, m.Timestamp)
	db.AssertExpectations(t)
}

func TestMetricService_LatestAccountMetric_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := newMetricService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}).Once()

	m, err := svc.LatestAccountMetric(ctx, 1, "acc-1", model.MetricKeyStorageUsed)
	require.Error(t, err)
	assert.Nil(t, m)
	assert.True(t, IsNotFound(err))
	db.AssertExpectations(t)
}
