package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/deploycenter/internal/model"
	"github.com/edvin/deploycenter/internal/platform"
)

// EventDispatcher drains the post-commit event list returned by the
// subscription lifecycle. Delivery is fire-and-forget: a failing dispatch
// never fails the write that produced the events.
type EventDispatcher interface {
	Dispatch(ctx context.Context, events []model.SubscriptionEvent)
}

// ScrapeTrigger starts an asynchronous usage-metric scrape for one
// (service, account) pair.
type ScrapeTrigger interface {
	TriggerUsageScrape(ctx context.Context, serviceID int64, accountType, accountID string)
}

// UsageScrapeParams holds parameters for the ScrapeUsageWorkflow.
type UsageScrapeParams struct {
	ServiceID   int64  `json:"service_id"`
	AccountType string `json:"account_type"`
	AccountID   string `json:"account_id"`
}

// TemporalDispatcher routes lifecycle events and scrape triggers through
// Temporal workflows.
type TemporalDispatcher struct {
	tc        temporalclient.Client
	taskQueue string
	log       zerolog.Logger
}

func NewTemporalDispatcher(tc temporalclient.Client, taskQueue string, log zerolog.Logger) *TemporalDispatcher {
	return &TemporalDispatcher{tc: tc, taskQueue: taskQueue, log: log}
}

func (d *TemporalDispatcher) Dispatch(ctx context.Context, events []model.SubscriptionEvent) {
	for _, event := range events {
		wfID := fmt.Sprintf("subscription-event-%s-%s", event.SubscriptionID, platform.NewID())
		_, err := d.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
			ID:        wfID,
			TaskQueue: d.taskQueue,
		}, "SubscriptionEventWorkflow", event)
		if err != nil {
			d.log.Error().Err(err).
				Str("event_type", event.Type).
				Str("subscription_id", event.SubscriptionID).
				Msg("failed to dispatch subscription event")
		}
	}
}

func (d *TemporalDispatcher) TriggerUsageScrape(ctx context.Context, serviceID int64, accountType, accountID string) {
	wfID := fmt.Sprintf("scrape-usage-%d-%s", serviceID, accountID)
	_, err := d.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:        wfID,
		TaskQueue: d.taskQueue,
	}, "ScrapeUsageWorkflow", UsageScrapeParams{
		ServiceID:   serviceID,
		AccountType: accountType,
		AccountID:   accountID,
	})
	if err != nil {
		// An already-running scrape for the same pair is fine.
		d.log.Debug().Err(err).
			Int64("service_id", serviceID).
			Str("account_id", accountID).
			Msg("usage scrape not started")
	}
}
