package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/scrape"
)

// scrapeActivityOptions allows for slow remote endpoints: a full paginated
// fetch sleeps one second per page.
func scrapeActivityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 2,
			InitialInterval: 5 * time.Second,
		},
	})
}

// ScrapeServiceWorkflow pulls every configured metrics source for one
// service. Started manually or by the API's scrape trigger endpoint; the
// workflow id carries the service id, so a second start for the same service
// dedupes against a running fetch.
func ScrapeServiceWorkflow(ctx workflow.Context, serviceID int64) (scrape.Stats, error) {
	ctx = scrapeActivityOptions(ctx)

	var stats scrape.Stats
	if err := workflow.ExecuteActivity(ctx, "ScrapeServiceMetrics", serviceID).Get(ctx, &stats); err != nil {
		return scrape.Stats{}, fmt.Errorf("scrape service %d: %w", serviceID, err)
	}
	return stats, nil
}

// ScrapeAllServicesWorkflow runs on a cron schedule and scrapes every active
// service in one activity.
func ScrapeAllServicesWorkflow(ctx workflow.Context) (scrape.Stats, error) {
	ctx = scrapeActivityOptions(ctx)
	logger := workflow.GetLogger(ctx)

	var stats scrape.Stats
	if err := workflow.ExecuteActivity(ctx, "ScrapeAllServices").Get(ctx, &stats); err != nil {
		return scrape.Stats{}, fmt.Errorf("scrape all services: %w", err)
	}
	logger.Info("scrape-all run finished",
		"pages", stats.Pages, "rows", stats.Rows, "stored", stats.Stored, "skipped", stats.Skipped)
	return stats, nil
}

// ScrapeUsageWorkflow pulls account-scoped usage metrics for one
// (service, account) pair. Triggered after every entitlement resolution
// against an active subscription.
func ScrapeUsageWorkflow(ctx workflow.Context, params core.UsageScrapeParams) error {
	ctx = scrapeActivityOptions(ctx)

	var stats scrape.Stats
	if err := workflow.ExecuteActivity(ctx, "ScrapeUsageMetrics", params).Get(ctx, &stats); err != nil {
		return fmt.Errorf("scrape usage for service %d: %w", params.ServiceID, err)
	}
	return nil
}
