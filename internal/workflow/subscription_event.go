package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/deploycenter/internal/model"
	"github.com/edvin/deploycenter/internal/webhook"
)

// SubscriptionEventWorkflow delivers one lifecycle event to the service's
// webhook endpoints. Delivery is fire-and-forget end to end: endpoint
// failures are already folded into results by the activity, and even a
// failing activity (missing context rows) only logs.
func SubscriptionEventWorkflow(ctx workflow.Context, event model.SubscriptionEvent) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    3,
			InitialInterval:    1 * time.Second,
			MaximumInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	var results []webhook.Result
	err := workflow.ExecuteActivity(ctx, "DeliverSubscriptionEvent", event).Get(ctx, &results)
	if err != nil {
		logger.Warn("subscription event not delivered",
			"event", event.Type, "subscription", event.SubscriptionID, "error", err)
		return nil
	}

	for _, result := range results {
		if !result.Success {
			logger.Warn("webhook endpoint failed",
				"event", event.Type, "url", result.URL, "error", result.Error)
		}
	}
	return nil
}
