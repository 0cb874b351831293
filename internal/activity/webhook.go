package activity

import (
	"context"
	"fmt"

	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/model"
	"github.com/edvin/deploycenter/internal/webhook"
)

// Webhook contains activities that deliver subscription lifecycle events to
// the endpoints configured on the affected service.
type Webhook struct {
	services *core.Services
	notifier *webhook.Client
}

// NewWebhook creates a new Webhook activity struct.
func NewWebhook(services *core.Services, notifier *webhook.Client) *Webhook {
	return &Webhook{services: services, notifier: notifier}
}

// DeliverSubscriptionEvent renders and sends the event to every webhook
// endpoint of the service. Delivery failures land in the returned results,
// never in the error: only missing context rows fail the activity.
func (a *Webhook) DeliverSubscriptionEvent(ctx context.Context, event model.SubscriptionEvent) ([]webhook.Result, error) {
	service, err := a.services.Service.GetByID(ctx, event.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("load service %d: %w", event.ServiceID, err)
	}
	org, err := a.services.Organization.GetByID(ctx, event.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("load organization %s: %w", event.OrganizationID, err)
	}

	sub, err := a.services.Subscription.GetByID(ctx, event.SubscriptionID)
	if err != nil {
		if !core.IsNotFound(err) {
			return nil, fmt.Errorf("load subscription %s: %w", event.SubscriptionID, err)
		}
		// A deleted subscription is notified from the ids the event carries.
		sub = &model.ServiceSubscription{
			ID:             event.SubscriptionID,
			OrganizationID: event.OrganizationID,
			ServiceID:      event.ServiceID,
		}
	}

	return a.notifier.Notify(ctx, event.Type, sub, org, service), nil
}
