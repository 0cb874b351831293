// Package webhook delivers subscription lifecycle notifications to the HTTP
// endpoints a service configures. Delivery is fire-and-forget: failures are
// captured as structured results and logged, never returned as errors, so a
// dead endpoint can never fail the subscription write that triggered it.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/deploycenter/internal/model"
)

const (
	userAgent = "deploycenter-webhook/1.0"
	// responses are truncated in results to keep log lines bounded
	maxResponseBytes = 500
)

// Result records one delivery attempt.
type Result struct {
	URL        string `json:"url"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	Response   string `json:"response_text,omitempty"`
	Error      string `json:"error,omitempty"`
}

type Client struct {
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(log zerolog.Logger) *Client {
	// per-request timeouts come from each endpoint's config
	return &Client{httpClient: &http.Client{}, log: log}
}

// Notify renders and sends the event to every webhook endpoint the service
// configures. Each endpoint gets its own attempt; one failure never cancels
// the others.
func (c *Client) Notify(ctx context.Context, eventType string, sub *model.ServiceSubscription,
	org *model.Organization, service *model.Service) []Result {

	configs := ParseConfigs(service.WebhookConfigs(), c.log)
	if len(configs) == 0 {
		return nil
	}

	templateContext := EventContext(eventType, sub, org, service)
	results := make([]Result, 0, len(configs))
	for _, cfg := range configs {
		result := c.send(ctx, cfg, templateContext)
		observeDelivery(eventType, result.Success)
		if result.Success {
			c.log.Info().Str("url", result.URL).Int("status", result.StatusCode).
				Str("event", eventType).Msg("webhook delivered")
		} else {
			c.log.Error().Str("url", result.URL).Str("event", eventType).
				Str("error", result.Error).Msg("webhook delivery failed")
		}
		results = append(results, result)
	}
	return results
}

// EventContext builds the flat key set exposed to webhook templates.
func EventContext(eventType string, sub *model.ServiceSubscription,
	org *model.Organization, service *model.Service) map[string]any {

	return map[string]any{
		"event_type": eventType,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),

		"subscription_id":         sub.ID,
		"subscription_created_at": sub.CreatedAt.Format(time.RFC3339),
		"subscription_updated_at": sub.UpdatedAt.Format(time.RFC3339),
		"subscription_metadata":   sub.Metadata,

		"organization_id":          org.ID,
		"organization_name":        org.Name,
		"organization_type":        org.Type,
		"organization_code_insee":  deref(org.CodeInsee),
		"organization_code_postal": deref(org.CodePostal),
		"organization_population":  derefInt(org.Population),
		"organization_siret":       deref(org.SIRET),
		"organization_siren":       deref(org.SIREN),

		"service_id":          service.ID,
		"service_name":        service.Name,
		"service_type":        service.Type,
		"service_url":         service.URL,
		"service_description": deref(service.Description),
		"service_maturity":    service.Maturity,
	}
}

func (c *Client) send(ctx context.Context, cfg Config, templateContext map[string]any) Result {
	result := Result{URL: cfg.URL}

	var reqBody io.Reader
	switch cfg.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		body := renderTemplate(cfg.Body, templateContext)
		if emptyBody(body) {
			body = map[string]any{
				"event_type": templateContext["event_type"],
				"timestamp":  templateContext["timestamp"],
			}
		}
		encoded, err := json.Marshal(body)
		if err != nil {
			result.Error = fmt.Sprintf("marshal webhook body: %v", err)
			return result
		}
		reqBody = bytes.NewReader(encoded)
	}

	reqCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, cfg.Method, cfg.URL, reqBody)
	if err != nil {
		result.Error = fmt.Sprintf("webhook request: %v", err)
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for key, value := range cfg.Headers {
		rendered := renderTemplate(value, templateContext)
		if rendered == nil {
			continue
		}
		req.Header.Set(key, fmt.Sprintf("%v", rendered))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("send webhook: %v", err)
		return result
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	result.StatusCode = resp.StatusCode
	result.Response = string(respBody)

	if resp.StatusCode >= 300 {
		result.Error = fmt.Sprintf("webhook status %d", resp.StatusCode)
		return result
	}
	result.Success = true
	return result
}

func emptyBody(body any) bool {
	if body == nil {
		return true
	}
	m, ok := body.(map[string]any)
	return ok && len(m) == 0
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func derefInt(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}
