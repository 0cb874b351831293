// Package seed loads a YAML fixture file and applies it through the core
// services. Seeding is idempotent: resources matched by identifier or name
// are skipped, so the same file can be applied repeatedly against the same
// database.
package seed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/edvin/deploycenter/internal/api/request"
	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/model"
)

// Load reads and parses a seed file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes seed YAML and checks cross-section references.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	serviceNames := map[string]bool{}
	for _, s := range c.Services {
		if s.Name == "" || s.Type == "" {
			return fmt.Errorf("service entry needs name and type")
		}
		serviceNames[s.Name] = true
	}
	operatorNames := map[string]bool{}
	for _, op := range c.Operators {
		if op.Name == "" {
			return fmt.Errorf("operator entry needs a name")
		}
		operatorNames[op.Name] = true
	}
	for _, s := range c.Services {
		for _, req := range s.RequiredServices {
			if !serviceNames[req] {
				return fmt.Errorf("service %q requires unknown service %q", s.Name, req)
			}
		}
	}
	for _, org := range c.Organizations {
		if org.Name == "" {
			return fmt.Errorf("organization entry needs a name")
		}
		for _, sub := range org.Subscriptions {
			if sub.Service == "" || sub.Operator == "" {
				return fmt.Errorf("organization %q: subscription needs service and operator", org.Name)
			}
			if !serviceNames[sub.Service] {
				return fmt.Errorf("organization %q: subscription names unknown service %q", org.Name, sub.Service)
			}
			if !operatorNames[sub.Operator] {
				return fmt.Errorf("organization %q: subscription names unknown operator %q", org.Name, sub.Operator)
			}
		}
	}
	for _, k := range c.APIKeys {
		if k.Name == "" {
			return fmt.Errorf("api key entry needs a name")
		}
		if k.Operator != "" && !operatorNames[k.Operator] {
			return fmt.Errorf("api key %q names unknown operator %q", k.Name, k.Operator)
		}
	}
	return nil
}

// Apply creates the seeded resources in dependency order: operators and
// services first, then organizations with their subscriptions, API keys last.
// Generated API keys are printed once; they cannot be recovered afterwards.
func Apply(ctx context.Context, services *core.Services, cfg *Config) error {
	operatorIDs := map[string]string{} // operator name -> ID
	serviceIDs := map[string]int64{}   // service name -> ID

	for _, def := range cfg.Operators {
		id, err := applyOperator(ctx, services.Operator, def)
		if err != nil {
			return err
		}
		operatorIDs[def.Name] = id
	}

	for _, def := range cfg.Services {
		id, err := applyService(ctx, services.Service, def)
		if err != nil {
			return err
		}
		serviceIDs[def.Name] = id
	}

	// Required services resolve after every service exists, so a service can
	// name one defined later in the file.
	for _, def := range cfg.Services {
		if len(def.RequiredServices) == 0 {
			continue
		}
		required := make([]int64, 0, len(def.RequiredServices))
		for _, name := range def.RequiredServices {
			required = append(required, serviceIDs[name])
		}
		if err := services.Service.SetRequiredServices(ctx, serviceIDs[def.Name], required); err != nil {
			return fmt.Errorf("set required services for %q: %w", def.Name, err)
		}
	}

	for _, def := range cfg.Organizations {
		if err := applyOrganization(ctx, services, def, operatorIDs, serviceIDs); err != nil {
			return err
		}
	}

	for _, def := range cfg.APIKeys {
		if err := applyAPIKey(ctx, services.APIKey, def, operatorIDs); err != nil {
			return err
		}
	}

	fmt.Println("\nSeed complete!")
	fmt.Printf("  Operators:     %d\n", len(cfg.Operators))
	fmt.Printf("  Services:      %d\n", len(cfg.Services))
	fmt.Printf("  Organizations: %d\n", len(cfg.Organizations))
	return nil
}

func applyOperator(ctx context.Context, operators *core.OperatorService, def OperatorDef) (string, error) {
	if existing, err := findOperatorByName(ctx, operators, def.Name); err != nil {
		return "", err
	} else if existing != nil {
		fmt.Printf("Operator %q: exists (%s, skipping)\n", def.Name, existing.ID)
		return existing.ID, nil
	}

	op := &model.Operator{
		ID:       def.ID,
		Name:     def.Name,
		Config:   def.Config,
		IsActive: def.IsActive == nil || *def.IsActive,
	}
	if def.URL != "" {
		op.URL = &def.URL
	}
	if err := operators.Create(ctx, op); err != nil {
		return "", fmt.Errorf("create operator %q: %w", def.Name, err)
	}
	fmt.Printf("Operator %q: %s created\n", def.Name, op.ID)
	return op.ID, nil
}

func findOperatorByName(ctx context.Context, operators *core.OperatorService, name string) (*model.Operator, error) {
	matches, _, err := operators.List(ctx, request.ListParams{Limit: request.MaxLimit, Search: name})
	if err != nil {
		return nil, fmt.Errorf("find operator %q: %w", name, err)
	}
	for i := range matches {
		if strings.EqualFold(matches[i].Name, name) {
			return &matches[i], nil
		}
	}
	return nil, nil
}

func applyService(ctx context.Context, svcs *core.ServiceService, def ServiceDef) (int64, error) {
	if existing, err := findServiceByName(ctx, svcs, def.Name); err != nil {
		return 0, err
	} else if existing != nil {
		fmt.Printf("Service %q: exists (%d, skipping)\n", def.Name, existing.ID)
		return existing.ID, nil
	}

	maturity := def.Maturity
	if maturity == "" {
		maturity = model.MaturityBeta
	}
	svc := &model.Service{
		Type:     def.Type,
		Name:     def.Name,
		URL:      def.URL,
		Maturity: maturity,
		Config:   def.Config,
		IsActive: def.IsActive == nil || *def.IsActive,
	}
	if def.Description != "" {
		svc.Description = &def.Description
	}
	if err := svcs.Create(ctx, svc); err != nil {
		return 0, fmt.Errorf("create service %q: %w", def.Name, err)
	}
	fmt.Printf("Service %q: %d created\n", def.Name, svc.ID)
	return svc.ID, nil
}

func findServiceByName(ctx context.Context, svcs *core.ServiceService, name string) (*model.Service, error) {
	matches, _, err := svcs.List(ctx, request.ListParams{Limit: request.MaxLimit, Search: name})
	if err != nil {
		return nil, fmt.Errorf("find service %q: %w", name, err)
	}
	for i := range matches {
		if strings.EqualFold(matches[i].Name, name) {
			return &matches[i], nil
		}
	}
	return nil, nil
}

func applyOrganization(ctx context.Context, services *core.Services, def OrganizationDef,
	operatorIDs map[string]string, serviceIDs map[string]int64) error {

	org, err := findOrganization(ctx, services.Organization, def)
	if err != nil {
		return err
	}
	if org != nil {
		fmt.Printf("Organization %q: exists (%s, skipping)\n", def.Name, org.ID)
	} else {
		org = &model.Organization{
			ID:         def.ID,
			Name:       def.Name,
			Type:       def.Type,
			Population: def.Population,
			RPNT:       def.RPNT,
		}
		if org.Type == "" {
			org.Type = model.OrgTypeCommune
		}
		setOptional(&org.SIRET, def.SIRET)
		setOptional(&org.SIREN, def.SIREN)
		setOptional(&org.CodeInsee, def.CodeInsee)
		setOptional(&org.CodePostal, def.CodePostal)
		setOptional(&org.Email, def.Email)
		setOptional(&org.Website, def.Website)
		if err := services.Organization.Create(ctx, org); err != nil {
			return fmt.Errorf("create organization %q: %w", def.Name, err)
		}
		fmt.Printf("Organization %q: %s created\n", def.Name, org.ID)
	}

	for _, subDef := range def.Subscriptions {
		serviceID := serviceIDs[subDef.Service]
		if existing, err := services.Subscription.GetActive(ctx, org.ID, serviceID); err == nil && existing != nil {
			fmt.Printf("  Subscription %q: exists (%s, skipping)\n", subDef.Service, existing.ID)
			continue
		} else if err != nil && !core.IsNotFound(err) {
			return fmt.Errorf("find subscription for %q: %w", subDef.Service, err)
		}

		sub := &model.ServiceSubscription{
			OrganizationID: org.ID,
			OperatorID:     operatorIDs[subDef.Operator],
			ServiceID:      serviceID,
			Metadata:       subDef.Metadata,
			IsActive:       subDef.IsActive == nil || *subDef.IsActive,
		}
		if _, err := services.Subscription.Create(ctx, sub, core.WriteOptions{Actor: "seed"}); err != nil {
			return fmt.Errorf("create subscription %q for %q: %w", subDef.Service, def.Name, err)
		}
		fmt.Printf("  Subscription %q: %s created\n", subDef.Service, sub.ID)
	}
	return nil
}

// findOrganization matches on SIRET first, then INSEE, then explicit ID.
func findOrganization(ctx context.Context, orgs *core.OrganizationService, def OrganizationDef) (*model.Organization, error) {
	lookups := []func() (*model.Organization, error){}
	if def.SIRET != "" {
		lookups = append(lookups, func() (*model.Organization, error) { return orgs.GetBySIRET(ctx, def.SIRET) })
	}
	if def.CodeInsee != "" {
		lookups = append(lookups, func() (*model.Organization, error) { return orgs.GetByInsee(ctx, def.CodeInsee) })
	}
	if def.ID != "" {
		lookups = append(lookups, func() (*model.Organization, error) { return orgs.GetByID(ctx, def.ID) })
	}
	for _, lookup := range lookups {
		org, err := lookup()
		if err == nil {
			return org, nil
		}
		if !core.IsNotFound(err) {
			return nil, fmt.Errorf("find organization %q: %w", def.Name, err)
		}
	}
	return nil, nil
}

func applyAPIKey(ctx context.Context, keys *core.APIKeyService, def APIKeyDef, operatorIDs map[string]string) error {
	var operatorID *string
	if def.Operator != "" {
		id := operatorIDs[def.Operator]
		operatorID = &id
	}

	if def.Key != "" {
		if _, err := keys.GetByRawKey(ctx, def.Key); err == nil {
			fmt.Printf("API key %q: exists (skipping)\n", def.Name)
			return nil
		} else if !core.IsNotFound(err) {
			return fmt.Errorf("find api key %q: %w", def.Name, err)
		}
		if _, err := keys.CreateWithRawKey(ctx, def.Name, def.Key, operatorID, def.Superuser); err != nil {
			return fmt.Errorf("create api key %q: %w", def.Name, err)
		}
		fmt.Printf("API key %q: created\n", def.Name)
		return nil
	}

	_, rawKey, err := keys.Create(ctx, def.Name, operatorID, def.Superuser)
	if err != nil {
		return fmt.Errorf("create api key %q: %w", def.Name, err)
	}
	fmt.Printf("API key %q: %s\n", def.Name, rawKey)
	return nil
}

func setOptional(dst **string, value string) {
	if value != "" {
		*dst = &value
	}
}
