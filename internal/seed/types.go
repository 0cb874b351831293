package seed

// Config is the root of a seed file. References between sections are by
// name: subscriptions name their service and operator, services name their
// required services.
type Config struct {
	Operators     []OperatorDef     `yaml:"operators"`
	Services      []ServiceDef      `yaml:"services"`
	Organizations []OrganizationDef `yaml:"organizations"`
	APIKeys       []APIKeyDef       `yaml:"api_keys"`
}

type OperatorDef struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	URL      string         `yaml:"url"`
	Config   map[string]any `yaml:"config"`
	IsActive *bool          `yaml:"is_active"`
}

type ServiceDef struct {
	Type        string         `yaml:"type"`
	Name        string         `yaml:"name"`
	URL         string         `yaml:"url"`
	Description string         `yaml:"description"`
	Maturity    string         `yaml:"maturity"`
	Config      map[string]any `yaml:"config"`
	IsActive    *bool          `yaml:"is_active"`
	// RequiredServices names services defined earlier in the same file or
	// already present in the store.
	RequiredServices []string `yaml:"required_services"`
}

type OrganizationDef struct {
	ID            string            `yaml:"id"`
	Name          string            `yaml:"name"`
	Type          string            `yaml:"type"`
	SIRET         string            `yaml:"siret"`
	SIREN         string            `yaml:"siren"`
	CodeInsee     string            `yaml:"code_insee"`
	CodePostal    string            `yaml:"code_postal"`
	Population    *int64            `yaml:"population"`
	Email         string            `yaml:"email"`
	Website       string            `yaml:"website"`
	RPNT          []string          `yaml:"rpnt"`
	Subscriptions []SubscriptionDef `yaml:"subscriptions"`
}

type SubscriptionDef struct {
	Service  string         `yaml:"service"`
	Operator string         `yaml:"operator"`
	Metadata map[string]any `yaml:"metadata"`
	IsActive *bool          `yaml:"is_active"`
}

type APIKeyDef struct {
	Name string `yaml:"name"`
	// Key is the raw key to register. Empty means a key is generated and
	// printed once.
	Key       string `yaml:"key"`
	Operator  string `yaml:"operator"`
	Superuser bool   `yaml:"superuser"`
}
