package model

import "time"

type Operator struct {
	ID        string         `json:"id" db:"id"`
	Name      string         `json:"name" db:"name"`
	URL       *string        `json:"url,omitempty" db:"url"`
	Config    map[string]any `json:"config" db:"config"`
	IsActive  bool           `json:"is_active" db:"is_active"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// OperatorRef is the minimal operator shape returned by the entitlements API.
type OperatorRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OperatorSettings is the typed view over the operator's free-form config map.
type OperatorSettings struct {
	IDPs                   []string
	AutoJoin               bool
	BypassPopulationLimits bool
	ExternalAPIKey         string
}

// Settings parses the operator config map into its typed view. Unknown keys
// are ignored, missing keys fall back to zero values.
func (o *Operator) Settings() OperatorSettings {
	s := OperatorSettings{}
	if o.Config == nil {
		return s
	}
	if idps, ok := o.Config["idps"].([]any); ok {
		for _, idp := range idps {
			if v, ok := idp.(string); ok {
				s.IDPs = append(s.IDPs, v)
			}
		}
	}
	if v, ok := o.Config["auto_join"].(bool); ok {
		s.AutoJoin = v
	}
	if v, ok := o.Config["bypass_population_limits"].(bool); ok {
		s.BypassPopulationLimits = v
	}
	if v, ok := o.Config["external_api_key"].(string); ok {
		s.ExternalAPIKey = v
	}
	return s
}
