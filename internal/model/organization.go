package model

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Organization types. "other" covers public bodies outside the
// commune/EPCI/departement/region hierarchy and bypasses RPNT checks.
const (
	OrgTypeCommune     = "commune"
	OrgTypeEPCI        = "epci"
	OrgTypeDepartement = "departement"
	OrgTypeRegion      = "region"
	OrgTypeOther       = "other"
)

// Mail domain statuses derived from RPNT compliance criteria.
const (
	MailDomainValid          = "valid"
	MailDomainNeedEmailSetup = "need_email_setup"
	MailDomainInvalid        = "invalid"
)

// RPNT criteria gating mail domain derivation. 2.1/2.2 certify the email
// domain, 1.1 certifies the website domain.
var (
	rpntEmailCriteria   = []string{"2.1", "2.2"}
	rpntWebsiteCriteria = []string{"1.1"}
)

type Organization struct {
	ID                   string         `json:"id" db:"id"`
	Name                 string         `json:"name" db:"name"`
	Type                 string         `json:"type" db:"type"`
	SIRET                *string        `json:"siret,omitempty" db:"siret"`
	SIREN                *string        `json:"siren,omitempty" db:"siren"`
	CodePostal           *string        `json:"code_postal,omitempty" db:"code_postal"`
	CodeInsee            *string        `json:"code_insee,omitempty" db:"code_insee"`
	Population           *int64         `json:"population,omitempty" db:"population"`
	EPCILibelle          *string        `json:"epci_libelle,omitempty" db:"epci_libelle"`
	EPCISiren            *string        `json:"epci_siren,omitempty" db:"epci_siren"`
	EPCIPopulation       *int64         `json:"epci_population,omitempty" db:"epci_population"`
	DepartementCodeInsee *string        `json:"departement_code_insee,omitempty" db:"departement_code_insee"`
	RegionCodeInsee      *string        `json:"region_code_insee,omitempty" db:"region_code_insee"`
	Email                *string        `json:"email,omitempty" db:"email"`
	Website              *string        `json:"website,omitempty" db:"website"`
	Phone                *string        `json:"phone,omitempty" db:"phone"`
	RPNT                 []string       `json:"rpnt" db:"rpnt"`
	ServicePublicURL     *string        `json:"service_public_url,omitempty" db:"service_public_url"`
	CreatedAt            time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at" db:"updated_at"`
}

var (
	siretRegex = regexp.MustCompile(`^\d{14}$`)
	sirenRegex = regexp.MustCompile(`^\d{9}$`)
	inseeRegex = regexp.MustCompile(`^\d{5}$`)
)

// ValidateSIRET checks that the value is exactly 14 digits.
func ValidateSIRET(siret string) error {
	if !siretRegex.MatchString(siret) {
		return fmt.Errorf("invalid SIRET %q: must be exactly 14 digits", siret)
	}
	return nil
}

// ValidateSIREN checks that the value is exactly 9 digits.
func ValidateSIREN(siren string) error {
	if !sirenRegex.MatchString(siren) {
		return fmt.Errorf("invalid SIREN %q: must be exactly 9 digits", siren)
	}
	return nil
}

// ValidateInsee checks that the value is exactly 5 digits.
func ValidateInsee(insee string) error {
	if !inseeRegex.MatchString(insee) {
		return fmt.Errorf("invalid INSEE code %q: must be exactly 5 digits", insee)
	}
	return nil
}

// Validate checks the administrative codes carried by the organization.
func (o *Organization) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("organization name is required")
	}
	if o.SIRET != nil && *o.SIRET != "" {
		if err := ValidateSIRET(*o.SIRET); err != nil {
			return err
		}
	}
	if o.SIREN != nil && *o.SIREN != "" {
		if err := ValidateSIREN(*o.SIREN); err != nil {
			return err
		}
	}
	if o.CodeInsee != nil && *o.CodeInsee != "" {
		if err := ValidateInsee(*o.CodeInsee); err != nil {
			return err
		}
	}
	return nil
}

// EmailDomain returns the domain part of the official contact email, or ""
// when no email is set.
func (o *Organization) EmailDomain() string {
	if o.Email == nil {
		return ""
	}
	at := strings.LastIndex(*o.Email, "@")
	if at < 0 || at == len(*o.Email)-1 {
		return ""
	}
	return (*o.Email)[at+1:]
}

// WebsiteDomain returns the host of the official website with any leading
// "www." and port stripped, or "" when no website is set.
func (o *Organization) WebsiteDomain() string {
	if o.Website == nil || *o.Website == "" {
		return ""
	}
	u, err := url.Parse(*o.Website)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	return strings.TrimPrefix(host, "www.")
}

func (o *Organization) hasRPNT(criteria []string) bool {
	for _, c := range criteria {
		found := false
		for _, have := range o.RPNT {
			if have == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// MailDomainStatus derives the organization's mail domain status from its
// RPNT criteria and digital presence fields. Type "other" bypasses RPNT and
// falls back to email-then-website directly.
func (o *Organization) MailDomainStatus() string {
	if o.Type == OrgTypeOther {
		if o.EmailDomain() != "" {
			return MailDomainValid
		}
		if o.WebsiteDomain() != "" {
			return MailDomainNeedEmailSetup
		}
		return MailDomainInvalid
	}

	if o.hasRPNT(rpntEmailCriteria) && o.EmailDomain() != "" {
		return MailDomainValid
	}
	if o.hasRPNT(rpntWebsiteCriteria) && o.WebsiteDomain() != "" {
		return MailDomainNeedEmailSetup
	}
	return MailDomainInvalid
}

// MailDomain returns the domain selected by MailDomainStatus: the email
// domain when the status is valid, the website domain when email setup is
// still needed, and "" when the status is invalid.
func (o *Organization) MailDomain() string {
	switch o.MailDomainStatus() {
	case MailDomainValid:
		return o.EmailDomain()
	case MailDomainNeedEmailSetup:
		return o.WebsiteDomain()
	}
	return ""
}
