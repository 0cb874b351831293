package core

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/edvin/deploycenter/internal/api/request"
	"github.com/edvin/deploycenter/internal/model"
	"github.com/edvin/deploycenter/internal/platform"
)

const organizationColumns = `id, name, type, siret, siren, code_postal, code_insee, population,
	epci_libelle, epci_siren, epci_population, departement_code_insee, region_code_insee,
	email, website, phone, rpnt, service_public_url, created_at, updated_at`

// OrganizationService manages organization rows against the core database.
type OrganizationService struct {
	db DB
}

func NewOrganizationService(db DB) *OrganizationService {
	return &OrganizationService{db: db}
}

func scanOrganization(row interface{ Scan(dest ...any) error }) (*model.Organization, error) {
	var o model.Organization
	err := row.Scan(&o.ID, &o.Name, &o.Type, &o.SIRET, &o.SIREN, &o.CodePostal, &o.CodeInsee,
		&o.Population, &o.EPCILibelle, &o.EPCISiren, &o.EPCIPopulation, &o.DepartementCodeInsee,
		&o.RegionCodeInsee, &o.Email, &o.Website, &o.Phone, &o.RPNT, &o.ServicePublicURL,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *OrganizationService) Create(ctx context.Context, org *model.Organization) error {
	if err := org.Validate(); err != nil {
		return validationError(CodeInvalidIdentifier, "%s", err.Error())
	}
	if org.ID == "" {
		org.ID = platform.NewID()
	}
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now

	_, err := s.db.Exec(ctx,
		`INSERT INTO organizations (`+organizationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		org.ID, org.Name, org.Type, org.SIRET, org.SIREN, org.CodePostal, org.CodeInsee,
		org.Population, org.EPCILibelle, org.EPCISiren, org.EPCIPopulation,
		org.DepartementCodeInsee, org.RegionCodeInsee, org.Email, org.Website, org.Phone,
		org.RPNT, org.ServicePublicURL, org.CreatedAt, org.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return validationError(CodeInvalidIdentifier, "organization with the same SIRET, SIREN or INSEE code already exists")
		}
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (s *OrganizationService) GetByID(ctx context.Context, id string) (*model.Organization, error) {
	org, err := scanOrganization(s.db.QueryRow(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get organization %s: %w", id, err)
	}
	return org, nil
}

func (s *OrganizationService) GetBySIRET(ctx context.Context, siret string) (*model.Organization, error) {
	org, err := scanOrganization(s.db.QueryRow(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE siret = $1`, siret))
	if err != nil {
		return nil, fmt.Errorf("get organization by siret %s: %w", siret, err)
	}
	return org, nil
}

func (s *OrganizationService) GetByInsee(ctx context.Context, insee string) (*model.Organization, error) {
	org, err := scanOrganization(s.db.QueryRow(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE code_insee = $1`, insee))
	if err != nil {
		return nil, fmt.Errorf("get organization by insee %s: %w", insee, err)
	}
	return org, nil
}

var digitsRegex = regexp.MustCompile(`^\d+$`)

// FindByIdentifier resolves an organization from a SIRET (14 digits), SIREN
// (9 digits) or INSEE code (5 digits), picked by identifier length.
func (s *OrganizationService) FindByIdentifier(ctx context.Context, identifier string) (*model.Organization, error) {
	if !digitsRegex.MatchString(identifier) {
		return nil, validationError(CodeInvalidIdentifier, "identifier %q is not a SIRET, SIREN or INSEE code", identifier)
	}
	switch len(identifier) {
	case 14:
		return s.GetBySIRET(ctx, identifier)
	case 9:
		org, err := scanOrganization(s.db.QueryRow(ctx,
			`SELECT `+organizationColumns+` FROM organizations WHERE siren = $1`, identifier))
		if err != nil {
			return nil, fmt.Errorf("get organization by siren %s: %w", identifier, err)
		}
		return org, nil
	case 5:
		return s.GetByInsee(ctx, identifier)
	}
	return nil, validationError(CodeInvalidIdentifier, "identifier %q is not a SIRET, SIREN or INSEE code", identifier)
}

func (s *OrganizationService) List(ctx context.Context, params request.ListParams) ([]model.Organization, bool, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE 1=1`
	args := []any{}
	argIdx := 1

	if params.Search != "" {
		query += fmt.Sprintf(` AND (name ILIKE $%d OR siret ILIKE $%d OR code_insee ILIKE $%d)`, argIdx, argIdx, argIdx)
		args = append(args, "%"+params.Search+"%")
		argIdx++
	}
	if params.Status != "" {
		query += fmt.Sprintf(` AND type = $%d`, argIdx)
		args = append(args, params.Status)
		argIdx++
	}
	if params.Cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, params.Cursor)
		argIdx++
	}

	sortCol := "created_at"
	switch params.Sort {
	case "name":
		sortCol = "name"
	case "population":
		sortCol = "population"
	case "created_at":
		sortCol = "created_at"
	}
	order := "DESC"
	if params.Order == "asc" {
		order = "ASC"
	}
	query += fmt.Sprintf(` ORDER BY %s %s`, sortCol, order)
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, params.Limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, *org)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate organizations: %w", err)
	}

	hasMore := len(orgs) > params.Limit
	if hasMore {
		orgs = orgs[:params.Limit]
	}
	return orgs, hasMore, nil
}

func (s *OrganizationService) Update(ctx context.Context, org *model.Organization) error {
	if err := org.Validate(); err != nil {
		return validationError(CodeInvalidIdentifier, "%s", err.Error())
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE organizations SET name = $1, type = $2, siret = $3, siren = $4, code_postal = $5,
		 code_insee = $6, population = $7, epci_libelle = $8, epci_siren = $9, epci_population = $10,
		 departement_code_insee = $11, region_code_insee = $12, email = $13, website = $14,
		 phone = $15, rpnt = $16, service_public_url = $17, updated_at = now()
		 WHERE id = $18`,
		org.Name, org.Type, org.SIRET, org.SIREN, org.CodePostal, org.CodeInsee, org.Population,
		org.EPCILibelle, org.EPCISiren, org.EPCIPopulation, org.DepartementCodeInsee,
		org.RegionCodeInsee, org.Email, org.Website, org.Phone, org.RPNT, org.ServicePublicURL,
		org.ID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return validationError(CodeInvalidIdentifier, "organization with the same SIRET, SIREN or INSEE code already exists")
		}
		return fmt.Errorf("update organization %s: %w", org.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("organization %s not found", org.ID)
	}
	return nil
}

func (s *OrganizationService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM organizations WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete organization %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("organization %s not found", id)
	}
	return nil
}
