package core

import (
	"context"
	"fmt"
	"time"

	"github.com/edvin/deploycenter/internal/api/request"
	"github.com/edvin/deploycenter/internal/model"
)

const serviceColumns = `id, type, name, url, description, maturity, launch_date, config, is_active, created_at, updated_at`

// ServiceService manages service catalog rows against the core database.
type ServiceService struct {
	db DB
}

func NewServiceService(db DB) *ServiceService {
	return &ServiceService{db: db}
}

func scanService(row interface{ Scan(dest ...any) error }) (*model.Service, error) {
	var svc model.Service
	err := row.Scan(&svc.ID, &svc.Type, &svc.Name, &svc.URL, &svc.Description, &svc.Maturity,
		&svc.LaunchDate, &svc.Config, &svc.IsActive, &svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *ServiceService) Create(ctx context.Context, svc *model.Service) error {
	if svc.Name == "" || svc.Type == "" {
		return validationError(CodeInvalidIdentifier, "service name and type are required")
	}
	if svc.Config == nil {
		svc.Config = map[string]any{}
	}
	now := time.Now().UTC()
	svc.CreatedAt = now
	svc.UpdatedAt = now

	err := s.db.QueryRow(ctx,
		`INSERT INTO services (type, name, url, description, maturity, launch_date, config, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		svc.Type, svc.Name, svc.URL, svc.Description, svc.Maturity, svc.LaunchDate,
		svc.Config, svc.IsActive, svc.CreatedAt, svc.UpdatedAt,
	).Scan(&svc.ID)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}

	if len(svc.RequiredServices) > 0 {
		if err := s.SetRequiredServices(ctx, svc.ID, svc.RequiredServices); err != nil {
			return err
		}
	}
	return nil
}

func (s *ServiceService) GetByID(ctx context.Context, id int64) (*model.Service, error) {
	svc, err := scanService(s.db.QueryRow(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get service %d: %w", id, err)
	}
	required, err := s.requiredServices(ctx, id)
	if err != nil {
		return nil, err
	}
	svc.RequiredServices = required
	return svc, nil
}

func (s *ServiceService) requiredServices(ctx context.Context, id int64) ([]int64, error) {
	rows, err := s.db.Query(ctx,
		`SELECT required_service_id FROM service_required_services WHERE service_id = $1 ORDER BY required_service_id`, id)
	if err != nil {
		return nil, fmt.Errorf("list required services for service %d: %w", id, err)
	}
	defer rows.Close()

	var required []int64
	for rows.Next() {
		var rid int64
		if err := rows.Scan(&rid); err != nil {
			return nil, fmt.Errorf("scan required service: %w", err)
		}
		required = append(required, rid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate required services: %w", err)
	}
	return required, nil
}

// SetRequiredServices replaces the "must already be subscribed" set for a
// service. The relation is asymmetric; no cycle detection is attempted.
func (s *ServiceService) SetRequiredServices(ctx context.Context, id int64, required []int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin set required services: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM service_required_services WHERE service_id = $1", id); err != nil {
		return fmt.Errorf("clear required services for service %d: %w", id, err)
	}
	for _, rid := range required {
		if rid == id {
			return validationError(CodeInvalidIdentifier, "service %d cannot require itself", id)
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO service_required_services (service_id, required_service_id) VALUES ($1, $2)",
			id, rid); err != nil {
			return fmt.Errorf("insert required service %d for service %d: %w", rid, id, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit set required services: %w", err)
	}
	return nil
}

func (s *ServiceService) List(ctx context.Context, params request.ListParams) ([]model.Service, bool, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE 1=1`
	args := []any{}
	argIdx := 1

	if params.Search != "" {
		query += fmt.Sprintf(` AND name ILIKE $%d`, argIdx)
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

	sortCol := "id"
	switch params.Sort {
	case "name":
		sortCol = "name"
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
		return nil, false, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, *svc)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate services: %w", err)
	}

	hasMore := len(services) > params.Limit
	if hasMore {
		services = services[:params.Limit]
	}
	return services, hasMore, nil
}

// ListActive returns every active service, used by the scheduled scrape to
// fan out one fetch per service.
func (s *ServiceService) ListActive(ctx context.Context) ([]model.Service, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active services: %w", err)
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, *svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}
	return services, nil
}

func (s *ServiceService) Update(ctx context.Context, svc *model.Service) error {
	if svc.Name == "" || svc.Type == "" {
		return validationError(CodeInvalidIdentifier, "service name and type are required")
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE services SET type = $1, name = $2, url = $3, description = $4, maturity = $5,
		 launch_date = $6, config = $7, is_active = $8, updated_at = now()
		 WHERE id = $9`,
		svc.Type, svc.Name, svc.URL, svc.Description, svc.Maturity, svc.LaunchDate,
		svc.Config, svc.IsActive, svc.ID,
	)
	if err != nil {
		return fmt.Errorf("update service %d: %w", svc.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("service %d not found", svc.ID)
	}
	return s.SetRequiredServices(ctx, svc.ID, svc.RequiredServices)
}

// SetLogo stores the service logo. Only SVG content is accepted by the API
// layer; core stores the bytes as-is.
func (s *ServiceService) SetLogo(ctx context.Context, id int64, logo []byte) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE services SET logo_svg = $1, updated_at = now() WHERE id = $2", logo, id)
	if err != nil {
		return fmt.Errorf("set logo for service %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("service %d not found", id)
	}
	return nil
}

func (s *ServiceService) GetLogo(ctx context.Context, id int64) ([]byte, error) {
	var logo []byte
	err := s.db.QueryRow(ctx, "SELECT logo_svg FROM services WHERE id = $1", id).Scan(&logo)
	if err != nil {
		return nil, fmt.Errorf("get logo for service %d: %w", id, err)
	}
	return logo, nil
}

func (s *ServiceService) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM services WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete service %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("service %d not found", id)
	}
	return nil
}
