package core

import (
	"context"
	"fmt"
	"time"

	"github.com/edvin/deploycenter/internal/api/request"
	"github.com/edvin/deploycenter/internal/model"
	"github.com/edvin/deploycenter/internal/platform"
)

const operatorColumns = `id, name, url, config, is_active, created_at, updated_at`

// OperatorService manages operator rows against the core database.
type OperatorService struct {
	db DB
}

func NewOperatorService(db DB) *OperatorService {
	return &OperatorService{db: db}
}

func scanOperator(row interface{ Scan(dest ...any) error }) (*model.Operator, error) {
	var o model.Operator
	err := row.Scan(&o.ID, &o.Name, &o.URL, &o.Config, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *OperatorService) Create(ctx context.Context, op *model.Operator) error {
	if op.Name == "" {
		return validationError(CodeInvalidIdentifier, "operator name is required")
	}
	if op.ID == "" {
		op.ID = platform.NewID()
	}
	if op.Config == nil {
		op.Config = map[string]any{}
	}
	now := time.Now().UTC()
	op.CreatedAt = now
	op.UpdatedAt = now

	_, err := s.db.Exec(ctx,
		`INSERT INTO operators (`+operatorColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		op.ID, op.Name, op.URL, op.Config, op.IsActive, op.CreatedAt, op.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert operator: %w", err)
	}
	return nil
}

func (s *OperatorService) GetByID(ctx context.Context, id string) (*model.Operator, error) {
	op, err := scanOperator(s.db.QueryRow(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get operator %s: %w", id, err)
	}
	return op, nil
}

func (s *OperatorService) List(ctx context.Context, params request.ListParams) ([]model.Operator, bool, error) {
	query := `SELECT ` + operatorColumns + ` FROM operators WHERE 1=1`
	args := []any{}
	argIdx := 1

	if params.Search != "" {
		query += fmt.Sprintf(` AND name ILIKE $%d`, argIdx)
		args = append(args, "%"+params.Search+"%")
		argIdx++
	}
	if params.Status == "active" {
		query += ` AND is_active`
	}
	if params.Cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, params.Cursor)
		argIdx++
	}

	sortCol := "created_at"
	if params.Sort == "name" {
		sortCol = "name"
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
		return nil, false, fmt.Errorf("list operators: %w", err)
	}
	defer rows.Close()

	var operators []model.Operator
	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan operator: %w", err)
		}
		operators = append(operators, *op)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate operators: %w", err)
	}

	hasMore := len(operators) > params.Limit
	if hasMore {
		operators = operators[:params.Limit]
	}
	return operators, hasMore, nil
}

func (s *OperatorService) Update(ctx context.Context, op *model.Operator) error {
	if op.Name == "" {
		return validationError(CodeInvalidIdentifier, "operator name is required")
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE operators SET name = $1, url = $2, config = $3, is_active = $4, updated_at = now()
		 WHERE id = $5`,
		op.Name, op.URL, op.Config, op.IsActive, op.ID,
	)
	if err != nil {
		return fmt.Errorf("update operator %s: %w", op.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("operator %s not found", op.ID)
	}
	return nil
}

func (s *OperatorService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM operators WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete operator %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("operator %s not found", id)
	}
	return nil
}
