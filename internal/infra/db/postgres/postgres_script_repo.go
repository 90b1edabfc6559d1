package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/repository"
)

var _ repository.ScriptRepository = (*PostgresScriptRepo)(nil)

type PostgresScriptRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresScriptRepo(pool *pgxpool.Pool) *PostgresScriptRepo {
	return &PostgresScriptRepo{pool: pool}
}

// Append locks the owning project row, then inserts with version = max+1.
// Without a caller tx it opens its own so the lock still covers the insert.
func (r *PostgresScriptRepo) Append(ctx context.Context, tx repository.Tx, s *model.Script) error {
	ptx, ok := tx.(pgx.Tx)
	if !ok {
		if tx != nil {
			return domain.ErrInvalidExecContext
		}
		return NewTxManager(r.pool).WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			return r.Append(ctx, tx, s)
		})
	}

	params, err := json.Marshal(s.Params)
	if err != nil {
		return fmt.Errorf("marshal generation params: %w", err)
	}
	if err := lockProject(ctx, ptx, s.ProjectID); err != nil {
		return err
	}

	const q = `
INSERT INTO scripts (id, project_id, version, content, prompt, generation_params, created_at)
SELECT $1::uuid, $2::uuid, COALESCE(MAX(version), 0) + 1, $3::text, $4::text, $5::jsonb, $6::timestamptz
  FROM scripts WHERE project_id = $2::uuid
RETURNING version;`
	if err := ptx.QueryRow(ctx, q, s.ID, s.ProjectID, s.Content, s.Prompt, params, s.CreatedAt).Scan(&s.Version); err != nil {
		return mapErr("append script", err)
	}
	return nil
}

func (r *PostgresScriptRepo) ListByProject(ctx context.Context, tx repository.Tx, projectID string) ([]*model.Script, error) {
	const q = `
SELECT id, project_id, version, content, prompt, generation_params, created_at
  FROM scripts WHERE project_id = $1
 ORDER BY version DESC;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, projectID)
	if err != nil {
		return nil, mapErr("list scripts", err)
	}
	defer rows.Close()

	var out []*model.Script
	for rows.Next() {
		var (
			s   model.Script
			raw []byte
		)
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Version, &s.Content, &s.Prompt, &raw, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &s.Params); err != nil {
				return nil, fmt.Errorf("%w: generation params: %v", domain.ErrReadDatabaseRow, err)
			}
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list scripts", err)
	}
	return out, nil
}

func (r *PostgresScriptRepo) CountByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	const q = `
SELECT COUNT(*) FROM scripts s JOIN projects p ON p.id = s.project_id WHERE p.user_id = $1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, q, userID).Scan(&n); err != nil {
		return 0, mapErr("count scripts", err)
	}
	return n, nil
}
