package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/LucasBuchC/takeone-ai/internal/domain"
	"github.com/LucasBuchC/takeone-ai/internal/domain/model"
	"github.com/LucasBuchC/takeone-ai/internal/domain/ports/repository"
)

var _ repository.ProjectRepository = (*PostgresProjectRepo)(nil)

type PostgresProjectRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresProjectRepo(pool *pgxpool.Pool) *PostgresProjectRepo {
	return &PostgresProjectRepo{pool: pool}
}

func (r *PostgresProjectRepo) Save(ctx context.Context, tx repository.Tx, p *model.Project) error {
	const q = `
INSERT INTO projects (id, user_id, title, video_type, duration, last_prompt, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
  title = EXCLUDED.title, video_type = EXCLUDED.video_type, duration = EXCLUDED.duration,
  last_prompt = EXCLUDED.last_prompt, updated_at = EXCLUDED.updated_at
 WHERE projects.user_id = EXCLUDED.user_id;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, p.ID, p.UserID, p.Title, string(p.VideoType), p.Duration, p.LastPrompt, p.CreatedAt, p.UpdatedAt)
	return mapErr("save project", err)
}

func (r *PostgresProjectRepo) FindByID(ctx context.Context, tx repository.Tx, userID, id string) (*model.Project, error) {
	const q = `
SELECT id, user_id, title, video_type, duration, last_prompt, created_at, updated_at
  FROM projects WHERE id = $1 AND user_id = $2;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	var (
		p  model.Project
		vt string
	)
	if err := ex.QueryRow(ctx, q, id, userID).Scan(&p.ID, &p.UserID, &p.Title, &vt, &p.Duration, &p.LastPrompt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapErr("find project", err)
	}
	p.VideoType = model.VideoType(vt)
	return &p, nil
}

func (r *PostgresProjectRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.ProjectSummary, error) {
	const q = `
SELECT p.id, p.user_id, p.title, p.video_type, p.duration, p.last_prompt, p.created_at, p.updated_at,
       COUNT(s.id)
  FROM projects p
  LEFT JOIN scripts s ON s.project_id = p.id
 WHERE p.user_id = $1
 GROUP BY p.id
 ORDER BY p.created_at DESC;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, userID)
	if err != nil {
		return nil, mapErr("list projects", err)
	}
	defer rows.Close()

	var out []*model.ProjectSummary
	for rows.Next() {
		var (
			s  model.ProjectSummary
			vt string
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &vt, &s.Duration, &s.LastPrompt, &s.CreatedAt, &s.UpdatedAt, &s.ScriptCount); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		s.VideoType = model.VideoType(vt)
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list projects", err)
	}
	return out, nil
}

func (r *PostgresProjectRepo) UpdateLastPrompt(ctx context.Context, tx repository.Tx, id, prompt string) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, `UPDATE projects SET last_prompt = $2, updated_at = NOW() WHERE id = $1;`, id, prompt)
	if err != nil {
		return mapErr("update last prompt", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresProjectRepo) CountByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, `SELECT COUNT(*) FROM projects WHERE user_id = $1;`, userID).Scan(&n); err != nil {
		return 0, mapErr("count projects", err)
	}
	return n, nil
}

// lockProject takes a row lock that serializes script version assignment.
func lockProject(ctx context.Context, tx pgx.Tx, projectID string) error {
	var id string
	if err := tx.QueryRow(ctx, `SELECT id FROM projects WHERE id = $1 FOR UPDATE;`, projectID).Scan(&id); err != nil {
		return mapErr("lock project", err)
	}
	return nil
}
