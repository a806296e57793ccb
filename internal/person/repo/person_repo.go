package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-registry-go/internal/person/entity"
	"github.com/ovaphlow/pitchfork/service-registry-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-registry-go/pkg/sentinel"
)

// PersonRepo provides data access for the persons table using sqlx. Every
// method runs on the transaction carried by ctx when there is one.
type PersonRepo struct {
	db *sqlx.DB
}

func NewPersonRepo(db *sqlx.DB) *PersonRepo { return &PersonRepo{db: db} }

// EnsureTable creates the persons table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *PersonRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS persons (
  id BIGSERIAL PRIMARY KEY,
  national_id TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('ADMIN', 'CLIENT'))
);
CREATE INDEX IF NOT EXISTS idx_persons_name ON persons(name);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new person row and sets p.ID.
func (r *PersonRepo) Create(ctx context.Context, p *entity.Person) (int64, error) {
	const q = `INSERT INTO persons (national_id, name, role) VALUES (:national_id, :name, :role) RETURNING id`
	rows, err := sqlx.NamedQueryContext(ctx, database.Ext(ctx, r.db), q, p)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, fmt.Errorf("create person: %w", sentinel.ErrDuplicateNationalID)
		}
		return 0, sentinel.Storage("create person", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&p.ID); err != nil {
			return 0, sentinel.Storage("create person", err)
		}
		return p.ID, nil
	}
	if err := rows.Err(); err != nil {
		if database.IsUniqueViolation(err) {
			return 0, fmt.Errorf("create person: %w", sentinel.ErrDuplicateNationalID)
		}
		return 0, sentinel.Storage("create person", err)
	}
	return 0, sentinel.Storage("create person", errors.New("no id returned"))
}

func (r *PersonRepo) getOne(ctx context.Context, op, where string, arg any) (*entity.Person, error) {
	var p entity.Person
	q := `SELECT id, national_id, name, role FROM persons WHERE ` + where
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &p, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, sentinel.Storage(op, err)
	}
	return &p, nil
}

// GetByID fetches a person by id or returns sentinel.ErrNotFound.
func (r *PersonRepo) GetByID(ctx context.Context, id int64) (*entity.Person, error) {
	return r.getOne(ctx, "get person", `id = $1`, id)
}

// GetForUpdate locks the row with FOR UPDATE. It only holds the lock when
// ctx carries a transaction.
func (r *PersonRepo) GetForUpdate(ctx context.Context, id int64) (*entity.Person, error) {
	return r.getOne(ctx, "lock person", `id = $1 FOR UPDATE`, id)
}

// GetByNationalID expects the canonical digits-only form.
func (r *PersonRepo) GetByNationalID(ctx context.Context, nationalID string) (*entity.Person, error) {
	return r.getOne(ctx, "get person by national id", `national_id = $1`, nationalID)
}

// List returns persons ordered by id.
func (r *PersonRepo) List(ctx context.Context, offset, limit int) ([]*entity.Person, error) {
	const q = `SELECT id, national_id, name, role FROM persons ORDER BY id LIMIT $1 OFFSET $2`
	var out []*entity.Person
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &out, q, limit, offset); err != nil {
		return nil, sentinel.Storage("list persons", err)
	}
	return out, nil
}

// SearchByName matches pattern as a case-insensitive substring of the name.
func (r *PersonRepo) SearchByName(ctx context.Context, pattern string, limit int) ([]*entity.Person, error) {
	const q = `SELECT id, national_id, name, role FROM persons WHERE name ILIKE $1 ORDER BY id LIMIT $2`
	var out []*entity.Person
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &out, q, likePattern(pattern), limit); err != nil {
		return nil, sentinel.Storage("search persons", err)
	}
	return out, nil
}

func (r *PersonRepo) CountByName(ctx context.Context, pattern string) (int64, error) {
	var n int64
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &n, `SELECT count(*) FROM persons WHERE name ILIKE $1`, likePattern(pattern)); err != nil {
		return 0, sentinel.Storage("count persons by name", err)
	}
	return n, nil
}

func (r *PersonRepo) UpdateName(ctx context.Context, id int64, name string) error {
	res, err := database.Ext(ctx, r.db).ExecContext(ctx, `UPDATE persons SET name = $2 WHERE id = $1`, id, name)
	return affectedOne(res, err, "update person name")
}

// Delete removes the person row. Contacts must be gone already; the foreign
// keys reject the delete otherwise.
func (r *PersonRepo) Delete(ctx context.Context, id int64) error {
	res, err := database.Ext(ctx, r.db).ExecContext(ctx, `DELETE FROM persons WHERE id = $1`, id)
	return affectedOne(res, err, "delete person")
}

func (r *PersonRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &n, `SELECT count(*) FROM persons`); err != nil {
		return 0, sentinel.Storage("count persons", err)
	}
	return n, nil
}

func affectedOne(res sql.Result, err error, op string) error {
	if err != nil {
		return sentinel.Storage(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return sentinel.Storage(op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps s for a substring ILIKE match, escaping wildcards.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
