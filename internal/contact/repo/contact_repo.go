package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-registry-go/internal/contact/entity"
	"github.com/ovaphlow/pitchfork/service-registry-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-registry-go/pkg/sentinel"
)

// table maps a contact kind to its table and value column. Both names are
// constants, never user input, so they are safe to format into queries.
type table struct {
	name   string
	column string
}

var tables = map[entity.Kind]table{
	entity.KindEmail: {name: "emails", column: "address"},
	entity.KindPhone: {name: "phones", column: "number"},
}

func tableFor(kind entity.Kind) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return table{}, fmt.Errorf("%w: unknown contact kind %q", sentinel.ErrInvalidArgument, kind)
	}
	return t, nil
}

// ContactRepo provides data access for the emails and phones tables using sqlx.
// Primary-flag transitions lock the owning persons row, so mutations of the
// same person's contacts are applied one at a time.
type ContactRepo struct {
	db *sqlx.DB
	tx *database.Transactor
}

func NewContactRepo(db *sqlx.DB, tx *database.Transactor) *ContactRepo {
	if tx == nil {
		tx = database.NewTransactor(db)
	}
	return &ContactRepo{db: db, tx: tx}
}

// EnsureTable creates the contact tables if not exists (idempotent). The
// persons table must exist first. The partial unique indexes make a second
// primary row a constraint violation at the engine level.
func (r *ContactRepo) EnsureTable(ctx context.Context) error {
	for _, kind := range entity.Kinds {
		t := tables[kind]
		ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
  id BIGSERIAL PRIMARY KEY,
  person_id BIGINT NOT NULL REFERENCES persons(id),
  %[2]s TEXT NOT NULL,
  is_primary BOOLEAN NOT NULL DEFAULT false
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_person_id ON %[1]s(person_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_%[1]s_one_primary ON %[1]s(person_id) WHERE is_primary;
`, t.name, t.column)
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure %s table: %w", t.name, err)
		}
	}
	return nil
}

// lockOwner takes a row lock on the person for the rest of the transaction.
func (r *ContactRepo) lockOwner(ctx context.Context, personID int64) error {
	var id int64
	err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &id, `SELECT id FROM persons WHERE id = $1 FOR UPDATE`, personID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("person %d: %w", personID, sentinel.ErrNotFound)
	}
	return err
}

func (r *ContactRepo) clearPrimary(ctx context.Context, t table, personID int64) error {
	q := fmt.Sprintf(`UPDATE %s SET is_primary = false WHERE person_id = $1 AND is_primary`, t.name)
	_, err := database.Ext(ctx, r.db).ExecContext(ctx, q, personID)
	return err
}

// Add inserts a contact for personID. A primary contact first clears the
// person's current primary of the same kind.
func (r *ContactRepo) Add(ctx context.Context, kind entity.Kind, personID int64, value string, primary bool) (*entity.Contact, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	c := &entity.Contact{PersonID: personID, Kind: kind, Value: value, IsPrimary: primary}
	err = r.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := r.lockOwner(ctx, personID); err != nil {
			return err
		}
		if primary {
			if err := r.clearPrimary(ctx, t, personID); err != nil {
				return err
			}
		}
		q := fmt.Sprintf(`INSERT INTO %s (person_id, %s, is_primary) VALUES ($1, $2, $3) RETURNING id`, t.name, t.column)
		return sqlx.GetContext(ctx, database.Ext(ctx, r.db), &c.ID, q, personID, value, primary)
	})
	if err != nil {
		return nil, sentinel.Storage("add "+string(kind), err)
	}
	return c, nil
}

// SetPrimary makes contactID the only primary of its kind for personID.
func (r *ContactRepo) SetPrimary(ctx context.Context, kind entity.Kind, personID, contactID int64) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}
	err = r.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := r.lockOwner(ctx, personID); err != nil {
			return err
		}
		if err := r.clearPrimary(ctx, t, personID); err != nil {
			return err
		}
		// zero rows here means contactID belongs to someone else; the person
		// is deliberately left without a primary
		q := fmt.Sprintf(`UPDATE %s SET is_primary = true WHERE id = $1 AND person_id = $2`, t.name)
		_, err := database.Ext(ctx, r.db).ExecContext(ctx, q, contactID, personID)
		return err
	})
	return sentinel.Storage("set primary "+string(kind), err)
}

// Delete removes a single contact by id.
func (r *ContactRepo) Delete(ctx context.Context, kind entity.Kind, contactID int64) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}
	res, err := database.Ext(ctx, r.db).ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, t.name), contactID)
	if err != nil {
		return sentinel.Storage("delete "+string(kind), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return sentinel.Storage("delete "+string(kind), err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, contactID, sentinel.ErrNotFound)
	}
	return nil
}

// DeleteAllForPerson removes every contact of kind owned by personID and
// returns how many rows went.
func (r *ContactRepo) DeleteAllForPerson(ctx context.Context, kind entity.Kind, personID int64) (int64, error) {
	t, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	res, err := database.Ext(ctx, r.db).ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE person_id = $1`, t.name), personID)
	if err != nil {
		return 0, sentinel.Storage("delete "+t.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, sentinel.Storage("delete "+t.name, err)
	}
	return n, nil
}

func (r *ContactRepo) selectColumns(t table) string {
	return fmt.Sprintf(`SELECT id, person_id, %s AS value, is_primary FROM %s`, t.column, t.name)
}

func (r *ContactRepo) getOne(ctx context.Context, kind entity.Kind, where string, args ...any) (*entity.Contact, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	var c entity.Contact
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &c, r.selectColumns(t)+" "+where, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, sentinel.Storage("get "+string(kind), err)
	}
	c.Kind = kind
	return &c, nil
}

// Get retrieves a contact by id.
func (r *ContactRepo) Get(ctx context.Context, kind entity.Kind, contactID int64) (*entity.Contact, error) {
	return r.getOne(ctx, kind, `WHERE id = $1`, contactID)
}

// GetPrimary retrieves the primary contact of kind for personID.
func (r *ContactRepo) GetPrimary(ctx context.Context, kind entity.Kind, personID int64) (*entity.Contact, error) {
	return r.getOne(ctx, kind, `WHERE person_id = $1 AND is_primary ORDER BY id LIMIT 1`, personID)
}

// ListAll lists the contacts of kind owned by personID in id order.
func (r *ContactRepo) ListAll(ctx context.Context, kind entity.Kind, personID int64) ([]*entity.Contact, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	var out []*entity.Contact
	q := r.selectColumns(t) + ` WHERE person_id = $1 ORDER BY id`
	if err := sqlx.SelectContext(ctx, database.Ext(ctx, r.db), &out, q, personID); err != nil {
		return nil, sentinel.Storage("list "+t.name, err)
	}
	for _, c := range out {
		c.Kind = kind
	}
	return out, nil
}

// Count returns the number of stored contacts of kind.
func (r *ContactRepo) Count(ctx context.Context, kind entity.Kind) (int64, error) {
	t, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := sqlx.GetContext(ctx, database.Ext(ctx, r.db), &n, `SELECT count(*) FROM `+t.name); err != nil {
		return 0, sentinel.Storage("count "+t.name, err)
	}
	return n, nil
}
