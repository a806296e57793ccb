package person

import (
	"context"

	"github.com/ovaphlow/pitchfork/service-registry-go/internal/person/entity"
)

// Store persists persons. NationalID values are passed in canonical
// digits-only form.
type Store interface {
	// Create inserts p, sets p.ID and returns it. A taken national id yields
	// sentinel.ErrDuplicateNationalID.
	Create(ctx context.Context, p *entity.Person) (int64, error)
	GetByID(ctx context.Context, id int64) (*entity.Person, error)
	// GetForUpdate is GetByID holding the row until the unit of work ends.
	GetForUpdate(ctx context.Context, id int64) (*entity.Person, error)
	GetByNationalID(ctx context.Context, nationalID string) (*entity.Person, error)
	List(ctx context.Context, offset, limit int) ([]*entity.Person, error)
	SearchByName(ctx context.Context, pattern string, limit int) ([]*entity.Person, error)
	CountByName(ctx context.Context, pattern string) (int64, error)
	UpdateName(ctx context.Context, id int64, name string) error
	// Delete removes the person row only. Owned contacts must be removed first.
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// UnitOfWork runs fn so that every store call made with the ctx it receives
// commits together or not at all.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
