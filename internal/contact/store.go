package contact

import (
	"context"

	"github.com/ovaphlow/pitchfork/service-registry-go/internal/contact/entity"
)

// Store persists contacts and owns the primary-flag invariant: after every
// call, each person has at most one primary contact of each kind. Mutations
// are atomic on their own and join the unit of work carried by ctx, if any.
type Store interface {
	// Add inserts a contact. With primary set, every other contact of the same
	// kind for personID loses its flag in the same transaction.
	Add(ctx context.Context, kind entity.Kind, personID int64, value string, primary bool) (*entity.Contact, error)
	// SetPrimary clears the flag on all of the person's contacts of kind, then
	// sets it on contactID if that contact belongs to personID. A foreign
	// contactID leaves the person with no primary.
	SetPrimary(ctx context.Context, kind entity.Kind, personID, contactID int64) error
	// Delete removes one contact. A deleted primary is not replaced.
	Delete(ctx context.Context, kind entity.Kind, contactID int64) error
	DeleteAllForPerson(ctx context.Context, kind entity.Kind, personID int64) (int64, error)
	Get(ctx context.Context, kind entity.Kind, contactID int64) (*entity.Contact, error)
	GetPrimary(ctx context.Context, kind entity.Kind, personID int64) (*entity.Contact, error)
	// ListAll returns the person's contacts in insertion order.
	ListAll(ctx context.Context, kind entity.Kind, personID int64) ([]*entity.Contact, error)
	Count(ctx context.Context, kind entity.Kind) (int64, error)
}
