package entity

// Kind tells which contact table a record lives in.
type Kind string

const (
	KindEmail Kind = "email"
	KindPhone Kind = "phone"
)

// Kinds lists every contact kind in a stable order.
var Kinds = []Kind{KindEmail, KindPhone}

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool {
	return k == KindEmail || k == KindPhone
}

// Contact is an email address or phone number owned by a person. At most one
// contact per person and kind has IsPrimary set.
type Contact struct {
	ID        int64  `json:"id" db:"id"`
	PersonID  int64  `json:"person_id" db:"person_id"`
	Kind      Kind   `json:"kind" db:"-"`
	Value     string `json:"value" db:"value"`
	IsPrimary bool   `json:"is_primary" db:"is_primary"`
}
