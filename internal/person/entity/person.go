package entity

import (
	contact "github.com/ovaphlow/pitchfork/service-registry-go/internal/contact/entity"
)

// Role classifies a person. It is assigned once at registration.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleClient Role = "CLIENT"
)

// Person represents a row in the `persons` table. NationalID holds the
// digits-only canonical form and is unique.
type Person struct {
	ID         int64  `json:"id" db:"id"`
	NationalID string `json:"national_id" db:"national_id"`
	Name       string `json:"name" db:"name"`
	Role       Role   `json:"role" db:"role"`
}

// Protected reports whether the person may not be deleted.
func (p *Person) Protected() bool {
	return p.Role == RoleAdmin
}

// Overview is a person decorated with the values of its primary contacts,
// as shown in listings. Either value is nil when the person has no primary.
type Overview struct {
	Person
	PrimaryEmail *string `json:"primary_email"`
	PrimaryPhone *string `json:"primary_phone"`
}

// Details is the full view of one person: primary contacts apart from the
// remaining ones.
type Details struct {
	Person       *Person            `json:"person"`
	PrimaryEmail *contact.Contact   `json:"primary_email"`
	Emails       []*contact.Contact `json:"emails"`
	PrimaryPhone *contact.Contact   `json:"primary_phone"`
	Phones       []*contact.Contact `json:"phones"`
}

// Page is one page of the person listing.
type Page struct {
	Items      []*Overview `json:"items"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	Total      int64       `json:"total"`
	TotalPages int         `json:"total_pages"`
}

// Summary holds table-wide counters.
type Summary struct {
	Persons int64 `json:"persons"`
	Emails  int64 `json:"emails"`
	Phones  int64 `json:"phones"`
}
