// Package memstore keeps persons and their contacts in process memory. It
// backs the service when STORAGE_DRIVER=memory and the service-level tests.
//
// A single mutex orders every operation. WithinTx holds that mutex for the
// whole unit of work and restores a snapshot when the work fails, which gives
// the same all-or-nothing behaviour as a database transaction.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	contact "github.com/ovaphlow/pitchfork/service-registry-go/internal/contact/entity"
	person "github.com/ovaphlow/pitchfork/service-registry-go/internal/person/entity"
	"github.com/ovaphlow/pitchfork/service-registry-go/pkg/sentinel"
)

type state struct {
	lastPersonID  int64
	lastContactID map[contact.Kind]int64
	persons       map[int64]person.Person
	contacts      map[contact.Kind]map[int64]contact.Contact
}

func newState() state {
	s := state{
		lastContactID: map[contact.Kind]int64{},
		persons:       map[int64]person.Person{},
		contacts:      map[contact.Kind]map[int64]contact.Contact{},
	}
	for _, k := range contact.Kinds {
		s.contacts[k] = map[int64]contact.Contact{}
	}
	return s
}

// clone copies every map; rows are values so a shallow copy of each map is
// enough.
func (s state) clone() state {
	c := newState()
	c.lastPersonID = s.lastPersonID
	for k, v := range s.lastContactID {
		c.lastContactID[k] = v
	}
	for id, p := range s.persons {
		c.persons[id] = p
	}
	for k, rows := range s.contacts {
		for id, row := range rows {
			c.contacts[k][id] = row
		}
	}
	return c
}

type Store struct {
	mu    sync.Mutex
	state state
}

func New() *Store {
	return &Store{state: newState()}
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// WithinTx runs fn as one unit of work. Nested calls join the outer one.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	defer func() {
		if p := recover(); p != nil {
			s.state = snapshot
			panic(p)
		}
	}()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// locked runs a single operation under the mutex unless ctx already holds it.
func (s *Store) locked(ctx context.Context, fn func() error) error {
	if s.inTx(ctx) {
		return fn()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *Store) rows(kind contact.Kind) (map[int64]contact.Contact, error) {
	rows, ok := s.state.contacts[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown contact kind %q", sentinel.ErrInvalidArgument, kind)
	}
	return rows, nil
}

// ordered returns the rows matching keep sorted by id, which is insertion
// order.
func ordered(rows map[int64]contact.Contact, keep func(contact.Contact) bool) []*contact.Contact {
	out := make([]*contact.Contact, 0)
	for _, row := range rows {
		if keep(row) {
			c := row
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Contacts is the contact store view of a Store.
type Contacts struct{ s *Store }

// Persons is the person store view of a Store.
type Persons struct{ s *Store }

func (s *Store) Contacts() *Contacts { return &Contacts{s: s} }

func (s *Store) Persons() *Persons { return &Persons{s: s} }

// Contacts

func (cs *Contacts) Add(ctx context.Context, kind contact.Kind, personID int64, value string, primary bool) (*contact.Contact, error) {
	s := cs.s
	var out *contact.Contact
	err := s.locked(ctx, func() error {
		rows, err := s.rows(kind)
		if err != nil {
			return err
		}
		if _, ok := s.state.persons[personID]; !ok {
			return fmt.Errorf("person %d: %w", personID, sentinel.ErrNotFound)
		}
		if primary {
			clearPrimary(rows, personID)
		}
		s.state.lastContactID[kind]++
		c := contact.Contact{
			ID:        s.state.lastContactID[kind],
			PersonID:  personID,
			Kind:      kind,
			Value:     value,
			IsPrimary: primary,
		}
		rows[c.ID] = c
		out = &c
		return nil
	})
	return out, err
}

func clearPrimary(rows map[int64]contact.Contact, personID int64) {
	for id, row := range rows {
		if row.PersonID == personID && row.IsPrimary {
			row.IsPrimary = false
			rows[id] = row
		}
	}
}

func (cs *Contacts) SetPrimary(ctx context.Context, kind contact.Kind, personID, contactID int64) error {
	s := cs.s
	return s.locked(ctx, func() error {
		rows, err := s.rows(kind)
		if err != nil {
			return err
		}
		if _, ok := s.state.persons[personID]; !ok {
			return fmt.Errorf("person %d: %w", personID, sentinel.ErrNotFound)
		}
		clearPrimary(rows, personID)
		if row, ok := rows[contactID]; ok && row.PersonID == personID {
			row.IsPrimary = true
			rows[contactID] = row
		}
		return nil
	})
}

func (cs *Contacts) Delete(ctx context.Context, kind contact.Kind, contactID int64) error {
	s := cs.s
	return s.locked(ctx, func() error {
		rows, err := s.rows(kind)
		if err != nil {
			return err
		}
		if _, ok := rows[contactID]; !ok {
			return fmt.Errorf("%s %d: %w", kind, contactID, sentinel.ErrNotFound)
		}
		delete(rows, contactID)
		return nil
	})
}

func (cs *Contacts) DeleteAllForPerson(ctx context.Context, kind contact.Kind, personID int64) (int64, error) {
	s := cs.s
	var n int64
	err := s.locked(ctx, func() error {
		rows, err := s.rows(kind)
		if err != nil {
			return err
		}
		for id, row := range rows {
			if row.PersonID == personID {
				delete(rows, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (cs *Contacts) Get(ctx context.Context, kind contact.Kind, contactID int64) (*contact.Contact, error) {
	s := cs.s
	var out *contact.Contact
	err := s.locked(ctx, func() error {
		rows, err := s.rows(kind)
		if err != nil {
			return err
		}
		row, ok := rows[contactID]
		if !ok {
			return sentinel.ErrNotFound
		}
		out = &row
		return nil
	})
	return out, err
}

func (cs *Contacts) GetPrimary(ctx context.Context, kind contact.Kind, personID int64) (*contact.Contact, error) {
	s := cs.s
	var out *contact.Contact
	err := s.locked(ctx, func() error {
		rows, err := s.rows(kind)
		if err != nil {
			return err
		}
		found := ordered(rows, func(c contact.Contact) bool { return c.PersonID == personID && c.IsPrimary })
		if len(found) == 0 {
			return sentinel.ErrNotFound
		}
		out = found[0]
		return nil
	})
	return out, err
}

func (cs *Contacts) ListAll(ctx context.Context, kind contact.Kind, personID int64) ([]*contact.Contact, error) {
	s := cs.s
	var out []*contact.Contact
	err := s.locked(ctx, func() error {
		rows, err := s.rows(kind)
		if err != nil {
			return err
		}
		out = ordered(rows, func(c contact.Contact) bool { return c.PersonID == personID })
		return nil
	})
	return out, err
}

func (cs *Contacts) Count(ctx context.Context, kind contact.Kind) (int64, error) {
	s := cs.s
	var n int64
	err := s.locked(ctx, func() error {
		rows, err := s.rows(kind)
		if err != nil {
			return err
		}
		n = int64(len(rows))
		return nil
	})
	return n, err
}

// Persons

func (ps *Persons) Create(ctx context.Context, p *person.Person) (int64, error) {
	s := ps.s
	err := s.locked(ctx, func() error {
		for _, existing := range s.state.persons {
			if existing.NationalID == p.NationalID {
				return fmt.Errorf("create person: %w", sentinel.ErrDuplicateNationalID)
			}
		}
		s.state.lastPersonID++
		p.ID = s.state.lastPersonID
		s.state.persons[p.ID] = *p
		return nil
	})
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

func (ps *Persons) GetByID(ctx context.Context, id int64) (*person.Person, error) {
	s := ps.s
	var out *person.Person
	err := s.locked(ctx, func() error {
		p, ok := s.state.persons[id]
		if !ok {
			return sentinel.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

// GetForUpdate is GetByID; the store mutex already orders units of work.
func (ps *Persons) GetForUpdate(ctx context.Context, id int64) (*person.Person, error) {
	return ps.GetByID(ctx, id)
}

func (ps *Persons) GetByNationalID(ctx context.Context, nationalID string) (*person.Person, error) {
	s := ps.s
	var out *person.Person
	err := s.locked(ctx, func() error {
		for _, p := range s.state.persons {
			if p.NationalID == nationalID {
				found := p
				out = &found
				return nil
			}
		}
		return sentinel.ErrNotFound
	})
	return out, err
}

// persons returns the persons accepted by keep ordered by id.
func (s *Store) persons(keep func(person.Person) bool) []*person.Person {
	out := make([]*person.Person, 0)
	for _, p := range s.state.persons {
		if keep(p) {
			found := p
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func window(list []*person.Person, offset, limit int) []*person.Person {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return []*person.Person{}
	}
	list = list[offset:]
	if limit >= 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

func (ps *Persons) List(ctx context.Context, offset, limit int) ([]*person.Person, error) {
	s := ps.s
	var out []*person.Person
	err := s.locked(ctx, func() error {
		out = window(s.persons(func(person.Person) bool { return true }), offset, limit)
		return nil
	})
	return out, err
}

func nameMatcher(pattern string) func(person.Person) bool {
	pattern = strings.ToLower(pattern)
	return func(p person.Person) bool {
		return strings.Contains(strings.ToLower(p.Name), pattern)
	}
}

// SearchByName matches pattern as a case-insensitive substring of the name.
func (ps *Persons) SearchByName(ctx context.Context, pattern string, limit int) ([]*person.Person, error) {
	s := ps.s
	var out []*person.Person
	err := s.locked(ctx, func() error {
		out = window(s.persons(nameMatcher(pattern)), 0, limit)
		return nil
	})
	return out, err
}

func (ps *Persons) CountByName(ctx context.Context, pattern string) (int64, error) {
	s := ps.s
	var n int64
	err := s.locked(ctx, func() error {
		n = int64(len(s.persons(nameMatcher(pattern))))
		return nil
	})
	return n, err
}

func (ps *Persons) UpdateName(ctx context.Context, id int64, name string) error {
	s := ps.s
	return s.locked(ctx, func() error {
		p, ok := s.state.persons[id]
		if !ok {
			return sentinel.ErrNotFound
		}
		p.Name = name
		s.state.persons[id] = p
		return nil
	})
}

// Delete removes the person row. Like the foreign keys on the SQL tables, it
// refuses while the person still owns contacts.
func (ps *Persons) Delete(ctx context.Context, id int64) error {
	s := ps.s
	return s.locked(ctx, func() error {
		if _, ok := s.state.persons[id]; !ok {
			return sentinel.ErrNotFound
		}
		for kind, rows := range s.state.contacts {
			for _, row := range rows {
				if row.PersonID == id {
					return sentinel.Storage("delete person",
						fmt.Errorf("person %d still owns %s contacts", id, kind))
				}
			}
		}
		delete(s.state.persons, id)
		return nil
	})
}

func (ps *Persons) Count(ctx context.Context) (int64, error) {
	s := ps.s
	var n int64
	err := s.locked(ctx, func() error {
		n = int64(len(s.state.persons))
		return nil
	})
	return n, err
}
