package person

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry-go/internal/contact"
	centity "github.com/ovaphlow/pitchfork/service-registry-go/internal/contact/entity"
	"github.com/ovaphlow/pitchfork/service-registry-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-registry-go/internal/person/entity"
	"github.com/ovaphlow/pitchfork/service-registry-go/internal/validation"
	"github.com/ovaphlow/pitchfork/service-registry-go/pkg/sentinel"
)

const (
	DefaultPerPage     = 5
	DefaultSearchLimit = 5
)

// Registry orchestrates the person lifecycle. Multi-step operations run in
// one unit of work so a failure never leaves partial rows behind.
type Registry struct {
	persons  Store
	contacts contact.Store
	uow      UnitOfWork
	roles    RoleAssigner
	metrics  *metrics.Metrics
	logger   *zap.SugaredLogger

	// Defaults for Page and Search when the caller passes 0.
	PerPage     int
	SearchLimit int
}

func NewRegistry(persons Store, contacts contact.Store, uow UnitOfWork, roles RoleAssigner, m *metrics.Metrics, logger *zap.SugaredLogger) *Registry {
	if roles == nil {
		roles = NewRandomRoleAssigner(DefaultAdminRatio, 0)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Registry{
		persons:     persons,
		contacts:    contacts,
		uow:         uow,
		roles:       roles,
		metrics:     m,
		logger:      logger,
		PerPage:     DefaultPerPage,
		SearchLimit: DefaultSearchLimit,
	}
}

// RegisterInput carries the registration form. NationalID and Phone may be
// punctuated.
type RegisterInput struct {
	NationalID string `json:"national_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}

func (in RegisterInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("name is required: %w", sentinel.ErrInvalidArgument)
	}
	if strings.TrimSpace(in.NationalID) == "" {
		return fmt.Errorf("national id is required: %w", sentinel.ErrInvalidArgument)
	}
	if !validation.ValidateNationalID(in.NationalID) {
		return fmt.Errorf("%q: %w", in.NationalID, sentinel.ErrInvalidNationalID)
	}
	if err := contact.Validate(centity.KindPhone, strings.TrimSpace(in.Phone)); err != nil {
		return err
	}
	return contact.Validate(centity.KindEmail, strings.TrimSpace(in.Email))
}

// initialContacts creates the contacts supplied at registration. Whether they
// become primary is decided here, not by the order of the inserts.
type initialContacts struct {
	primary bool
}

func (ic initialContacts) create(ctx context.Context, store contact.Store, personID int64, email, phone string) error {
	if _, err := store.Add(ctx, centity.KindEmail, personID, email, ic.primary); err != nil {
		return err
	}
	_, err := store.Add(ctx, centity.KindPhone, personID, phone, ic.primary)
	return err
}

// Register validates in, then creates the person with one primary email and
// one primary phone. The role comes from the RoleAssigner.
func (r *Registry) Register(ctx context.Context, in RegisterInput) (*entity.Person, error) {
	start := time.Now()
	defer r.metrics.Observe("register", start)

	if err := in.validate(); err != nil {
		r.logger.Debugw("registration rejected", "err", err)
		return nil, err
	}
	p := &entity.Person{
		NationalID: validation.NormalizeNationalID(in.NationalID),
		Name:       strings.TrimSpace(in.Name),
	}
	err := r.uow.WithinTx(ctx, func(ctx context.Context) error {
		_, err := r.persons.GetByNationalID(ctx, p.NationalID)
		switch {
		case err == nil:
			return fmt.Errorf("register %s: %w", validation.FormatNationalID(p.NationalID), sentinel.ErrDuplicateNationalID)
		case !errors.Is(err, sentinel.ErrNotFound):
			return err
		}
		p.Role = r.roles.Assign()
		if _, err := r.persons.Create(ctx, p); err != nil {
			return err
		}
		return initialContacts{primary: true}.create(ctx, r.contacts, p.ID,
			strings.TrimSpace(in.Email), strings.TrimSpace(in.Phone))
	})
	if err != nil {
		r.logger.Warnw("registration failed", "err", err)
		return nil, err
	}
	r.metrics.IncrementRegistered()
	r.logger.Infow("person registered", "person_id", p.ID, "role", p.Role)
	return p, nil
}

func (r *Registry) FindByID(ctx context.Context, id int64) (*entity.Person, error) {
	p, err := r.persons.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("person %d: %w", id, err)
	}
	return p, nil
}

// FindByNationalID accepts punctuated input.
func (r *Registry) FindByNationalID(ctx context.Context, nationalID string) (*entity.Person, error) {
	canonical := validation.NormalizeNationalID(nationalID)
	if canonical == "" {
		return nil, fmt.Errorf("national id is required: %w", sentinel.ErrInvalidArgument)
	}
	return r.persons.GetByNationalID(ctx, canonical)
}

func (r *Registry) ListPage(ctx context.Context, offset, limit int) ([]*entity.Person, error) {
	if offset < 0 || limit < 0 {
		return nil, fmt.Errorf("offset %d limit %d: %w", offset, limit, sentinel.ErrInvalidArgument)
	}
	return r.persons.List(ctx, offset, limit)
}

// Page returns page number page of the listing. Out of range pages are
// clamped to the first or last page; an empty registry always reports page 1.
// perPage <= 0 uses PerPage.
func (r *Registry) Page(ctx context.Context, page, perPage int) (*entity.Page, error) {
	if perPage <= 0 {
		perPage = r.PerPage
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	total, err := r.persons.Count(ctx)
	if err != nil {
		return nil, err
	}
	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	switch {
	case page < 1 || totalPages == 0:
		page = 1
	case page > totalPages:
		page = totalPages
	}
	list, err := r.persons.List(ctx, (page-1)*perPage, perPage)
	if err != nil {
		return nil, err
	}
	items, err := r.Overviews(ctx, list)
	if err != nil {
		return nil, err
	}
	return &entity.Page{Items: items, Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}, nil
}

// Search matches pattern as a substring of the name. An empty pattern
// matches nothing. limit <= 0 uses SearchLimit.
func (r *Registry) Search(ctx context.Context, pattern string, limit int) ([]*entity.Person, error) {
	if pattern == "" {
		return []*entity.Person{}, nil
	}
	if limit <= 0 {
		limit = r.SearchLimit
	}
	return r.persons.SearchByName(ctx, pattern, limit)
}

// SearchCount reports how many persons match pattern, ignoring the search
// limit. An empty pattern matches nothing.
func (r *Registry) SearchCount(ctx context.Context, pattern string) (int64, error) {
	if pattern == "" {
		return 0, nil
	}
	return r.persons.CountByName(ctx, pattern)
}

// Rename validates the new name before looking the person up, so a blank
// name is reported even for an unknown id.
func (r *Registry) Rename(ctx context.Context, id int64, newName string) error {
	name := strings.TrimSpace(newName)
	if name == "" {
		return fmt.Errorf("name is required: %w", sentinel.ErrInvalidArgument)
	}
	if err := r.persons.UpdateName(ctx, id, name); err != nil {
		return fmt.Errorf("rename person %d: %w", id, err)
	}
	r.logger.Debugw("person renamed", "person_id", id)
	return nil
}

// Delete removes a CLIENT person with all of its contacts. ADMIN persons
// are protected.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	defer r.metrics.Observe("delete", start)

	err := r.uow.WithinTx(ctx, func(ctx context.Context) error {
		p, err := r.persons.GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("person %d: %w", id, err)
		}
		if p.Protected() {
			return fmt.Errorf("delete person %d with role %s: %w", id, p.Role, sentinel.ErrForbiddenOperation)
		}
		for _, kind := range centity.Kinds {
			if _, err := r.contacts.DeleteAllForPerson(ctx, kind, id); err != nil {
				return err
			}
		}
		return r.persons.Delete(ctx, id)
	})
	if err != nil {
		r.logger.Warnw("delete person failed", "person_id", id, "err", err)
		return err
	}
	r.metrics.IncrementDeleted()
	r.logger.Infow("person deleted", "person_id", id)
	return nil
}

// Details returns the person with primary contacts split from the rest.
func (r *Registry) Details(ctx context.Context, id int64) (*entity.Details, error) {
	p, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &entity.Details{Person: p, Emails: []*centity.Contact{}, Phones: []*centity.Contact{}}
	for _, kind := range centity.Kinds {
		list, err := r.contacts.ListAll(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		var primary *centity.Contact
		rest := make([]*centity.Contact, 0, len(list))
		for _, c := range list {
			if c.IsPrimary {
				primary = c
				continue
			}
			rest = append(rest, c)
		}
		if kind == centity.KindEmail {
			d.PrimaryEmail, d.Emails = primary, rest
		} else {
			d.PrimaryPhone, d.Phones = primary, rest
		}
	}
	return d, nil
}

// Overviews decorates each person with the value of its primary contacts.
func (r *Registry) Overviews(ctx context.Context, list []*entity.Person) ([]*entity.Overview, error) {
	out := make([]*entity.Overview, 0, len(list))
	for _, p := range list {
		o := &entity.Overview{Person: *p}
		email, err := r.primaryValue(ctx, centity.KindEmail, p.ID)
		if err != nil {
			return nil, err
		}
		phone, err := r.primaryValue(ctx, centity.KindPhone, p.ID)
		if err != nil {
			return nil, err
		}
		o.PrimaryEmail, o.PrimaryPhone = email, phone
		out = append(out, o)
	}
	return out, nil
}

func (r *Registry) primaryValue(ctx context.Context, kind centity.Kind, personID int64) (*string, error) {
	c, err := r.contacts.GetPrimary(ctx, kind, personID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c.Value, nil
}

func (r *Registry) Summary(ctx context.Context) (*entity.Summary, error) {
	var s entity.Summary
	var err error
	if s.Persons, err = r.persons.Count(ctx); err != nil {
		return nil, err
	}
	if s.Emails, err = r.contacts.Count(ctx, centity.KindEmail); err != nil {
		return nil, err
	}
	if s.Phones, err = r.contacts.Count(ctx, centity.KindPhone); err != nil {
		return nil, err
	}
	return &s, nil
}
