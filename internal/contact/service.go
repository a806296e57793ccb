package contact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry-go/internal/contact/entity"
	"github.com/ovaphlow/pitchfork/service-registry-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-registry-go/internal/validation"
	"github.com/ovaphlow/pitchfork/service-registry-go/pkg/sentinel"
)

// Service validates contact values and delegates to the Store, which owns the
// primary-flag invariant.
type Service struct {
	store   Store
	metrics *metrics.Metrics
	logger  *zap.SugaredLogger
}

func NewService(store Store, m *metrics.Metrics, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, metrics: m, logger: logger}
}

// Validate checks value against the format rules of kind. Phone numbers keep
// their punctuation; only the digits are checked.
func Validate(kind entity.Kind, value string) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown contact kind %q: %w", kind, sentinel.ErrInvalidArgument)
	}
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s value is required: %w", kind, sentinel.ErrInvalidArgument)
	}
	switch kind {
	case entity.KindEmail:
		if !validation.ValidateEmail(value) {
			return fmt.Errorf("%q: %w", value, sentinel.ErrInvalidEmail)
		}
	case entity.KindPhone:
		if !validation.ValidatePhone(value) {
			return fmt.Errorf("%q: %w", value, sentinel.ErrInvalidPhone)
		}
	}
	return nil
}

func (s *Service) AddEmail(ctx context.Context, personID int64, address string, primary bool) (*entity.Contact, error) {
	return s.Add(ctx, entity.KindEmail, personID, strings.TrimSpace(address), primary)
}

func (s *Service) AddPhone(ctx context.Context, personID int64, number string, primary bool) (*entity.Contact, error) {
	return s.Add(ctx, entity.KindPhone, personID, strings.TrimSpace(number), primary)
}

// Add validates value before touching the store.
func (s *Service) Add(ctx context.Context, kind entity.Kind, personID int64, value string, primary bool) (*entity.Contact, error) {
	if err := Validate(kind, value); err != nil {
		return nil, err
	}
	c, err := s.store.Add(ctx, kind, personID, value, primary)
	if err != nil {
		s.logger.Warnw("add contact failed", "kind", kind, "person_id", personID, "err", err)
		return nil, err
	}
	s.metrics.IncrementContact(string(kind), "add")
	s.logger.Debugw("contact added", "kind", kind, "person_id", personID, "contact_id", c.ID, "primary", primary)
	return c, nil
}

func (s *Service) SetPrimary(ctx context.Context, kind entity.Kind, personID, contactID int64) error {
	start := time.Now()
	defer s.metrics.Observe("set_primary", start)
	if err := s.store.SetPrimary(ctx, kind, personID, contactID); err != nil {
		s.logger.Warnw("set primary failed", "kind", kind, "person_id", personID, "contact_id", contactID, "err", err)
		return err
	}
	s.metrics.IncrementContact(string(kind), "set_primary")
	s.logger.Debugw("primary contact set", "kind", kind, "person_id", personID, "contact_id", contactID)
	return nil
}

// Delete removes one contact. An unknown id yields sentinel.ErrNotFound.
func (s *Service) Delete(ctx context.Context, kind entity.Kind, contactID int64) error {
	if err := s.store.Delete(ctx, kind, contactID); err != nil {
		return err
	}
	s.metrics.IncrementContact(string(kind), "delete")
	s.logger.Debugw("contact deleted", "kind", kind, "contact_id", contactID)
	return nil
}

func (s *Service) List(ctx context.Context, kind entity.Kind, personID int64) ([]*entity.Contact, error) {
	return s.store.ListAll(ctx, kind, personID)
}

// Primary returns the primary contact of kind, or nil when the person has
// none.
func (s *Service) Primary(ctx context.Context, kind entity.Kind, personID int64) (*entity.Contact, error) {
	c, err := s.store.GetPrimary(ctx, kind, personID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (s *Service) Count(ctx context.Context, kind entity.Kind) (int64, error) {
	return s.store.Count(ctx, kind)
}
