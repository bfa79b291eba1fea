package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/regform/internal/db/storage"
	"github.com/patric-chuzhbe/regform/internal/logger"
	"github.com/patric-chuzhbe/regform/internal/metrics"
	"github.com/patric-chuzhbe/regform/internal/models"
	"github.com/patric-chuzhbe/regform/internal/validation"
)

type recordsKeeper interface {
	LoadAll(ctx context.Context) []models.Record

	Insert(ctx context.Context, record *models.Record, check storage.CheckFunc) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type store interface {
	recordsKeeper
	pinger
}

type registrationsObserver interface {
	ObserveRegistration(schema models.Schema, outcome string)
}

// ErrUsernameTaken is returned when an account with the same trimmed username exists.
var ErrUsernameTaken = errors.New("username already registered")

// ErrEmailTaken is returned when an account with the same normalized email exists.
var ErrEmailTaken = errors.New("email already registered")

// ErrListingUnavailable is returned by ListUsers for schemas that do not expose the list.
var ErrListingUnavailable = errors.New("user listing is not available for this schema")

type Service struct {
	db        store
	validator *validation.Validator
	observer  registrationsObserver
	schema    models.Schema
	now       func() time.Time
}

type nopObserver struct{}

func (nopObserver) ObserveRegistration(models.Schema, string) {}

type initOptions struct {
	now func() time.Time
}

// InitOption configures a Service.
type InitOption func(*initOptions)

// WithClock replaces time.Now as the source of registration dates.
func WithClock(now func() time.Time) InitOption {
	return func(options *initOptions) {
		options.now = now
	}
}

func New(
	db store,
	observer registrationsObserver,
	schema models.Schema,
	optionsProto ...InitOption,
) *Service {
	options := &initOptions{
		now: time.Now,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if observer == nil {
		observer = nopObserver{}
	}

	return &Service{
		db:        db,
		validator: validation.New(),
		observer:  observer,
		schema:    schema,
		now:       options.now,
	}
}

// Schema reports which field set the service registers.
func (s *Service) Schema() models.Schema {
	return s.schema
}

// Register validates req, checks it against the stored records and persists
// a new record. Validation and duplicate failures are returned as the
// sentinel errors of this package and of internal/validation.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.UserSummary, error) {
	var (
		record *models.Record
		check  storage.CheckFunc
		err    error
	)

	switch s.schema {
	case models.SchemaContact:
		err = s.validator.CheckContact(req)
		record = s.newContactRecord(req)
	default:
		err = s.validator.CheckAccount(req)
		record = s.newAccountRecord(req)
		check = accountUniquenessCheck(record.Username, record.Email)
	}
	if err != nil {
		s.observer.ObserveRegistration(s.schema, metrics.OutcomeRejected)
		return nil, err
	}

	if err := s.db.Insert(ctx, record, check); err != nil {
		if errors.Is(err, ErrUsernameTaken) || errors.Is(err, ErrEmailTaken) {
			s.observer.ObserveRegistration(s.schema, metrics.OutcomeDuplicate)
			return nil, err
		}

		s.observer.ObserveRegistration(s.schema, metrics.OutcomeError)
		return nil,
			fmt.Errorf(
				"in internal/service/service.go/Register(): error while `s.db.Insert()` calling: %w",
				err,
			)
	}

	s.observer.ObserveRegistration(s.schema, metrics.OutcomeCreated)
	logger.Log.Infow("new registration", "id", record.ID, "email", record.Email, "schema", s.schema)

	summary := &models.UserSummary{
		ID:    record.ID,
		Email: record.Email,
	}
	if record.Account != nil {
		summary.Username = record.Username
	}

	return summary, nil
}

// ListUsers returns every stored record without passwords.
func (s *Service) ListUsers(ctx context.Context) ([]models.Record, error) {
	if s.schema != models.SchemaAccount {
		return nil, ErrListingUnavailable
	}

	records := s.db.LoadAll(ctx)

	return funk.Map(records, func(r models.Record) models.Record {
		return r.Public()
	}).([]models.Record), nil
}

// CheckForm runs the client-side form rules without touching the store.
func (s *Service) CheckForm(username, email, password string) error {
	return s.validator.CheckForm(username, email, password)
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Service) newAccountRecord(req *models.RegisterRequest) *models.Record {
	return &models.Record{
		Account: &models.Account{
			Username:  strings.TrimSpace(req.Username),
			Password:  req.Password,
			LastLogin: nil,
		},
		Email:            models.NormalizeEmail(req.Email),
		Age:              optionalAge(req.Age),
		Gender:           req.Gender,
		City:             req.City,
		RegistrationDate: models.FormatTimestamp(s.now()),
	}
}

func (s *Service) newContactRecord(req *models.RegisterRequest) *models.Record {
	return &models.Record{
		Contact: &models.Contact{
			FirstName: strings.TrimSpace(req.FirstName),
			LastName:  strings.TrimSpace(req.LastName),
			Phone:     strings.TrimSpace(req.Phone),
		},
		Email:            models.NormalizeEmail(req.Email),
		Age:              optionalAge(req.Age),
		Gender:           req.Gender,
		City:             req.City,
		RegistrationDate: models.FormatTimestamp(s.now()),
	}
}

func optionalAge(age models.FlexString) *models.FlexString {
	if age == "" {
		return nil
	}
	return &age
}

func accountUniquenessCheck(username, email string) storage.CheckFunc {
	return func(existing []models.Record) error {
		accounts := funk.Filter(existing, func(r models.Record) bool {
			return r.Schema() == models.SchemaAccount
		}).([]models.Record)

		if funk.Find(accounts, func(r models.Record) bool {
			return r.Account != nil && strings.TrimSpace(r.Username) == username
		}) != nil {
			return ErrUsernameTaken
		}

		if funk.Find(accounts, func(r models.Record) bool {
			return models.NormalizeEmail(r.Email) == email
		}) != nil {
			return ErrEmailTaken
		}

		return nil
	}
}
