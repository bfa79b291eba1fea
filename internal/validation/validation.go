// Package validation holds the field rules of the registration form.
//
// CheckForm is the client-side contract (the same rules run in the browser
// before submission). CheckAccount and CheckContact are the server-side rules
// of the two record schemas. Each check reports the first broken rule only,
// in a fixed order, as one of the sentinel errors below.
package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/patric-chuzhbe/regform/internal/models"
)

var (
	ErrMissingFields    = errors.New("required fields are missing")
	ErrUsernameRequired = errors.New("username is required")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrPasswordTooShort = errors.New("password is too short")
	ErrInvalidEmail     = errors.New("email is malformed")
	ErrUsernameTooShort = errors.New("username is too short")
)

const (
	passwordLengthRule = "min=6"
	usernameLengthRule = "min=3"
)

// EmailPattern accepts local@domain.tld shaped text.
var EmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type accountRequired struct {
	Username        string `validate:"required"`
	Email           string `validate:"required"`
	Password        string `validate:"required"`
	ConfirmPassword string `validate:"required"`
}

type contactRequired struct {
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
	Email     string `validate:"required"`
}

// Validator runs the registration rules.
type Validator struct {
	validate *validator.Validate
}

func validateEmailPattern(fieldLevel validator.FieldLevel) bool {
	return EmailPattern.MatchString(fieldLevel.Field().String())
}

// New builds a Validator with the project's custom tags registered.
func New() *Validator {
	validate := validator.New()

	// The tag name is a constant, registration can only fail on programmer error.
	if err := validate.RegisterValidation("emailpattern", validateEmailPattern); err != nil {
		panic(err)
	}

	return &Validator{validate: validate}
}

// CheckForm applies the client-side rules: non-blank username, email
// pattern, minimal password length.
func (v *Validator) CheckForm(username, email, password string) error {
	if strings.TrimSpace(username) == "" {
		return ErrUsernameRequired
	}
	if v.validate.Var(strings.TrimSpace(email), "emailpattern") != nil {
		return ErrInvalidEmail
	}
	if v.validate.Var(password, passwordLengthRule) != nil {
		return ErrPasswordTooShort
	}

	return nil
}

// CheckAccount applies the account schema rules to req.
func (v *Validator) CheckAccount(req *models.RegisterRequest) error {
	required := accountRequired{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	}
	if v.validate.Struct(required) != nil {
		return ErrMissingFields
	}

	if v.validate.VarWithValue(req.Password, req.ConfirmPassword, "eqfield") != nil {
		return ErrPasswordMismatch
	}

	if v.validate.Var(req.Password, passwordLengthRule) != nil {
		return ErrPasswordTooShort
	}

	if v.validate.Var(req.Email, "emailpattern") != nil {
		return ErrInvalidEmail
	}

	if v.validate.Var(req.Username, usernameLengthRule) != nil {
		return ErrUsernameTooShort
	}

	return nil
}

// CheckContact applies the contact schema rules to req.
func (v *Validator) CheckContact(req *models.RegisterRequest) error {
	required := contactRequired{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	}
	if v.validate.Struct(required) != nil {
		return ErrMissingFields
	}

	return nil
}
