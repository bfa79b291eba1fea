package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/patric-chuzhbe/regform/internal/models"
)

func TestCheckForm(t *testing.T) {
	type tTestCase struct {
		name     string
		username string
		email    string
		password string
		expected error
	}
	testCases := []tTestCase{
		{name: "valid", username: "ann", email: "ann@x.com", password: "secret1", expected: nil},
		{name: "blank username", username: "   ", email: "ann@x.com", password: "secret1", expected: ErrUsernameRequired},
		{name: "email without tld", username: "ann", email: "ann@x", password: "secret1", expected: ErrInvalidEmail},
		{name: "email with spaces", username: "ann", email: "a nn@x.com", password: "secret1", expected: ErrInvalidEmail},
		{name: "email surrounded by spaces", username: "ann", email: "  ann@x.com ", password: "secret1", expected: nil},
		{name: "short password", username: "ann", email: "ann@x.com", password: "12345", expected: ErrPasswordTooShort},
		{name: "multibyte password counts characters", username: "ann", email: "ann@x.com", password: "пароль", expected: nil},
		{name: "username checked first", username: "", email: "bad", password: "1", expected: ErrUsernameRequired},
	}

	v := New()
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			err := v.CheckForm(testCase.username, testCase.email, testCase.password)
			if testCase.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, testCase.expected)
		})
	}
}

func TestCheckAccount(t *testing.T) {
	valid := func() models.RegisterRequest {
		return models.RegisterRequest{
			Username:        "ann",
			Email:           "ann@x.com",
			Password:        "secret1",
			ConfirmPassword: "secret1",
		}
	}

	type tTestCase struct {
		name     string
		mutate   func(r *models.RegisterRequest)
		expected error
	}
	testCases := []tTestCase{
		{name: "valid", mutate: func(r *models.RegisterRequest) {}, expected: nil},
		{name: "missing username", mutate: func(r *models.RegisterRequest) { r.Username = "" }, expected: ErrMissingFields},
		{name: "missing confirmation", mutate: func(r *models.RegisterRequest) { r.ConfirmPassword = "" }, expected: ErrMissingFields},
		{
			name: "mismatch",
			mutate: func(r *models.RegisterRequest) {
				r.ConfirmPassword = "secret2"
			},
			expected: ErrPasswordMismatch,
		},
		{
			name: "short password",
			mutate: func(r *models.RegisterRequest) {
				r.Password = "12345"
				r.ConfirmPassword = "12345"
			},
			expected: ErrPasswordTooShort,
		},
		{name: "bad email", mutate: func(r *models.RegisterRequest) { r.Email = "ann.x.com" }, expected: ErrInvalidEmail},
		{name: "short username", mutate: func(r *models.RegisterRequest) { r.Username = "an" }, expected: ErrUsernameTooShort},
		{
			name: "mismatch reported before bad email",
			mutate: func(r *models.RegisterRequest) {
				r.Email = "bad"
				r.ConfirmPassword = "other1"
			},
			expected: ErrPasswordMismatch,
		},
	}

	v := New()
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			req := valid()
			testCase.mutate(&req)

			err := v.CheckAccount(&req)
			if testCase.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, testCase.expected)
		})
	}
}

func TestCheckContact(t *testing.T) {
	v := New()

	assert.NoError(t, v.CheckContact(&models.RegisterRequest{
		FirstName: "Bob",
		LastName:  "Stone",
		Email:     "bob@x.com",
	}))

	assert.ErrorIs(t, v.CheckContact(&models.RegisterRequest{
		FirstName: "Bob",
		Email:     "bob@x.com",
	}), ErrMissingFields)
}
