// Package models defines the registration records persisted by the stores
// and the request/response payloads exchanged over HTTP and gRPC.
package models

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Schema selects which field set a deployment registers.
type Schema string

const (
	// SchemaAccount registers username/password accounts.
	SchemaAccount Schema = "account"

	// SchemaContact registers contact cards (first/last name, phone).
	SchemaContact Schema = "contact"
)

// TimestampLayout renders registration dates the way browsers render
// Date.prototype.toISOString: UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FlexString is a string that also accepts a JSON number on input.
// Form fields like age arrive either way depending on the client.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = FlexString(num.String())

	return nil
}

// Account holds the fields specific to SchemaAccount records.
type Account struct {
	Username  string  `json:"username"`
	Password  string  `json:"password,omitempty"`
	LastLogin *string `json:"lastLogin"`
}

// Contact holds the fields specific to SchemaContact records.
type Contact struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

// Record is a single registered user as stored in the backing array.
// At most one of Account and Contact is set; whichever is present is
// flattened into the record object. See record_json.go for the encoding.
type Record struct {
	ID string `json:"id"`

	*Account
	*Contact

	Email            string      `json:"email"`
	Age              *FlexString `json:"age"`
	Gender           string      `json:"gender"`
	City             string      `json:"city"`
	RegistrationDate string      `json:"registrationDate"`

	// Extra holds members read from storage that the fields above do not
	// model, or model with another type. They are written back unchanged.
	Extra map[string]json.RawMessage `json:"-"`

	// keyOrder is the member order of a decoded object that did not match
	// the order MarshalJSON produces by default.
	keyOrder []string

	// verbatim is an array element that is not a JSON object.
	verbatim json.RawMessage
}

// Schema reports which field set the record carries.
func (r *Record) Schema() Schema {
	if r.Contact != nil && r.Account == nil {
		return SchemaContact
	}
	return SchemaAccount
}

// Clone returns a deep copy so callers can not mutate cached records.
func (r Record) Clone() Record {
	if r.Account != nil {
		account := *r.Account
		if account.LastLogin != nil {
			lastLogin := *account.LastLogin
			account.LastLogin = &lastLogin
		}
		r.Account = &account
	}
	if r.Contact != nil {
		contact := *r.Contact
		r.Contact = &contact
	}
	if r.Age != nil {
		age := *r.Age
		r.Age = &age
	}
	if r.Extra != nil {
		extra := make(map[string]json.RawMessage, len(r.Extra))
		for key, value := range r.Extra {
			extra[key] = value
		}
		r.Extra = extra
	}
	r.keyOrder = slices.Clone(r.keyOrder)

	return r
}

// Public returns a copy of the record without the password.
func (r Record) Public() Record {
	c := r.Clone()
	if c.Account != nil {
		c.Account.Password = ""
	}
	delete(c.Extra, memberPassword)
	if c.keyOrder != nil {
		c.keyOrder = slices.DeleteFunc(c.keyOrder, func(key string) bool {
			return key == memberPassword
		})
	}

	return c
}

// CloneRecords deep-copies a slice of records. It never returns nil.
func CloneRecords(records []Record) []Record {
	result := make([]Record, 0, len(records))
	for _, r := range records {
		result = append(result, r.Clone())
	}

	return result
}

var emailCaser = cases.Lower(language.Und)

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return emailCaser.String(strings.TrimSpace(email))
}

// FormatTimestamp renders t with TimestampLayout in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// RegisterRequest is the union of the fields both schemas accept.
type RegisterRequest struct {
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	Password        string     `json:"password"`
	ConfirmPassword string     `json:"confirmPassword"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Phone           string     `json:"phone"`
	Age             FlexString `json:"age"`
	Gender          string     `json:"gender"`
	City            string     `json:"city"`
}

// UserSummary is the part of a fresh account echoed back to the client.
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// RegisterResponse is the body of POST /register and POST /validate.
type RegisterResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    *UserSummary `json:"user,omitempty"`
}

// UsersResponse is the body of GET /users.
type UsersResponse struct {
	Success bool     `json:"success"`
	Count   int      `json:"count"`
	Users   []Record `json:"users"`
}

// StatusResponse is the body of GET /test and of failures that carry
// nothing but a message.
type StatusResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)
