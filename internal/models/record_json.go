package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
)

const (
	memberID               = "id"
	memberUsername         = "username"
	memberPassword         = "password"
	memberLastLogin        = "lastLogin"
	memberFirstName        = "firstName"
	memberLastName         = "lastName"
	memberPhone            = "phone"
	memberEmail            = "email"
	memberAge              = "age"
	memberGender           = "gender"
	memberCity             = "city"
	memberRegistrationDate = "registrationDate"
)

// recordMembers is the member order of records written by this program.
var recordMembers = []string{
	memberID,
	memberUsername,
	memberPassword,
	memberLastLogin,
	memberFirstName,
	memberLastName,
	memberPhone,
	memberEmail,
	memberAge,
	memberGender,
	memberCity,
	memberRegistrationDate,
}

var errInvalidRecord = errors.New("record is not valid JSON")

// UnmarshalJSON decodes a stored record leniently. A member whose value does
// not fit its field, or would not be written back byte for byte, is kept in
// Extra, so decoding a valid JSON value never fails.
func (r *Record) UnmarshalJSON(data []byte) error {
	*r = Record{}

	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) {
		return errInvalidRecord
	}
	if trimmed[0] != '{' {
		r.verbatim = append(json.RawMessage(nil), trimmed...)
		return nil
	}

	keys, members, err := objectMembers(trimmed)
	if err != nil {
		return err
	}

	for _, key := range keys {
		value := members[key]
		if !r.decodeMember(key, value) || !r.writesBack(key, value) {
			r.setExtra(key, value)
		}
	}

	if !slices.Equal(keys, r.memberKeys()) {
		r.keyOrder = keys
	}

	return nil
}

// MarshalJSON writes the record members, Extra included, in the order they
// were read. Records built in code use the recordMembers order.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.verbatim != nil {
		return r.verbatim, nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.memberKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}

		name, err := marshalValue(key)
		if err != nil {
			return nil, err
		}
		value, err := r.memberValue(key)
		if err != nil {
			return nil, fmt.Errorf("error marshaling record member %q: %w", key, err)
		}

		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func (r *Record) account() *Account {
	if r.Account == nil {
		r.Account = &Account{}
	}
	return r.Account
}

func (r *Record) contact() *Contact {
	if r.Contact == nil {
		r.Contact = &Contact{}
	}
	return r.Contact
}

func (r *Record) setExtra(key string, value json.RawMessage) {
	if r.Extra == nil {
		r.Extra = map[string]json.RawMessage{}
	}
	r.Extra[key] = value
}

func setMember[T any](value json.RawMessage, set func(T)) bool {
	var decoded T
	if err := json.Unmarshal(value, &decoded); err != nil {
		return false
	}
	set(decoded)

	return true
}

// decodeMember stores value in the field modelling key and reports whether
// the value fit.
func (r *Record) decodeMember(key string, value json.RawMessage) bool {
	switch key {
	case memberID:
		return setMember(value, func(v string) { r.ID = v })
	case memberUsername:
		return setMember(value, func(v string) { r.account().Username = v })
	case memberPassword:
		return setMember(value, func(v string) { r.account().Password = v })
	case memberLastLogin:
		return setMember(value, func(v *string) { r.account().LastLogin = v })
	case memberFirstName:
		return setMember(value, func(v string) { r.contact().FirstName = v })
	case memberLastName:
		return setMember(value, func(v string) { r.contact().LastName = v })
	case memberPhone:
		return setMember(value, func(v string) { r.contact().Phone = v })
	case memberEmail:
		return setMember(value, func(v string) { r.Email = v })
	case memberAge:
		return setMember(value, func(v *FlexString) { r.Age = v })
	case memberGender:
		return setMember(value, func(v string) { r.Gender = v })
	case memberCity:
		return setMember(value, func(v string) { r.City = v })
	case memberRegistrationDate:
		return setMember(value, func(v string) { r.RegistrationDate = v })
	}

	return false
}

// writesBack reports whether the decoded field of key encodes to value again.
func (r *Record) writesBack(key string, value json.RawMessage) bool {
	encoded, err := marshalValue(r.fieldValue(key))
	if err != nil {
		return false
	}

	var compacted bytes.Buffer
	if err := json.Compact(&compacted, value); err != nil {
		return false
	}

	return bytes.Equal(encoded, compacted.Bytes())
}

func (r *Record) fieldValue(key string) interface{} {
	switch key {
	case memberID:
		return r.ID
	case memberUsername:
		return r.Account.Username
	case memberPassword:
		return r.Account.Password
	case memberLastLogin:
		return r.Account.LastLogin
	case memberFirstName:
		return r.Contact.FirstName
	case memberLastName:
		return r.Contact.LastName
	case memberPhone:
		return r.Contact.Phone
	case memberEmail:
		return r.Email
	case memberAge:
		return r.Age
	case memberGender:
		return r.Gender
	case memberCity:
		return r.City
	case memberRegistrationDate:
		return r.RegistrationDate
	}

	return nil
}

func (r *Record) hasMember(key string) bool {
	if _, ok := r.Extra[key]; ok {
		return true
	}

	switch key {
	case memberUsername, memberLastLogin:
		return r.Account != nil
	case memberPassword:
		return r.Account != nil && (r.Password != "" || slices.Contains(r.keyOrder, memberPassword))
	case memberFirstName, memberLastName, memberPhone:
		return r.Contact != nil
	case memberID, memberEmail, memberAge, memberGender, memberCity, memberRegistrationDate:
		return r.keyOrder == nil || slices.Contains(r.keyOrder, key)
	}

	return false
}

func (r *Record) memberKeys() []string {
	order := r.keyOrder
	if order == nil {
		order = recordMembers
	}

	keys := make([]string, 0, len(order)+len(r.Extra))
	for _, key := range order {
		if r.hasMember(key) {
			keys = append(keys, key)
		}
	}
	for _, key := range slices.Sorted(maps.Keys(r.Extra)) {
		if !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}

	return keys
}

func (r *Record) memberValue(key string) (json.RawMessage, error) {
	if value, ok := r.Extra[key]; ok {
		return value, nil
	}

	return marshalValue(r.fieldValue(key))
}

func marshalValue(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// objectMembers splits a JSON object into its member names, in order of
// first appearance, and their raw values. A repeated name keeps its last value.
func objectMembers(data []byte) ([]string, map[string]json.RawMessage, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	if _, err := decoder.Token(); err != nil {
		return nil, nil, err
	}

	keys := []string{}
	members := map[string]json.RawMessage{}
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := token.(string)
		if !ok {
			return nil, nil, errInvalidRecord
		}

		var value json.RawMessage
		if err := decoder.Decode(&value); err != nil {
			return nil, nil, err
		}

		if _, seen := members[key]; !seen {
			keys = append(keys, key)
		}
		members[key] = value
	}

	return keys, members, nil
}
