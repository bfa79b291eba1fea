// Package storage holds the contract shared by the record stores and the
// helpers every implementation needs.
package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/patric-chuzhbe/regform/internal/models"
)

// ErrNotSaved is returned by Insert when the updated records could not be persisted.
var ErrNotSaved = errors.New("records were not saved")

// CheckFunc inspects the records loaded under the write lock and vetoes
// the pending insert by returning an error.
type CheckFunc func(existing []models.Record) error

// Storage is the record store contract.
//
// LoadAll and SaveAll never fail outward: LoadAll degrades to an empty
// collection and SaveAll reports false. Insert is the serialized
// read-modify-write sequence used for registration.
type Storage interface {
	LoadAll(ctx context.Context) []models.Record

	SaveAll(ctx context.Context, records []models.Record) bool

	Insert(ctx context.Context, record *models.Record, check CheckFunc) error

	Ping(ctx context.Context) error

	Close() error
}

// NextID derives a record id from now in milliseconds. When the clock has
// not moved past the newest existing id the result is that id plus one,
// so ids stay unique and strictly increasing.
func NextID(existing []models.Record, now time.Time) string {
	next := now.UnixMilli()
	for _, r := range existing {
		id, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			continue
		}
		if id >= next {
			next = id + 1
		}
	}

	return strconv.FormatInt(next, 10)
}
