// Package mockstorage provides a testify-based mock implementation
// of the record store used by the service and router packages.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/regform/internal/db/storage"
	"github.com/patric-chuzhbe/regform/internal/models"
)

// StorageMock is a testify mock of storage.Storage.
//
// Insert runs the check function it receives against the records passed as
// the second return value of the matching expectation, so duplicate
// detection can be exercised without a real store:
//
//	m.On("Insert", mock.Anything, mock.Anything, mock.Anything).
//		Return(nil, []models.Record{existing})
type StorageMock struct {
	mock.Mock

	// OnInsert, when set, replaces the generic Insert behaviour.
	OnInsert func(ctx context.Context, record *models.Record, check storage.CheckFunc) error
}

var _ storage.Storage = (*StorageMock)(nil)

// LoadAll mocks reading every record.
func (m *StorageMock) LoadAll(ctx context.Context) []models.Record {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]models.Record)
	return records
}

// SaveAll mocks overwriting the stored records.
func (m *StorageMock) SaveAll(ctx context.Context, records []models.Record) bool {
	args := m.Called(ctx, records)
	return args.Bool(0)
}

// Insert mocks the checked append. When the expectation returns a nil error
// and a record slice, check is run against it and its error is returned.
func (m *StorageMock) Insert(ctx context.Context, record *models.Record, check storage.CheckFunc) error {
	if m.OnInsert != nil {
		return m.OnInsert(ctx, record, check)
	}

	args := m.Called(ctx, record, check)
	if err := args.Error(0); err != nil {
		return err
	}

	if len(args) > 1 && check != nil {
		existing, _ := args.Get(1).([]models.Record)
		if err := check(existing); err != nil {
			return err
		}
	}

	return nil
}

// Ping mocks the health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks releasing the store.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
