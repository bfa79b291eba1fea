// Package memorystorage keeps records in process memory. It is used when
// neither a records file nor a database is configured, and in tests.
package memorystorage

import (
	"context"
	"sync"
	"time"

	"github.com/patric-chuzhbe/regform/internal/db/storage"
	"github.com/patric-chuzhbe/regform/internal/models"
)

type MemoryStorage struct {
	mu      sync.Mutex
	records []models.Record
	now     func() time.Time
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		records: []models.Record{},
		now:     time.Now,
	}, nil
}

func (theStorage *MemoryStorage) LoadAll(ctx context.Context) []models.Record {
	theStorage.mu.Lock()
	defer theStorage.mu.Unlock()

	return models.CloneRecords(theStorage.records)
}

func (theStorage *MemoryStorage) SaveAll(ctx context.Context, records []models.Record) bool {
	theStorage.mu.Lock()
	defer theStorage.mu.Unlock()

	theStorage.records = models.CloneRecords(records)

	return true
}

func (theStorage *MemoryStorage) Insert(ctx context.Context, record *models.Record, check storage.CheckFunc) error {
	theStorage.mu.Lock()
	defer theStorage.mu.Unlock()

	if check != nil {
		if err := check(theStorage.records); err != nil {
			return err
		}
	}

	record.ID = storage.NextID(theStorage.records, theStorage.now())
	theStorage.records = append(theStorage.records, record.Clone())

	return nil
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}

func (theStorage *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}
