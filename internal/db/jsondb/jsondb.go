// Package jsondb implements the record store on top of a single JSON file
// holding an array of records.
//
// The file heals itself: a missing, empty, non-array or unparsable file is
// replaced with an empty array instead of failing the caller. Elements of a
// valid array are kept as they are, whatever their shape. Every load and
// read-modify-write runs under an in-process mutex and an advisory lock on
// "<file>.lock", so concurrent registrations can not lose each other's writes.
package jsondb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/flock"

	"github.com/patric-chuzhbe/regform/internal/db/storage"
	"github.com/patric-chuzhbe/regform/internal/logger"
	"github.com/patric-chuzhbe/regform/internal/models"
)

// Recovery reasons reported to the hook set with WithRecoveryHook.
const (
	RecoveryMissing    = "missing"
	RecoveryEmpty      = "empty"
	RecoveryNotArray   = "not_array"
	RecoveryCorrupt    = "corrupt"
	RecoveryUnreadable = "unreadable"
)

const lockRetryDelay = 10 * time.Millisecond

var (
	errEmptyFile = errors.New("records file is empty")
	errNotArray  = errors.New("records file does not contain an array")
)

// JSONDB is the file-backed record store.
type JSONDB struct {
	fileName  string
	fileLock  *flock.Flock
	now       func() time.Time
	onRecover func(reason string)

	mu         sync.Mutex
	cache      []models.Record
	cacheSum   uint64
	cacheValid bool
}

type initOptions struct {
	now       func() time.Time
	onRecover func(reason string)
}

// InitOption configures a JSONDB.
type InitOption func(*initOptions)

// WithClock replaces time.Now as the source of record ids.
func WithClock(now func() time.Time) InitOption {
	return func(options *initOptions) {
		options.now = now
	}
}

// WithRecoveryHook registers a callback invoked every time the backing file
// is reset to an empty array.
func WithRecoveryHook(hook func(reason string)) InitOption {
	return func(options *initOptions) {
		options.onRecover = hook
	}
}

// New creates the parent directory of fileName when needed and performs an
// initial load, which creates or repairs the file.
func New(fileName string, optionsProto ...InitOption) (*JSONDB, error) {
	options := &initOptions{
		now:       time.Now,
		onRecover: func(string) {},
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if dir := filepath.Dir(fileName); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("in internal/db/jsondb/jsondb.go/New(): error while `os.MkdirAll()` calling: %w", err)
		}
	}

	db := &JSONDB{
		fileName:  fileName,
		fileLock:  flock.New(fileName + ".lock"),
		now:       options.now,
		onRecover: options.onRecover,
	}

	records := db.LoadAll(context.Background())
	logger.Log.Infoln("records loaded", "file", fileName, "count", len(records))

	return db, nil
}

// LoadAll returns the current records. It never fails: whatever is wrong with
// the file is logged, the file is reset to an empty array and an empty slice
// is returned.
func (db *JSONDB) LoadAll(ctx context.Context) []models.Record {
	db.mu.Lock()
	defer db.mu.Unlock()

	unlock, err := db.lockFile(ctx)
	if err != nil {
		logger.Log.Warnln("loading records without the file lock", "file", db.fileName, "error", err)
	} else {
		defer unlock()
	}

	return models.CloneRecords(db.loadLocked())
}

// SaveAll overwrites the file with records. Failures are logged and reported as false.
func (db *JSONDB) SaveAll(ctx context.Context, records []models.Record) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	unlock, err := db.lockFile(ctx)
	if err != nil {
		logger.Log.Errorln("unable to lock records file", "file", db.fileName, "error", err)
		return false
	}
	defer unlock()

	if err := db.saveLocked(models.CloneRecords(records)); err != nil {
		logger.Log.Errorln("unable to save records", "file", db.fileName, "error", err)
		return false
	}

	return true
}

// Insert loads the records, lets check veto the insert, assigns record.ID,
// appends and saves, all while holding both locks.
func (db *JSONDB) Insert(ctx context.Context, record *models.Record, check storage.CheckFunc) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	unlock, err := db.lockFile(ctx)
	if err != nil {
		return fmt.Errorf("in internal/db/jsondb/jsondb.go/Insert(): error while `db.lockFile()` calling: %w", err)
	}
	defer unlock()

	existing := db.loadLocked()
	if check != nil {
		if err := check(existing); err != nil {
			return err
		}
	}

	record.ID = storage.NextID(existing, db.now())

	updated := make([]models.Record, 0, len(existing)+1)
	updated = append(updated, existing...)
	updated = append(updated, record.Clone())

	if err := db.saveLocked(updated); err != nil {
		logger.Log.Errorln("unable to save records", "file", db.fileName, "error", err)
		return fmt.Errorf("%w: %w", storage.ErrNotSaved, err)
	}

	return nil
}

// Ping reports whether the records file can be stat'ed.
func (db *JSONDB) Ping(ctx context.Context) error {
	_, err := os.Stat(db.fileName)
	return err
}

// Close releases the advisory lock handle. Records are written through on
// every change, so there is nothing left to flush.
func (db *JSONDB) Close() error {
	return db.fileLock.Close()
}

func (db *JSONDB) lockFile(ctx context.Context) (func(), error) {
	locked, err := db.fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("lock %s was not acquired", db.fileLock.Path())
	}

	return func() {
		if err := db.fileLock.Unlock(); err != nil {
			logger.Log.Warnln("unable to release records file lock", "file", db.fileName, "error", err)
		}
	}, nil
}

// loadLocked returns the cached records, reparsing the file when its content
// digest changed. The caller must hold db.mu and must not modify the returned
// slice.
func (db *JSONDB) loadLocked() []models.Record {
	data, err := os.ReadFile(db.fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return db.reset(RecoveryMissing, err)
		}
		return db.reset(RecoveryUnreadable, err)
	}

	sum := xxhash.Sum64(data)
	if db.cacheValid && sum == db.cacheSum {
		return db.cache
	}

	records, err := parseRecords(data)
	if err != nil {
		switch {
		case errors.Is(err, errEmptyFile):
			return db.reset(RecoveryEmpty, err)
		case errors.Is(err, errNotArray):
			return db.reset(RecoveryNotArray, err)
		default:
			return db.reset(RecoveryCorrupt, err)
		}
	}

	db.cache = records
	db.cacheSum = sum
	db.cacheValid = true

	return db.cache
}

func (db *JSONDB) reset(reason string, cause error) []models.Record {
	if reason == RecoveryMissing {
		logger.Log.Infoln("records file not found, creating an empty one", "file", db.fileName)
	} else {
		logger.Log.Warnln("records file is broken, resetting it to an empty array",
			"file", db.fileName,
			"reason", reason,
			"error", cause,
		)
	}
	db.onRecover(reason)

	empty := []models.Record{}
	if err := db.saveLocked(empty); err != nil {
		logger.Log.Errorln("unable to reset records file", "file", db.fileName, "error", err)
		db.cacheValid = false
	}

	return empty
}

// saveLocked writes records next to the target and renames the result over
// it, then refreshes the cache. The caller must hold db.mu.
func (db *JSONDB) saveLocked(records []models.Record) error {
	if records == nil {
		records = []models.Record{}
	}

	data, err := marshalRecords(records)
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	if err := writeFileAtomic(db.fileName, data); err != nil {
		db.cacheValid = false
		return err
	}

	db.cache = records
	db.cacheSum = xxhash.Sum64(data)
	db.cacheValid = true

	return nil
}

func parseRecords(data []byte) ([]models.Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errEmptyFile
	}

	if trimmed[0] != '[' {
		if !json.Valid(trimmed) {
			return nil, errors.New("records file is not valid JSON")
		}
		return nil, errNotArray
	}

	var records []models.Record
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, err
	}

	return records, nil
}

func marshalRecords(records []models.Record) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func writeFileAtomic(fileName string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(fileName), filepath.Base(fileName)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("error writing to file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("error closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("error setting file mode: %w", err)
	}
	if err := os.Rename(tmpName, fileName); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("error replacing file: %w", err)
	}

	return nil
}
