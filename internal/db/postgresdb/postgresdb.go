// Package postgresdb provides a PostgreSQL-based implementation of the record
// store. Records are kept as JSON documents in the registrations table, in
// insertion order, and every insert runs under an exclusive table lock.
package postgresdb

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/patric-chuzhbe/regform/internal/db/storage"
	"github.com/patric-chuzhbe/regform/internal/logger"
	"github.com/patric-chuzhbe/regform/internal/models"
	"github.com/patric-chuzhbe/regform/migrations"
)

// PostgresDB is a PostgreSQL-backed record store.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
	now               func() time.Time
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset drops the registrations table before migrating.
// It is meant for test setups.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New connects to the database and applies the embedded migrations.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
		now:               time.Now,
	}

	if err := result.Ping(ctx); err != nil {
		_ = database.Close()
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `result.Ping()` calling: %w",
				err,
			)
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			_ = database.Close()
			return nil,
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				)
		}
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		_ = database.Close()
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.UpContext(ctx, result.database, "."); err != nil {
		_ = database.Close()
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.UpContext()` calling: %w",
				err,
			)
	}

	return result, nil
}

// LoadAll returns every record in insertion order. Query failures are logged
// and yield an empty slice; rows that do not decode are skipped.
func (db *PostgresDB) LoadAll(ctx context.Context) []models.Record {
	records, err := db.selectRecords(ctx, db.database)
	if err != nil {
		logger.Log.Errorln("unable to load records", "error", err)
		return []models.Record{}
	}

	return records
}

// SaveAll replaces the table contents with records in one transaction.
func (db *PostgresDB) SaveAll(ctx context.Context, records []models.Record) bool {
	if err := db.replaceAll(ctx, records); err != nil {
		logger.Log.Errorln("unable to save records", "error", err)
		return false
	}

	return true
}

func (db *PostgresDB) replaceAll(ctx context.Context, records []models.Record) error {
	transaction, err := db.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = transaction.Rollback()
	}()

	if _, err := transaction.ExecContext(ctx, `LOCK TABLE registrations IN EXCLUSIVE MODE`); err != nil {
		return err
	}

	if _, err := transaction.ExecContext(ctx, `DELETE FROM registrations`); err != nil {
		return err
	}

	for i := range records {
		if err := insertRecord(ctx, transaction, &records[i]); err != nil {
			return err
		}
	}

	return transaction.Commit()
}

// Insert locks the table, lets check veto the insert against the current
// records, assigns record.ID and stores the record.
func (db *PostgresDB) Insert(ctx context.Context, record *models.Record, check storage.CheckFunc) error {
	transaction, err := db.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = transaction.Rollback()
	}()

	if _, err := transaction.ExecContext(ctx, `LOCK TABLE registrations IN EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/Insert(): error while locking the table: %w",
			err,
		)
	}

	existing, err := db.selectRecords(ctx, transaction)
	if err != nil {
		return err
	}

	if check != nil {
		if err := check(existing); err != nil {
			return err
		}
	}

	record.ID = storage.NextID(existing, db.now())

	if err := insertRecord(ctx, transaction, record); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrNotSaved, err)
	}

	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrNotSaved, err)
	}

	return nil
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) selectRecords(ctx context.Context, database queryer) ([]models.Record, error) {
	rows, err := database.QueryContext(ctx, `SELECT id, data FROM registrations ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.Record{}
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}

		var record models.Record
		if err := json.Unmarshal(data, &record); err != nil {
			logger.Log.Warnln("skipping undecodable record", "id", id, "error", err)
			continue
		}
		result = append(result, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func insertRecord(ctx context.Context, transaction *sql.Tx, record *models.Record) error {
	var data bytes.Buffer
	encoder := json.NewEncoder(&data)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(record); err != nil {
		return err
	}

	_, err := transaction.ExecContext(
		ctx,
		`INSERT INTO registrations (id, data) VALUES ($1, $2)`,
		record.ID,
		data.String(),
	)

	return err
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DROP TABLE IF EXISTS registrations;
			DROP TABLE IF EXISTS goose_db_version;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}
