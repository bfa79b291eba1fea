package jsondb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/regform/internal/models"
)

func newAccountRecord(username, email string) *models.Record {
	return &models.Record{
		Account: &models.Account{
			Username: username,
			Password: "secret1",
		},
		Email:            email,
		RegistrationDate: "2024-05-01T10:00:00.000Z",
	}
}

func readFile(t *testing.T, fileName string) string {
	t.Helper()
	data, err := os.ReadFile(fileName)
	require.NoError(t, err)
	return string(data)
}

func TestLoadAllRecovery(t *testing.T) {
	type tTestCase struct {
		name           string
		content        *string
		expectedReason string
	}
	content := func(s string) *string { return &s }

	testCases := []tTestCase{
		{name: "missing file", content: nil, expectedReason: RecoveryMissing},
		{name: "empty file", content: content(""), expectedReason: RecoveryEmpty},
		{name: "whitespace only", content: content(" \n\t "), expectedReason: RecoveryEmpty},
		{name: "string instead of array", content: content(`"not an array"`), expectedReason: RecoveryNotArray},
		{name: "object instead of array", content: content(`{"id": "1"}`), expectedReason: RecoveryNotArray},
		{name: "null", content: content(`null`), expectedReason: RecoveryNotArray},
		{name: "truncated JSON", content: content(`[{"id": "1", "email": `), expectedReason: RecoveryCorrupt},
		{name: "garbage", content: content(`###`), expectedReason: RecoveryCorrupt},
		{name: "trailing comma", content: content(`[{"id": "1"},]`), expectedReason: RecoveryCorrupt},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			fileName := filepath.Join(t.TempDir(), "data", "users.json")
			if testCase.content != nil {
				require.NoError(t, os.MkdirAll(filepath.Dir(fileName), 0o755))
				require.NoError(t, os.WriteFile(fileName, []byte(*testCase.content), 0o644))
			}

			var reasons []string
			db, err := New(fileName, WithRecoveryHook(func(reason string) {
				reasons = append(reasons, reason)
			}))
			require.NoError(t, err)
			defer func() {
				require.NoError(t, db.Close())
			}()

			records := db.LoadAll(context.Background())
			assert.NotNil(t, records)
			assert.Empty(t, records)
			assert.Equal(t, "[]", readFile(t, fileName))
			assert.Equal(t, []string{testCase.expectedReason}, reasons, "the file should be repaired exactly once")
		})
	}
}

func TestLoadAllKeepsValidArrays(t *testing.T) {
	type tTestCase struct {
		name             string
		content          string
		expectedUsername string
		expectedEmail    string
	}
	testCases := []tTestCase{
		{
			name: "numeric gender",
			content: `[
  {
    "id": "1",
    "username": "ann",
    "email": "ann@x.com",
    "password": "secret1",
    "age": null,
    "gender": 1,
    "city": "",
    "registrationDate": "2024-05-01T10:00:00.000Z",
    "lastLogin": null
  }
]`,
			expectedUsername: "ann",
			expectedEmail:    "ann@x.com",
		},
		{
			name:             "numeric lastLogin and object city",
			content:          `[{"id": "1", "username": "ann", "email": "ann@x.com", "lastLogin": 1714557600000, "city": {"name": "Riga"}}]`,
			expectedUsername: "ann",
			expectedEmail:    "ann@x.com",
		},
		{
			name:             "numeric age and unknown members",
			content:          `[{"id": "1", "username": "ann", "email": "ann@x.com", "age": 30, "role": "admin", "tags": ["a"]}]`,
			expectedUsername: "ann",
			expectedEmail:    "ann@x.com",
		},
		{
			name:             "numeric username",
			content:          `[{"id": "1", "username": 42, "email": "ann@x.com"}]`,
			expectedUsername: "",
			expectedEmail:    "ann@x.com",
		},
		{
			name:             "elements that are not objects",
			content:          `[1, "two", null, {"id": "1", "username": "ann", "email": "ann@x.com"}]`,
			expectedUsername: "ann",
			expectedEmail:    "ann@x.com",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			fileName := filepath.Join(t.TempDir(), "users.json")
			require.NoError(t, os.WriteFile(fileName, []byte(testCase.content), 0o644))

			var reasons []string
			db, err := New(fileName, WithRecoveryHook(func(reason string) {
				reasons = append(reasons, reason)
			}))
			require.NoError(t, err)
			defer func() {
				require.NoError(t, db.Close())
			}()

			records := db.LoadAll(context.Background())
			require.NotEmpty(t, records)
			last := records[len(records)-1]
			username := ""
			if last.Account != nil {
				username = last.Username
			}
			assert.Equal(t, testCase.expectedUsername, username)
			assert.Equal(t, testCase.expectedEmail, last.Email)
			assert.Empty(t, reasons, "a valid array should never be reset")

			require.True(t, db.SaveAll(context.Background(), records))
			assert.JSONEq(t, testCase.content, readFile(t, fileName))
		})
	}
}

func TestInsertKeepsForeignRecords(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(fileName, []byte(
		`[{"id": "1", "username": "ann", "email": "ann@x.com", "gender": 1, "role": "admin"}]`,
	), 0o644))

	db, err := New(fileName, WithClock(func() time.Time { return time.UnixMilli(1714557600000) }))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Insert(context.Background(), newAccountRecord("bob", "bob@x.com"), nil))

	content := readFile(t, fileName)
	assert.Contains(t, content, `"gender": 1`)
	assert.Contains(t, content, `"role": "admin"`)

	records := db.LoadAll(context.Background())
	require.Len(t, records, 2)
	assert.Equal(t, "ann", records[0].Username)
	assert.Equal(t, "bob", records[1].Username)
}

func TestLoadAllIsIdempotentWithSaveAll(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "users.json")
	age := models.FlexString("30")
	records := []models.Record{
		{
			ID:               "1714557600000",
			Account:          &models.Account{Username: "ann", Password: "secret1"},
			Email:            "ann@x.com",
			Age:              &age,
			Gender:           "female",
			City:             "Riga",
			RegistrationDate: "2024-05-01T10:00:00.000Z",
		},
		{
			ID:               "1714557600001",
			Contact:          &models.Contact{FirstName: "Bob", LastName: "Stone", Phone: "+100"},
			Email:            "bob@x.com",
			RegistrationDate: "2024-05-01T10:00:00.001Z",
		},
	}

	db, err := New(fileName)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, db.Close())
	}()

	require.True(t, db.SaveAll(context.Background(), records))
	before := readFile(t, fileName)

	loaded := db.LoadAll(context.Background())
	assert.Equal(t, records, loaded)

	require.True(t, db.SaveAll(context.Background(), loaded))
	assert.Equal(t, before, readFile(t, fileName))
}

func TestSaveAllKeepsForeignContentUnchanged(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "users.json")
	content := `[
  {
    "id": "1",
    "username": "ann",
    "email": "ann@x.com",
    "password": "secret1",
    "age": "30",
    "gender": "<f>",
    "city": "Rīga",
    "registrationDate": "2024-05-01T10:00:00.000Z",
    "lastLogin": null,
    "role": "admin"
  },
  {
    "id": "2",
    "firstName": "Bob",
    "lastName": "Stone",
    "email": "bob@x.com"
  }
]`
	require.NoError(t, os.WriteFile(fileName, []byte(content), 0o644))

	db, err := New(fileName)
	require.NoError(t, err)
	defer db.Close()

	require.True(t, db.SaveAll(context.Background(), db.LoadAll(context.Background())))
	assert.Equal(t, content, readFile(t, fileName))
}

func TestSaveAllFormatsWithTwoSpaces(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "users.json")
	db, err := New(fileName)
	require.NoError(t, err)
	defer db.Close()

	require.True(t, db.SaveAll(context.Background(), []models.Record{*newAccountRecord("ann", "ann@x.com")}))

	assert.Contains(t, readFile(t, fileName), "[\n  {\n    \"id\": \"\",\n    \"username\": \"ann\"")
}

func TestSaveAllReportsFailure(t *testing.T) {
	// A directory in place of the file makes every write fail.
	fileName := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.Mkdir(fileName, 0o755))

	var reasons []string
	db, err := New(fileName, WithRecoveryHook(func(reason string) {
		reasons = append(reasons, reason)
	}))
	require.NoError(t, err)
	defer db.Close()

	assert.Empty(t, db.LoadAll(context.Background()))
	assert.Contains(t, reasons, RecoveryUnreadable)
	assert.False(t, db.SaveAll(context.Background(), []models.Record{*newAccountRecord("ann", "ann@x.com")}))

	err = db.Insert(context.Background(), newAccountRecord("ann", "ann@x.com"), nil)
	assert.Error(t, err)
}

func TestInsert(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "users.json")
	fixedNow := time.UnixMilli(1714557600000)

	db, err := New(fileName, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	defer db.Close()

	first := newAccountRecord("ann", "ann@x.com")
	require.NoError(t, db.Insert(context.Background(), first, nil))
	assert.Equal(t, "1714557600000", first.ID)

	second := newAccountRecord("bob", "bob@x.com")
	require.NoError(t, db.Insert(context.Background(), second, nil))
	assert.Equal(t, "1714557600001", second.ID, "the id should be bumped when the clock did not advance")

	errTaken := errors.New("taken")
	vetoed := newAccountRecord("ann", "other@x.com")
	err = db.Insert(context.Background(), vetoed, func(existing []models.Record) error {
		for _, r := range existing {
			if r.Account != nil && r.Username == "ann" {
				return errTaken
			}
		}
		return nil
	})
	assert.ErrorIs(t, err, errTaken)
	assert.Empty(t, vetoed.ID)

	records := db.LoadAll(context.Background())
	require.Len(t, records, 2)
	assert.Equal(t, "ann", records[0].Username)
	assert.Equal(t, "bob", records[1].Username)

	// A second store over the same file sees the same content.
	other, err := New(fileName)
	require.NoError(t, err)
	defer other.Close()
	assert.Equal(t, records, other.LoadAll(context.Background()))
}

func TestLoadAllReturnsCopies(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "users.json")
	db, err := New(fileName)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Insert(context.Background(), newAccountRecord("ann", "ann@x.com"), nil))

	records := db.LoadAll(context.Background())
	records[0].Username = "mallory"
	records[0].Email = "mallory@x.com"

	fresh := db.LoadAll(context.Background())
	assert.Equal(t, "ann", fresh[0].Username)
	assert.Equal(t, "ann@x.com", fresh[0].Email)
}

func TestLoadAllNoticesExternalChanges(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "users.json")
	db, err := New(fileName)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Insert(context.Background(), newAccountRecord("ann", "ann@x.com"), nil))
	require.Len(t, db.LoadAll(context.Background()), 1)

	require.NoError(t, os.WriteFile(fileName, []byte(`[
  {"id": "1", "username": "x", "email": "x@x.com"},
  {"id": "2", "username": "y", "email": "y@x.com"}
]`), 0o644))

	records := db.LoadAll(context.Background())
	require.Len(t, records, 2)
	assert.Equal(t, "y", records[1].Username)
}

func TestLoadAllNoticesRewritesWithTheSameStamp(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(fileName, []byte(`[{"id": "1", "username": "ann", "email": "ann@x.com"}]`), 0o644))

	db, err := New(fileName)
	require.NoError(t, err)
	defer db.Close()

	require.Equal(t, "ann", db.LoadAll(context.Background())[0].Username)

	info, err := os.Stat(fileName)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(fileName, []byte(`[{"id": "1", "username": "bob", "email": "bob@x.com"}]`), 0o644))
	require.NoError(t, os.Chtimes(fileName, info.ModTime(), info.ModTime()))

	records := db.LoadAll(context.Background())
	require.Len(t, records, 1)
	assert.Equal(t, "bob", records[0].Username)
}

func TestConcurrentInsertsAreNotLost(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "users.json")

	first, err := New(fileName)
	require.NoError(t, err)
	defer first.Close()

	second, err := New(fileName)
	require.NoError(t, err)
	defer second.Close()

	const writers = 20

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			db := first
			if i%2 == 1 {
				db = second
			}
			name := fmt.Sprintf("user%d", i)
			errs <- db.Insert(context.Background(), newAccountRecord(name, name+"@x.com"), nil)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	records := first.LoadAll(context.Background())
	require.Len(t, records, writers)

	ids := map[string]struct{}{}
	for _, r := range records {
		ids[r.ID] = struct{}{}
	}
	assert.Len(t, ids, writers, "ids should be unique")
}

func TestInsertHonorsContext(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "users.json")
	db, err := New(fileName)
	require.NoError(t, err)
	defer db.Close()

	holder, err := New(fileName)
	require.NoError(t, err)
	defer holder.Close()

	locked, err := holder.fileLock.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer holder.fileLock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = db.Insert(ctx, newAccountRecord("ann", "ann@x.com"), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPing(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "users.json")
	db, err := New(fileName)
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Ping(context.Background()))

	require.NoError(t, os.Remove(fileName))
	assert.Error(t, db.Ping(context.Background()))
}
