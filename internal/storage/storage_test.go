package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenCreatesParentDirectoryAndTable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "deeper", "userd.db")
	store, err := Open(Options{Path: path})
	require.NoError(t, err)
	defer closeStoreNoErr(t, store)

	info, err := os.Stat(filepath.Dir(store.Path()))
	require.NoError(t, err)
	require.True(t, info.IsDir())
	require.True(t, tableExists(t, store, "users"))
}

func TestOpenIsIdempotentAcrossRestarts(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "userd.db")
	ctx := context.Background()

	store, err := Open(Options{Path: path})
	require.NoError(t, err)
	user := mustCreate(t, store, UserParams{Name: "Ada", Email: "ada@x.com", Date: "1815-12-10"})
	closeStoreNoErr(t, store)

	store, err = Open(Options{Path: path})
	require.NoError(t, err)
	defer closeStoreNoErr(t, store)

	conn := mustAcquire(t, store)
	defer conn.Close()

	loaded, err := store.Users.GetByID(ctx, conn, user.ID)
	require.NoError(t, err)
	require.Equal(t, user, loaded)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := Open(Options{})
	require.Error(t, err)
}

func TestOpenRejectsUnknownJournalMode(t *testing.T) {
	t.Parallel()

	_, err := Open(Options{
		Path:        filepath.Join(t.TempDir(), "userd.db"),
		JournalMode: "speedy",
	})
	require.Error(t, err)
}

func TestAcquiredConnectionCarriesPragmas(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	conn := mustAcquire(t, store)
	defer conn.Close()

	ctx := context.Background()

	var journalMode string
	require.NoError(t, conn.QueryRowContext(ctx, `PRAGMA journal_mode`).Scan(&journalMode))
	require.Equal(t, "wal", journalMode)

	var foreignKeys int
	require.NoError(t, conn.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&foreignKeys))
	require.Equal(t, 1, foreignKeys)

	var busyTimeout int
	require.NoError(t, conn.QueryRowContext(ctx, `PRAGMA busy_timeout`).Scan(&busyTimeout))
	require.Equal(t, 3000, busyTimeout)
}

func TestCreateAssignsIDAndReturnsStoredRow(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	user := mustCreate(t, store, UserParams{Name: "Ada", Email: "ada@x.com", Date: "1815-12-10"})

	require.Equal(t, int64(1), user.ID)
	require.Equal(t, "Ada", user.Name)
	require.Equal(t, "ada@x.com", user.Email)
	require.Equal(t, "1815-12-10", user.Date)
}

func TestCreateDuplicateEmailReturnsErrEmailTaken(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	mustCreate(t, store, UserParams{Name: "Ada", Email: "ada@x.com", Date: "1815-12-10"})

	conn := mustAcquire(t, store)
	defer conn.Close()

	_, err := store.Users.Create(context.Background(), conn, UserParams{Name: "Other", Email: "ada@x.com", Date: "2000-01-01"})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestGetByIDMissingReturnsErrNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	conn := mustAcquire(t, store)
	defer conn.Close()

	_, err := store.Users.GetByID(context.Background(), conn, 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListEmptyReturnsEmptyNonNilSlice(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	conn := mustAcquire(t, store)
	defer conn.Close()

	users, err := store.Users.List(context.Background(), conn)
	require.NoError(t, err)
	require.NotNil(t, users)
	require.Empty(t, users)
}

func TestListOrderedByAscendingID(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	for i := 0; i < 5; i++ {
		mustCreate(t, store, UserParams{
			Name:  fmt.Sprintf("user-%d", i),
			Email: fmt.Sprintf("user-%d@x.com", i),
			Date:  "2024-01-01",
		})
	}

	conn := mustAcquire(t, store)
	defer conn.Close()

	users, err := store.Users.List(context.Background(), conn)
	require.NoError(t, err)
	require.Len(t, users, 5)
	for i := 1; i < len(users); i++ {
		require.Greater(t, users[i].ID, users[i-1].ID)
	}
}

func TestUpdateReplacesEveryField(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	user := mustCreate(t, store, UserParams{Name: "Ada", Email: "ada@x.com", Date: "1815-12-10"})

	conn := mustAcquire(t, store)
	defer conn.Close()

	ctx := context.Background()
	updated, err := store.Users.Update(ctx, conn, user.ID, UserParams{Name: "Ada L", Email: "lovelace@x.com", Date: "1815-12-11"})
	require.NoError(t, err)
	require.Equal(t, user.ID, updated.ID)
	require.Equal(t, "Ada L", updated.Name)
	require.Equal(t, "lovelace@x.com", updated.Email)
	require.Equal(t, "1815-12-11", updated.Date)

	loaded, err := store.Users.GetByID(ctx, conn, user.ID)
	require.NoError(t, err)
	require.Equal(t, updated, loaded)
}

func TestUpdateMissingIDReturnsErrNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	conn := mustAcquire(t, store)
	defer conn.Close()

	_, err := store.Users.Update(context.Background(), conn, 42, UserParams{Name: "Ghost", Email: "ghost@x.com", Date: "2024-01-01"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateToOtherRecordsEmailReturnsErrEmailTaken(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	mustCreate(t, store, UserParams{Name: "A", Email: "a@x.com", Date: "2024-01-01"})
	second := mustCreate(t, store, UserParams{Name: "B", Email: "b@x.com", Date: "2024-01-02"})

	conn := mustAcquire(t, store)
	defer conn.Close()

	_, err := store.Users.Update(context.Background(), conn, second.ID, UserParams{Name: "B", Email: "a@x.com", Date: "2024-01-02"})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestUpdateWithUnchangedValuesSucceeds(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	user := mustCreate(t, store, UserParams{Name: "Ada", Email: "ada@x.com", Date: "1815-12-10"})

	conn := mustAcquire(t, store)
	defer conn.Close()

	updated, err := store.Users.Update(context.Background(), conn, user.ID, UserParams{Name: user.Name, Email: user.Email, Date: user.Date})
	require.NoError(t, err)
	require.Equal(t, user, updated)
}

func TestDeleteRemovesRecord(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	user := mustCreate(t, store, UserParams{Name: "Ada", Email: "ada@x.com", Date: "1815-12-10"})

	conn := mustAcquire(t, store)
	defer conn.Close()

	ctx := context.Background()
	require.NoError(t, store.Users.Delete(ctx, conn, user.ID))

	_, err := store.Users.GetByID(ctx, conn, user.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteMissingIDReturnsErrNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	conn := mustAcquire(t, store)
	defer conn.Close()

	require.ErrorIs(t, store.Users.Delete(context.Background(), conn, 42), ErrNotFound)
}

func TestIDNotReusedAfterDeletingHighestRow(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	first := mustCreate(t, store, UserParams{Name: "A", Email: "a@x.com", Date: "2024-01-01"})

	conn := mustAcquire(t, store)
	defer conn.Close()

	ctx := context.Background()
	require.NoError(t, store.Users.Delete(ctx, conn, first.ID))

	second, err := store.Users.Create(ctx, conn, UserParams{Name: "B", Email: "b@x.com", Date: "2024-01-02"})
	require.NoError(t, err)
	require.Greater(t, second.ID, first.ID)
}

func TestEngineVersionReportsNonEmpty(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	conn := mustAcquire(t, store)
	defer conn.Close()

	version, err := EngineVersion(context.Background(), conn)
	require.NoError(t, err)
	require.NotEmpty(t, version)
}

func TestConcurrentCreatesAllLand(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := store.Acquire(ctx)
			if err != nil {
				errs <- err
				return
			}
			defer conn.Close()
			_, err = store.Users.Create(ctx, conn, UserParams{
				Name:  fmt.Sprintf("user-%d", i),
				Email: fmt.Sprintf("user-%d@x.com", i),
				Date:  "2024-01-01",
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	conn := mustAcquire(t, store)
	defer conn.Close()

	users, err := store.Users.List(ctx, conn)
	require.NoError(t, err)
	require.Len(t, users, workers)
}

func TestClassifyMapsDriverErrors(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, classify(errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)")), ErrEmailTaken)
	require.ErrorIs(t, classify(errors.New("database is locked (5) (SQLITE_BUSY)")), ErrBusy)

	passthrough := errors.New("disk I/O error")
	require.Equal(t, passthrough, classify(passthrough))
	require.NoError(t, classify(nil))
}

func tableExists(t *testing.T, store *Store, table string) bool {
	t.Helper()

	var count int
	err := store.DB().QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func closeStoreNoErr(t *testing.T, store *Store) {
	t.Helper()
	require.NoError(t, store.Close())
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(Options{
		Path:        filepath.Join(t.TempDir(), "userd.db"),
		BusyTimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { closeStoreNoErr(t, store) })
	return store
}

func mustAcquire(t *testing.T, store *Store) *sql.Conn {
	t.Helper()

	conn, err := store.Acquire(context.Background())
	require.NoError(t, err)
	return conn
}

func mustCreate(t *testing.T, store *Store, params UserParams) User {
	t.Helper()

	conn, err := store.Acquire(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	user, err := store.Users.Create(context.Background(), conn, params)
	require.NoError(t, err)
	return user
}
