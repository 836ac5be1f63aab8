package storage

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vocadrill/vocadrill/internal/domain"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := OpenFile(dir, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, dir
}

func schedule(cardID string, dueAt time.Time) domain.Schedule {
	return domain.Schedule{CardID: cardID, Repetitions: 0, Interval: 0, EF: 2.5, DueAt: dueAt}
}

func TestFileStoreGetAbsent(t *testing.T) {
	store, _ := newFileStore(t)
	sched, err := store.Get(context.Background(), "u1", "missing")
	require.NoError(t, err)
	assert.Nil(t, sched)
}

func TestFileStoreUpsertAndGet(t *testing.T) {
	store, _ := newFileStore(t)
	ctx := context.Background()

	in := schedule("bonjour", testNow)
	require.NoError(t, store.Upsert(ctx, "u1", in))

	out, err := store.Get(ctx, "u1", "bonjour")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in.CardID, out.CardID)
	assert.True(t, in.DueAt.Equal(out.DueAt))

	// Replace.
	in.Repetitions = 4
	require.NoError(t, store.Upsert(ctx, "u1", in))
	out, err = store.Get(ctx, "u1", "bonjour")
	require.NoError(t, err)
	assert.Equal(t, 4, out.Repetitions)
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	store, dir := newFileStore(t)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, "u1", schedule("bonjour", testNow)))
	require.NoError(t, store.Close())

	reopened, err := OpenFile(dir, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer reopened.Close()

	out, err := reopened.Get(ctx, "u1", "bonjour")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "bonjour", out.CardID)
}

func TestFileStoreAdd(t *testing.T) {
	store, _ := newFileStore(t)
	ctx := context.Background()

	created, err := store.Add(ctx, "u1", schedule("a", testNow))
	require.NoError(t, err)
	assert.True(t, created)

	// Second add leaves the stored schedule alone.
	altered := schedule("a", testNow.AddDate(0, 0, 5))
	altered.Repetitions = 9
	created, err = store.Add(ctx, "u1", altered)
	require.NoError(t, err)
	assert.False(t, created)

	out, err := store.Get(ctx, "u1", "a")
	require.NoError(t, err)
	assert.Equal(t, 0, out.Repetitions)
}

func TestFileStoreSubmit(t *testing.T) {
	store, _ := newFileStore(t)
	ctx := context.Background()

	next, err := store.Submit(ctx, "u1", "a", func(current *domain.Schedule) (domain.Schedule, domain.ReviewLogEntry, error) {
		require.Nil(t, current)
		s := schedule("a", testNow.AddDate(0, 0, 1))
		s.Repetitions = 1
		entry := domain.ReviewLogEntry{UserID: "u1", CardID: "a", Rating: domain.Good, Timestamp: testNow}
		return s, entry, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, next.Repetitions)

	// The compute func sees the committed state on the next call.
	_, err = store.Submit(ctx, "u1", "a", func(current *domain.Schedule) (domain.Schedule, domain.ReviewLogEntry, error) {
		require.NotNil(t, current)
		assert.Equal(t, 1, current.Repetitions)
		s := *current
		s.Repetitions = 2
		entry := domain.ReviewLogEntry{UserID: "u1", CardID: "a", Rating: domain.Good, Timestamp: testNow}
		return s, entry, nil
	})
	require.NoError(t, err)

	byDay, err := store.History(ctx, "u1", testNow.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Equal(t, 2, byDay[testNow.Format("2006-01-02")])
}

func TestFileStoreSubmitComputeError(t *testing.T) {
	store, _ := newFileStore(t)
	ctx := context.Background()

	wantErr := domain.ErrInvalidRating
	_, err := store.Submit(ctx, "u1", "a", func(*domain.Schedule) (domain.Schedule, domain.ReviewLogEntry, error) {
		return domain.Schedule{}, domain.ReviewLogEntry{}, wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	// Nothing was written.
	sched, err := store.Get(ctx, "u1", "a")
	require.NoError(t, err)
	assert.Nil(t, sched)
}

func TestFileStoreDueBefore(t *testing.T) {
	store, _ := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "u1", schedule("late", testNow.Add(-time.Minute))))
	require.NoError(t, store.Upsert(ctx, "u1", schedule("early", testNow.Add(-time.Hour))))
	require.NoError(t, store.Upsert(ctx, "u1", schedule("future", testNow.Add(time.Hour))))

	due, err := store.DueBefore(ctx, "u1", testNow, 0)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "early", due[0].CardID)
	assert.Equal(t, "late", due[1].CardID)

	due, err = store.DueBefore(ctx, "u1", testNow, 1)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "early", due[0].CardID)
}

func TestFileStoreDeleteRemovesLogs(t *testing.T) {
	store, _ := newFileStore(t)
	ctx := context.Background()

	for _, card := range []string{"a", "b"} {
		_, err := store.Submit(ctx, "u1", card, func(*domain.Schedule) (domain.Schedule, domain.ReviewLogEntry, error) {
			return schedule(card, testNow), domain.ReviewLogEntry{UserID: "u1", CardID: card, Rating: domain.Good, Timestamp: testNow}, nil
		})
		require.NoError(t, err)
	}

	existed, err := store.Delete(ctx, "u1", "a")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Delete(ctx, "u1", "a")
	require.NoError(t, err)
	assert.False(t, existed)

	// Only card b's log entry survives.
	byDay, err := store.History(ctx, "u1", testNow.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Equal(t, 1, byDay[testNow.Format("2006-01-02")])
}

func TestFileStoreSetAllDueNow(t *testing.T) {
	store, _ := newFileStore(t)
	ctx := context.Background()

	s := schedule("a", testNow.AddDate(0, 0, 10))
	s.Repetitions = 5
	s.Interval = 30
	require.NoError(t, store.Upsert(ctx, "u1", s))

	require.NoError(t, store.SetAllDueNow(ctx, "u1", testNow))

	out, err := store.Get(ctx, "u1", "a")
	require.NoError(t, err)
	assert.True(t, out.DueAt.Equal(testNow))
	assert.Equal(t, 5, out.Repetitions, "reset must not touch progress")
	assert.Equal(t, 30, out.Interval)
}

func TestFileStoreStats(t *testing.T) {
	store, _ := newFileStore(t)
	ctx := context.Background()

	mastered := domain.Schedule{CardID: "done", Repetitions: 3, Interval: 21, EF: 2.5, DueAt: testNow.AddDate(0, 0, 21)}
	learning := schedule("fresh", testNow.Add(-time.Hour))
	require.NoError(t, store.Upsert(ctx, "u1", mastered))
	require.NoError(t, store.Upsert(ctx, "u1", learning))

	stats, err := store.Stats(ctx, "u1", testNow)
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{Total: 2, Due: 1, Mastered: 1, Learning: 1}, stats)
}

func TestFileStoreCollectionIDs(t *testing.T) {
	store, _ := newFileStore(t)
	ctx := context.Background()

	for _, card := range []string{"c", "a", "b"} {
		require.NoError(t, store.Upsert(ctx, "u1", schedule(card, testNow)))
	}

	ids, err := store.CollectionIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	ids, err = store.CollectionIDs(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFileStoreHonorsCancelledContext(t *testing.T) {
	store, _ := newFileStore(t)
	require.NoError(t, store.Upsert(context.Background(), "u1", schedule("a", testNow)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Get(ctx, "u1", "a")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	// The write was refused before touching the file.
	err = store.Upsert(ctx, "u1", schedule("a", testNow.Add(time.Hour)))
	require.Error(t, err)
	out, err := store.Get(context.Background(), "u1", "a")
	require.NoError(t, err)
	assert.True(t, out.DueAt.Equal(testNow))
}

func TestFileStoreRejectsUnsafeUserID(t *testing.T) {
	store, _ := newFileStore(t)
	ctx := context.Background()

	for _, user := range []string{"", "../escape", "a/b"} {
		_, err := store.Get(ctx, user, "card")
		assert.Error(t, err, "user %q", user)
	}
}

func TestFileStoreUsersAreIsolated(t *testing.T) {
	store, _ := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "u1", schedule("a", testNow)))

	sched, err := store.Get(ctx, "u2", "a")
	require.NoError(t, err)
	assert.Nil(t, sched)
}
