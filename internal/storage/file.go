package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vocadrill/vocadrill/internal/domain"
	"github.com/vocadrill/vocadrill/internal/sm2"
)

// FileStore is the legacy per-user JSON backend. Each user owns a directory
// under <root>/users/ holding srs.json (card_id -> schedule) and
// review_log.json (append-only entries).
//
// Writes go through a temp file and rename, so a crash never leaves a
// half-written state file. Per-user mutexes serialize read-modify-write
// cycles, which covers the per-(user, card) ordering the engine needs.
type FileStore struct {
	root   string
	logger *slog.Logger

	mu    sync.Mutex // guards users
	users map[string]*sync.Mutex
}

var _ Store = (*FileStore)(nil)

// OpenFile creates the data directory if needed and returns the store.
func OpenFile(root string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(root, "users"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{root: root, logger: logger, users: make(map[string]*sync.Mutex)}, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) userMutex(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.users[userID]
	if !ok {
		m = &sync.Mutex{}
		s.users[userID] = m
	}
	return m
}

// acquire checks the context before taking the user's lock, so a cancelled
// caller does not start a load/save cycle it will never read.
func (s *FileStore) acquire(ctx context.Context, userID string) (*sync.Mutex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mu := s.userMutex(userID)
	mu.Lock()
	return mu, nil
}

// userDir validates the user ID before using it as a path component.
func (s *FileStore) userDir(userID string) (string, error) {
	if userID == "" || strings.ContainsAny(userID, `/\`) || strings.Contains(userID, "..") {
		return "", fmt.Errorf("invalid user id %q", userID)
	}
	return filepath.Join(s.root, "users", userID), nil
}

func (s *FileStore) loadSchedules(userID string) (map[string]domain.Schedule, error) {
	dir, err := s.userDir(userID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "srs.json"))
	if os.IsNotExist(err) {
		return make(map[string]domain.Schedule), nil
	}
	if err != nil {
		return nil, err
	}
	schedules := make(map[string]domain.Schedule)
	if err := json.Unmarshal(data, &schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}

func (s *FileStore) saveSchedules(userID string, schedules map[string]domain.Schedule) error {
	dir, err := s.userDir(userID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return atomicWriteJSON(filepath.Join(dir, "srs.json"), schedules)
}

func (s *FileStore) loadLog(userID string) ([]domain.ReviewLogEntry, error) {
	dir, err := s.userDir(userID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "review_log.json"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []domain.ReviewLogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *FileStore) saveLog(userID string, entries []domain.ReviewLogEntry) error {
	dir, err := s.userDir(userID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return atomicWriteJSON(filepath.Join(dir, "review_log.json"), entries)
}

// atomicWriteJSON writes to a temp file, fsyncs, and renames over the target.
func atomicWriteJSON(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func (s *FileStore) Get(ctx context.Context, userID, cardID string) (*domain.Schedule, error) {
	mu, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, storeErr("get schedule", err)
	}
	defer mu.Unlock()

	schedules, err := s.loadSchedules(userID)
	if err != nil {
		return nil, storeErr("get schedule", err)
	}
	sched, ok := schedules[cardID]
	if !ok {
		return nil, nil
	}
	return &sched, nil
}

func (s *FileStore) Upsert(ctx context.Context, userID string, sched domain.Schedule) error {
	mu, err := s.acquire(ctx, userID)
	if err != nil {
		return storeErr("upsert schedule", err)
	}
	defer mu.Unlock()

	schedules, err := s.loadSchedules(userID)
	if err != nil {
		return storeErr("upsert schedule", err)
	}
	schedules[sched.CardID] = sched
	if err := s.saveSchedules(userID, schedules); err != nil {
		return storeErr("upsert schedule", err)
	}
	return nil
}

func (s *FileStore) Add(ctx context.Context, userID string, sched domain.Schedule) (bool, error) {
	mu, err := s.acquire(ctx, userID)
	if err != nil {
		return false, storeErr("add schedule", err)
	}
	defer mu.Unlock()

	schedules, err := s.loadSchedules(userID)
	if err != nil {
		return false, storeErr("add schedule", err)
	}
	if _, ok := schedules[sched.CardID]; ok {
		return false, nil
	}
	schedules[sched.CardID] = sched
	if err := s.saveSchedules(userID, schedules); err != nil {
		return false, storeErr("add schedule", err)
	}
	return true, nil
}

func (s *FileStore) Submit(ctx context.Context, userID, cardID string, compute ComputeFunc) (domain.Schedule, error) {
	mu, err := s.acquire(ctx, userID)
	if err != nil {
		return domain.Schedule{}, storeErr("begin submit", err)
	}
	defer mu.Unlock()

	schedules, err := s.loadSchedules(userID)
	if err != nil {
		return domain.Schedule{}, storeErr("read schedule", err)
	}

	var current *domain.Schedule
	if cur, ok := schedules[cardID]; ok {
		current = &cur
	}

	next, entry, err := compute(current)
	if err != nil {
		return domain.Schedule{}, err
	}

	entries, err := s.loadLog(userID)
	if err != nil {
		return domain.Schedule{}, storeErr("read review log", err)
	}

	schedules[next.CardID] = next
	if err := s.saveSchedules(userID, schedules); err != nil {
		return domain.Schedule{}, storeErr("write schedule", err)
	}
	// The log write rides behind the schedule write; a crash between the two
	// loses at most one history entry, never schedule state.
	if err := s.saveLog(userID, append(entries, entry)); err != nil {
		return domain.Schedule{}, storeErr("append review log", err)
	}
	return next, nil
}

func (s *FileStore) DueBefore(ctx context.Context, userID string, at time.Time, limit int) ([]domain.Schedule, error) {
	mu, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, storeErr("query due schedules", err)
	}
	defer mu.Unlock()

	schedules, err := s.loadSchedules(userID)
	if err != nil {
		return nil, storeErr("query due schedules", err)
	}

	var due []domain.Schedule
	for _, sched := range schedules {
		if sched.Due(at) {
			due = append(due, sched)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *FileStore) Delete(ctx context.Context, userID, cardID string) (bool, error) {
	mu, err := s.acquire(ctx, userID)
	if err != nil {
		return false, storeErr("delete schedule", err)
	}
	defer mu.Unlock()

	schedules, err := s.loadSchedules(userID)
	if err != nil {
		return false, storeErr("delete schedule", err)
	}
	if _, ok := schedules[cardID]; !ok {
		return false, nil
	}
	delete(schedules, cardID)
	if err := s.saveSchedules(userID, schedules); err != nil {
		return false, storeErr("delete schedule", err)
	}

	entries, err := s.loadLog(userID)
	if err != nil {
		return false, storeErr("delete review logs", err)
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.CardID != cardID {
			kept = append(kept, e)
		}
	}
	if len(kept) != len(entries) {
		if err := s.saveLog(userID, kept); err != nil {
			return false, storeErr("delete review logs", err)
		}
	}
	return true, nil
}

func (s *FileStore) SetAllDueNow(ctx context.Context, userID string, now time.Time) error {
	mu, err := s.acquire(ctx, userID)
	if err != nil {
		return storeErr("reset due dates", err)
	}
	defer mu.Unlock()

	schedules, err := s.loadSchedules(userID)
	if err != nil {
		return storeErr("reset due dates", err)
	}
	for id, sched := range schedules {
		sched.DueAt = now
		schedules[id] = sched
	}
	if err := s.saveSchedules(userID, schedules); err != nil {
		return storeErr("reset due dates", err)
	}
	return nil
}

func (s *FileStore) CollectionIDs(ctx context.Context, userID string) ([]string, error) {
	mu, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, storeErr("list collection", err)
	}
	defer mu.Unlock()

	schedules, err := s.loadSchedules(userID)
	if err != nil {
		return nil, storeErr("list collection", err)
	}
	ids := make([]string, 0, len(schedules))
	for id := range schedules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FileStore) Stats(ctx context.Context, userID string, now time.Time) (domain.Stats, error) {
	mu, err := s.acquire(ctx, userID)
	if err != nil {
		return domain.Stats{}, storeErr("aggregate stats", err)
	}
	defer mu.Unlock()

	schedules, err := s.loadSchedules(userID)
	if err != nil {
		return domain.Stats{}, storeErr("aggregate stats", err)
	}

	var st domain.Stats
	st.Total = len(schedules)
	for _, sched := range schedules {
		if sched.Due(now) {
			st.Due++
		}
		if sm2.Mastered(sched) {
			st.Mastered++
		}
	}
	st.Learning = st.Total - st.Mastered
	if st.Learning < 0 {
		st.Learning = 0
	}
	return st, nil
}

func (s *FileStore) History(ctx context.Context, userID string, since time.Time) (map[string]int, error) {
	mu, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, storeErr("query review history", err)
	}
	defer mu.Unlock()

	entries, err := s.loadLog(userID)
	if err != nil {
		return nil, storeErr("query review history", err)
	}
	byDay := make(map[string]int)
	for _, e := range entries {
		if e.Timestamp.Before(since) {
			continue
		}
		byDay[e.Timestamp.UTC().Format("2006-01-02")]++
	}
	return byDay, nil
}
