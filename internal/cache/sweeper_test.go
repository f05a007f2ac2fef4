package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSweepRemovesExpiredEntries(t *testing.T) {
	ttl := time.Hour
	store, root := newTestStore(t, ttl)

	fresh := "https://example.com/fresh"
	stale := "https://example.com/stale"
	if err := store.Set(context.Background(), fresh, 200, nil, []byte("fresh")); err != nil {
		t.Fatalf("set error: %v", err)
	}
	if err := store.Set(context.Background(), stale, 200, nil, []byte("stale")); err != nil {
		t.Fatalf("set error: %v", err)
	}
	backdateEntry(t, root, stale, 2*time.Hour)

	sweeper := NewSweeper(SweeperOptions{Root: root, TTL: ttl, Logger: silentLogger()})
	defer sweeper.Close()
	sweeper.Sweep()

	if _, err := store.Get(context.Background(), fresh); err != nil {
		t.Fatalf("fresh entry must survive sweep: %v", err)
	}
	staleBase := entryPath(root, HashKey(stale))
	if _, err := os.Stat(metaPath(staleBase)); !os.IsNotExist(err) {
		t.Fatalf("stale meta should be removed by sweep")
	}
	if _, err := os.Stat(dataPath(staleBase)); !os.IsNotExist(err) {
		t.Fatalf("stale data should be removed by sweep")
	}
}

func TestSweepSchedulesRemainingTTL(t *testing.T) {
	ttl := time.Hour
	store, root := newTestStore(t, ttl)
	url := "https://example.com/survivor"
	if err := store.Set(context.Background(), url, 200, nil, []byte("keep")); err != nil {
		t.Fatalf("set error: %v", err)
	}

	// 模拟重启：Sweeper 对磁盘上未过期的条目补登记定时器。
	sweeper := NewSweeper(SweeperOptions{Root: root, TTL: ttl, Logger: silentLogger()})
	defer sweeper.Close()
	sweeper.Sweep()

	sweeper.mu.Lock()
	_, scheduled := sweeper.timers[HashKey(url)]
	sweeper.mu.Unlock()
	if !scheduled {
		t.Fatalf("unexpired entry should get a deletion timer")
	}
}

func TestSweepRemovesEmptyShardDirs(t *testing.T) {
	root := t.TempDir()
	empty := filepath.Join(root, "ab")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}

	sweeper := NewSweeper(SweeperOptions{Root: root, TTL: time.Hour, Logger: silentLogger()})
	defer sweeper.Close()
	sweeper.Sweep()

	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Fatalf("empty shard dir should be removed")
	}
}

func TestSweepRemovesAgedOrphanData(t *testing.T) {
	root := t.TempDir()
	hash := HashKey("https://example.com/orphan")
	base := entryPath(root, hash)
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	if err := os.WriteFile(dataPath(base), []byte("leftover"), 0o644); err != nil {
		t.Fatalf("write error: %v", err)
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(dataPath(base), past, past); err != nil {
		t.Fatalf("chtimes error: %v", err)
	}

	sweeper := NewSweeper(SweeperOptions{Root: root, TTL: time.Hour, Logger: silentLogger()})
	defer sweeper.Close()
	sweeper.Sweep()

	if _, err := os.Stat(dataPath(base)); !os.IsNotExist(err) {
		t.Fatalf("aged orphan data should be removed")
	}
}

func TestSweepToleratesMissingRoot(t *testing.T) {
	sweeper := NewSweeper(SweeperOptions{
		Root:   filepath.Join(t.TempDir(), "never-created"),
		TTL:    time.Hour,
		Logger: silentLogger(),
	})
	defer sweeper.Close()
	sweeper.Sweep()
}

func TestScheduleFiresDeletion(t *testing.T) {
	root := t.TempDir()
	sweeper := NewSweeper(SweeperOptions{Root: root, TTL: time.Hour, Logger: silentLogger()})
	defer sweeper.Close()

	store, err := NewStore(Options{Root: root, TTL: 20 * time.Millisecond, Logger: silentLogger(), Sweeper: sweeper})
	if err != nil {
		t.Fatalf("store error: %v", err)
	}

	url := "https://example.com/short-lived"
	if err := store.Set(context.Background(), url, 200, nil, []byte("gone soon")); err != nil {
		t.Fatalf("set error: %v", err)
	}

	base := entryPath(root, HashKey(url))
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(metaPath(base)); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timer did not delete entry in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := os.Stat(dataPath(base)); !os.IsNotExist(err) {
		t.Fatalf("data file should be deleted with meta")
	}
}

func TestCancelStopsScheduledDeletion(t *testing.T) {
	root := t.TempDir()
	sweeper := NewSweeper(SweeperOptions{Root: root, TTL: time.Hour, Logger: silentLogger()})
	defer sweeper.Close()

	hash := HashKey("https://example.com/kept")
	sweeper.Schedule(hash, 30*time.Millisecond)
	sweeper.Cancel(hash)

	sweeper.mu.Lock()
	_, present := sweeper.timers[hash]
	sweeper.mu.Unlock()
	if present {
		t.Fatalf("canceled timer should be dropped")
	}
}

func TestScheduleAfterCloseIsNoop(t *testing.T) {
	sweeper := NewSweeper(SweeperOptions{Root: t.TempDir(), TTL: time.Hour, Logger: silentLogger()})
	sweeper.Close()
	sweeper.Schedule("deadbeef", time.Millisecond)

	sweeper.mu.Lock()
	count := len(sweeper.timers)
	sweeper.mu.Unlock()
	if count != 0 {
		t.Fatalf("closed sweeper must not accept timers")
	}
}

// backdateEntry 将条目两个文件的 mtime 拨回 age 之前。
func backdateEntry(t *testing.T, root, url string, age time.Duration) {
	t.Helper()
	base := entryPath(root, HashKey(url))
	past := time.Now().Add(-age)
	for _, path := range []string{dataPath(base), metaPath(base)} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes %s: %v", path, err)
		}
	}
}
