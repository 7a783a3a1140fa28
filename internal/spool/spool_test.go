package spool

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/blackwell-systems/ctx/internal/store"
)

func newTestSpool(t *testing.T) *Spool {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "spool.jsonl"), zerolog.Nop())
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return st
}

func event(id, cmd string, ts time.Time) *store.CommandEvent {
	return &store.CommandEvent{
		ID:               id,
		Timestamp:        ts,
		WorkingDirectory: "/src/app",
		CommandText:      cmd,
		ExitCode:         0,
		DurationSeconds:  1.5,
	}
}

func countRows(t *testing.T, st *store.Store) int64 {
	t.Helper()
	n, err := st.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}

type failingInserter struct{ calls int }

func (f *failingInserter) ReplayBatch(context.Context, []*store.CommandEvent) (int64, error) {
	f.calls++
	return 0, errors.New("database is locked")
}

func TestDrain_MissingSpool(t *testing.T) {
	sp := newTestSpool(t)
	st := newTestStore(t)

	n, err := sp.Drain(context.Background(), st)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if n != 0 {
		t.Errorf("Drain() = %d, want 0", n)
	}
}

func TestInsertAndDrain(t *testing.T) {
	ctx := context.Background()
	sp := newTestSpool(t)
	st := newTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, cmd := range []string{"make build", "go test ./...", "git status"} {
		ev := event("id-"+strconv.Itoa(i), cmd, base.Add(time.Duration(i)*time.Minute))
		if err := sp.Insert(ctx, ev); err != nil {
			t.Fatalf("Insert(%q): %v", cmd, err)
		}
	}

	n, err := sp.Drain(ctx, st)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if n != 3 {
		t.Fatalf("Drain() = %d, want 3", n)
	}
	if got := countRows(t, st); got != 3 {
		t.Errorf("rows = %d, want 3", got)
	}

	var got []*store.CommandEvent
	for ev, err := range st.Scan(ctx, store.ScanOptions{}) {
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		got = append(got, ev)
	}
	if got[0].CommandText != "make build" || !got[0].Timestamp.Equal(base) {
		t.Errorf("first event = %q at %v", got[0].CommandText, got[0].Timestamp)
	}
	if got[0].DurationSeconds != 1.5 || got[0].WorkingDirectory != "/src/app" {
		t.Errorf("first event fields = %+v", got[0])
	}

	// Fully consumed spool is truncated and the offset file removed.
	info, err := os.Stat(sp.path)
	if err != nil {
		t.Fatalf("Stat spool: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("spool size = %d, want 0", info.Size())
	}
	if _, err := os.Stat(sp.offsetPath); !os.IsNotExist(err) {
		t.Errorf("offset file should not exist, stat err = %v", err)
	}

	// A second drain has nothing to do.
	n, err = sp.Drain(ctx, st)
	if err != nil || n != 0 {
		t.Errorf("second Drain() = %d, %v; want 0, nil", n, err)
	}
}

func TestDrain_SkipsMalformedLines(t *testing.T) {
	ctx := context.Background()
	sp := newTestSpool(t)
	st := newTestStore(t)

	good := event("good", "cargo build", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	if err := sp.Insert(ctx, good); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	junk := strings.Join([]string{
		`not json at all`,
		`{"id":"x","timestamp":"yesterday","command":"ls"}`,
		`{"id":"","timestamp":"2025-06-01T09:00:00Z","command":"ls"}`,
		``,
	}, "\n") + "\n"
	f, err := os.OpenFile(sp.path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("open spool: %v", err)
	}
	if _, err := f.WriteString(junk); err != nil {
		t.Fatalf("write junk: %v", err)
	}
	f.Close()

	n, err := sp.Drain(ctx, st)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if n != 1 {
		t.Errorf("Drain() = %d, want 1", n)
	}
	if got := countRows(t, st); got != 1 {
		t.Errorf("rows = %d, want 1", got)
	}
}

func TestDrain_LeavesPartialTrailingLine(t *testing.T) {
	ctx := context.Background()
	sp := newTestSpool(t)
	st := newTestStore(t)

	if err := sp.Insert(ctx, event("a", "make", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	complete, err := os.ReadFile(sp.path)
	if err != nil {
		t.Fatalf("read spool: %v", err)
	}
	partial := `{"id":"b","timestamp":"2025-06-01T09:01:00Z"`
	if err := os.WriteFile(sp.path, append(complete, partial...), 0o600); err != nil {
		t.Fatalf("write spool: %v", err)
	}

	n, err := sp.Drain(ctx, st)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if n != 1 {
		t.Fatalf("Drain() = %d, want 1", n)
	}

	offset, err := readOffset(sp.offsetPath)
	if err != nil {
		t.Fatalf("readOffset: %v", err)
	}
	if offset != int64(len(complete)) {
		t.Errorf("offset = %d, want %d", offset, len(complete))
	}

	// Finish the line; the next drain picks up only the new event.
	f, err := os.OpenFile(sp.path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("open spool: %v", err)
	}
	if _, err := f.WriteString(`,"cwd":"/tmp","command":"make test","exit_code":2,"duration_secs":0.25}` + "\n"); err != nil {
		t.Fatalf("finish line: %v", err)
	}
	f.Close()

	n, err = sp.Drain(ctx, st)
	if err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	if n != 1 {
		t.Errorf("second Drain() = %d, want 1", n)
	}
	if got := countRows(t, st); got != 2 {
		t.Errorf("rows = %d, want 2", got)
	}
}

func TestDrain_InsertFailureKeepsOffset(t *testing.T) {
	ctx := context.Background()
	sp := newTestSpool(t)

	if err := sp.Insert(ctx, event("a", "make", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	fail := &failingInserter{}
	if _, err := sp.Drain(ctx, fail); err == nil {
		t.Fatal("Drain() should fail when the batch insert fails")
	}
	if fail.calls != 1 {
		t.Errorf("InsertBatch calls = %d, want 1", fail.calls)
	}
	if _, err := os.Stat(sp.offsetPath); !os.IsNotExist(err) {
		t.Errorf("offset must not advance on failure, stat err = %v", err)
	}

	// The event is still there for the next attempt.
	st := newTestStore(t)
	n, err := sp.Drain(ctx, st)
	if err != nil || n != 1 {
		t.Errorf("retry Drain() = %d, %v; want 1, nil", n, err)
	}
}

func TestDrain_RepeatAfterLostOffset(t *testing.T) {
	ctx := context.Background()
	sp := newTestSpool(t)
	st := newTestStore(t)

	for i, cmd := range []string{"make", "make test"} {
		if err := sp.Insert(ctx, event("id-"+strconv.Itoa(i), cmd, time.Date(2025, 6, 1, 9, i, 0, 0, time.UTC))); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	data, err := os.ReadFile(sp.path)
	if err != nil {
		t.Fatalf("read spool: %v", err)
	}

	if _, err := sp.Drain(ctx, st); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	// Simulate a crash after commit but before the spool was truncated.
	if err := os.WriteFile(sp.path, data, 0o600); err != nil {
		t.Fatalf("restore spool: %v", err)
	}
	n, err := sp.Drain(ctx, st)
	if err != nil {
		t.Fatalf("repeat Drain: %v", err)
	}
	if n != 0 {
		t.Errorf("repeat Drain() = %d, want 0", n)
	}
	if got := countRows(t, st); got != 2 {
		t.Errorf("rows = %d, want 2", got)
	}
}

func TestPendingAndDiscard(t *testing.T) {
	ctx := context.Background()
	sp := newTestSpool(t)

	if n, err := sp.Pending(); err != nil || n != 0 {
		t.Fatalf("Pending() on missing spool = %d, %v", n, err)
	}

	if err := sp.Insert(ctx, event("a", "make", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	n, err := sp.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if n == 0 {
		t.Error("Pending() = 0 after Insert")
	}

	if err := writeOffsetAtomic(sp.offsetPath, n); err != nil {
		t.Fatalf("writeOffsetAtomic: %v", err)
	}
	if n, err := sp.Pending(); err != nil || n != 0 {
		t.Errorf("Pending() with offset at end = %d, %v; want 0", n, err)
	}

	if err := sp.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if info, err := os.Stat(sp.path); err != nil || info.Size() != 0 {
		t.Errorf("spool after Discard: %v, %v; want empty file", info, err)
	}
	if _, err := os.Stat(sp.offsetPath); !os.IsNotExist(err) {
		t.Error("offset file still exists after Discard")
	}
	if n, err := sp.Pending(); err != nil || n != 0 {
		t.Errorf("Pending() after Discard = %d, %v; want 0", n, err)
	}
	if err := sp.Discard(); err != nil {
		t.Errorf("second Discard: %v", err)
	}

	missing := newTestSpool(t)
	if err := missing.Discard(); err != nil {
		t.Errorf("Discard on missing spool: %v", err)
	}
}

// TestDrain_AppendDuringDrainIsKept covers a second shell appending after the
// replay committed but before the offset moved: the new line must survive
// and be replayed by the next drain.
func TestDrain_AppendDuringDrainIsKept(t *testing.T) {
	ctx := context.Background()
	sp := newTestSpool(t)
	st := newTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := sp.Insert(ctx, event("a", "make", base)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	sp.beforeAdvance = func() {
		sp.beforeAdvance = nil
		if err := sp.Insert(ctx, event("b", "make test", base.Add(time.Second))); err != nil {
			t.Errorf("concurrent Insert: %v", err)
		}
	}

	n, err := sp.Drain(ctx, st)
	if err != nil {
		t.Fatalf("first Drain: %v", err)
	}
	if n != 1 {
		t.Errorf("first Drain() = %d, want 1", n)
	}
	if pending, err := sp.Pending(); err != nil || pending == 0 {
		t.Fatalf("Pending() after first Drain = %d, %v; want the appended line", pending, err)
	}

	n, err = sp.Drain(ctx, st)
	if err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	if n != 1 {
		t.Errorf("second Drain() = %d, want 1", n)
	}
	if got := countRows(t, st); got != 2 {
		t.Errorf("rows = %d, want 2", got)
	}
	if pending, err := sp.Pending(); err != nil || pending != 0 {
		t.Errorf("Pending() after second Drain = %d, %v; want 0", pending, err)
	}
}

func TestReadOffset(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content *string
		want    int64
		wantErr bool
	}{
		{name: "missing", content: nil, want: 0},
		{name: "empty", content: ptr(""), want: 0},
		{name: "value", content: ptr("1234\n"), want: 1234},
		{name: "garbage", content: ptr("abc"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".offset")
			if tt.content != nil {
				if err := os.WriteFile(path, []byte(*tt.content), 0o600); err != nil {
					t.Fatalf("write: %v", err)
				}
			}
			got, err := readOffset(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("readOffset() err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("readOffset() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWriteOffsetAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spool.jsonl.offset")
	if err := writeOffsetAtomic(path, 42); err != nil {
		t.Fatalf("writeOffsetAtomic: %v", err)
	}
	got, err := readOffset(path)
	if err != nil {
		t.Fatalf("readOffset: %v", err)
	}
	if got != 42 {
		t.Errorf("offset = %d, want 42", got)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind, stat err = %v", err)
	}
}

func ptr(s string) *string { return &s }
