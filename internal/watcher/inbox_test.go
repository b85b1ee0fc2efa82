package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type pickupRecorder struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newPickupRecorder() *pickupRecorder {
	return &pickupRecorder{files: make(map[string][]byte)}
}

func (r *pickupRecorder) record(filename string, content []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[filename] = content
}

func (r *pickupRecorder) get(filename string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.files[filename]
	return c, ok
}

func (r *pickupRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

func startInbox(t *testing.T, dir string, exts []string, rec *pickupRecorder) *Inbox {
	t.Helper()
	inbox := NewInbox([]string{dir}, exts, rec.record, WithDebounce(30*time.Millisecond))
	if err := inbox.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(inbox.Stop)
	return inbox
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestInboxPicksUpDroppedFile(t *testing.T) {
	dir := t.TempDir()
	rec := newPickupRecorder()
	startInbox(t, dir, []string{".txt"}, rec)

	path := filepath.Join(dir, "contract.txt")
	if err := os.WriteFile(path, []byte("agreement text"), 0644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { _, ok := rec.get("contract.txt"); return ok })
	content, _ := rec.get("contract.txt")
	if string(content) != "agreement text" {
		t.Errorf("wrong content: %q", content)
	}
	// The inbox is a mailbox: the file is removed after pickup.
	waitFor(t, func() bool { _, err := os.Stat(path); return os.IsNotExist(err) })
}

func TestInboxFiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	rec := newPickupRecorder()
	startInbox(t, dir, []string{".pdf", ".docx"}, rec)

	if err := os.WriteFile(filepath.Join(dir, "notes.tmp"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "real.pdf"), []byte("%PDF"), 0644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { _, ok := rec.get("real.pdf"); return ok })
	if _, ok := rec.get("notes.tmp"); ok {
		t.Error("filtered extension was picked up")
	}
}

func TestInboxDrainsExistingFilesOnStart(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "stranded.txt"), []byte("left over"), 0644); err != nil {
		t.Fatal(err)
	}

	rec := newPickupRecorder()
	startInbox(t, dir, []string{".txt"}, rec)

	waitFor(t, func() bool { _, ok := rec.get("stranded.txt"); return ok })
}

func TestInboxDebouncesMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	rec := newPickupRecorder()
	startInbox(t, dir, []string{".txt"}, rec)

	path := filepath.Join(dir, "slow-copy.txt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for j := 0; j < 5; j++ {
		if _, err := f.WriteString("part\n"); err != nil {
			t.Fatal(err)
		}
		f.Sync()
		time.Sleep(5 * time.Millisecond)
	}
	f.Close()

	waitFor(t, func() bool { return rec.count() == 1 })
	content, _ := rec.get("slow-copy.txt")
	if string(content) != "part\npart\npart\npart\npart\n" {
		t.Errorf("picked up before writes settled: %q", content)
	}
}

func TestInboxRemovedBeforeSettleIsSkipped(t *testing.T) {
	dir := t.TempDir()
	rec := newPickupRecorder()
	startInbox(t, dir, []string{".txt"}, rec)

	path := filepath.Join(dir, "ghost.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	if rec.count() != 0 {
		t.Error("removed file was still picked up")
	}
}
