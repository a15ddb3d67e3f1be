package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pagemarkapp/pagemark-host/internal/domain"
	"github.com/pagemarkapp/pagemark-host/internal/store/sqlite"
)

func startTestWatcher(t *testing.T, svc *Service, inbox string) *InboxWatcher {
	t.Helper()
	w, err := NewInboxWatcher(svc, inbox, testLogger())
	if err != nil {
		t.Fatalf("NewInboxWatcher: %v", err)
	}
	w.settleDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		w.Close()
	})
	go w.Start(ctx)
	return w
}

// waitForBooks polls until the library holds want books or the deadline hits.
func waitForBooks(t *testing.T, st *sqlite.Store, want int) []*domain.Book {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		books, err := st.ListBooks(context.Background())
		if err != nil {
			t.Fatalf("ListBooks: %v", err)
		}
		if len(books) >= want {
			return books
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("library never reached %d books", want)
	return nil
}

func TestInboxWatcherImportsSettledFile(t *testing.T) {
	svc, st, _ := newTestLibrary(t)
	inbox := filepath.Join(t.TempDir(), "inbox")
	startTestWatcher(t, svc, inbox)

	path := filepath.Join(inbox, "dropped.epub")
	if err := os.WriteFile(path, makeEPUB(t, "Dropped Book"), 0o644); err != nil {
		t.Fatalf("write inbox file: %v", err)
	}

	books := waitForBooks(t, st, 1)
	if books[0].Title != "Dropped Book" || books[0].Path != path {
		t.Errorf("unexpected imported book: %+v", books[0])
	}
}

func TestInboxWatcherIgnoresOtherFiles(t *testing.T) {
	svc, st, _ := newTestLibrary(t)
	inbox := filepath.Join(t.TempDir(), "inbox")
	startTestWatcher(t, svc, inbox)

	if err := os.WriteFile(filepath.Join(inbox, "notes.txt"), []byte("not a document"), 0o644); err != nil {
		t.Fatalf("write inbox file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(inbox, "real.epub"), makeEPUB(t, "Real"), 0o644); err != nil {
		t.Fatalf("write inbox file: %v", err)
	}

	books := waitForBooks(t, st, 1)
	if len(books) != 1 || books[0].Title != "Real" {
		t.Errorf("books = %+v, want only the epub", books)
	}
}

func TestInboxWatcherSweepsExistingFiles(t *testing.T) {
	svc, st, _ := newTestLibrary(t)
	inbox := filepath.Join(t.TempDir(), "inbox")
	if err := os.MkdirAll(inbox, 0o750); err != nil {
		t.Fatalf("mkdir inbox: %v", err)
	}

	// Already sitting in the inbox before the watcher starts.
	if err := os.WriteFile(filepath.Join(inbox, "preexisting.epub"), makeEPUB(t, "Preexisting"), 0o644); err != nil {
		t.Fatalf("write inbox file: %v", err)
	}

	startTestWatcher(t, svc, inbox)

	books := waitForBooks(t, st, 1)
	if books[0].Title != "Preexisting" {
		t.Errorf("unexpected book: %+v", books[0])
	}
}

func TestInboxWatcherSkipsDuplicatePath(t *testing.T) {
	svc, st, _ := newTestLibrary(t)
	inbox := filepath.Join(t.TempDir(), "inbox")
	w := startTestWatcher(t, svc, inbox)

	path := filepath.Join(inbox, "once.epub")
	if err := os.WriteFile(path, makeEPUB(t, "Once"), 0o644); err != nil {
		t.Fatalf("write inbox file: %v", err)
	}
	waitForBooks(t, st, 1)

	// A later touch of the same path settles again but must not re-import.
	w.startSettling(path)
	time.Sleep(300 * time.Millisecond)

	books, err := st.ListBooks(context.Background())
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if len(books) != 1 {
		t.Errorf("got %d books after re-settle, want 1", len(books))
	}
}
