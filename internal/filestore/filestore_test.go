package filestore

import (
	"testing"

	"bbsgatewayd/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	meta, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { meta.Close() })

	s, err := New(t.TempDir(), meta)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestSaveOpenRoundTrip(t *testing.T) {
	s := newTestStore(t)

	f, err := s.Save("W2ASM", "notes.txt", "text/plain", "", store.AccessPrivate, []byte("hello world"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if f.ID == 0 {
		t.Fatal("expected non-zero id")
	}

	got, data, err := s.Open(f.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("data = %q", data)
	}
	if got.Checksum != f.Checksum {
		t.Errorf("checksum mismatch: %q vs %q", got.Checksum, f.Checksum)
	}
}

func TestValidateFilenameRejectsPathSeparators(t *testing.T) {
	cases := []string{"../etc/passwd", "a/b.txt", "", string(make([]byte, 200))}
	for _, name := range cases {
		if err := ValidateFilename(name); err == nil {
			t.Errorf("ValidateFilename(%q) = nil, want error", name)
		}
	}
}

func TestCheckQuotaRejectsOversizeFile(t *testing.T) {
	s := newTestStore(t)
	if err := s.CheckQuota("W2ASM", MaxFileSize+1); err == nil {
		t.Fatal("expected quota error for oversize file")
	}
}

func TestCheckQuotaRejectsTooManyFiles(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < MaxFilesPerCS; i++ {
		if _, err := s.Save("W2ASM", "f.txt", "text/plain", "", store.AccessPrivate, []byte("x")); err != nil {
			t.Fatalf("Save iteration %d: %v", i, err)
		}
	}
	if err := s.CheckQuota("W2ASM", 1); err == nil {
		t.Fatal("expected file-count quota error after reaching the limit")
	}
}

func TestDownloadDeniesPrivateFileToNonOwner(t *testing.T) {
	s := newTestStore(t)
	f, err := s.Save("W2ASM", "secret.txt", "text/plain", "", store.AccessPrivate, []byte("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, _, err := s.Download(f.ID, "K0ASM"); err == nil {
		t.Fatal("expected access denied for non-owner of a private file")
	}
	if _, _, err := s.Download(f.ID, "W2ASM"); err != nil {
		t.Fatalf("owner Download: %v", err)
	}
}

func TestDeleteRemovesMetadataAndBytes(t *testing.T) {
	s := newTestStore(t)
	f, err := s.Save("W2ASM", "temp.txt", "text/plain", "", store.AccessPrivate, []byte("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete(f.ID, "W2ASM"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := s.Open(f.ID); err == nil {
		t.Fatal("expected Open to fail after Delete")
	}
}
