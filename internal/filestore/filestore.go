// Package filestore coordinates file bytes on disk with metadata in the
// relational store, enforcing the per-file and per-owner quotas.
package filestore

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"bbsgatewayd/internal/store"
)

// Quotas, per §3 of the governing specification.
const (
	MaxFileSize    = 100 * 1024       // 100 KiB/file
	MaxFilesPerCS  = 50               // 50 files/owner
	MaxBytesPerCS  = 5 * 1024 * 1024  // 5 MiB/owner
)

var filenamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateFilename enforces the allowed-character and length rules for a
// user-supplied filename.
func ValidateFilename(name string) error {
	if name == "" || len(name) > 128 {
		return fmt.Errorf("filename must be 1-128 characters")
	}
	if !filenamePattern.MatchString(name) {
		return fmt.Errorf("filename may only contain letters, digits, '.', '_', '-'")
	}
	return nil
}

// Store writes blob bytes under rootDir and records metadata via meta.
type Store struct {
	rootDir string
	meta    *store.Store
}

// New creates a file store rooted at rootDir, backed by meta for metadata.
func New(rootDir string, meta *store.Store) (*Store, error) {
	rootDir = strings.TrimSpace(rootDir)
	if rootDir == "" {
		return nil, fmt.Errorf("file store root directory is required")
	}
	if meta == nil {
		return nil, fmt.Errorf("metadata store is required")
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("create file store directory: %w", err)
	}
	slog.Debug("file store initialized", "dir", rootDir)
	return &Store{rootDir: rootDir, meta: meta}, nil
}

// CheckQuota verifies owner has room for an additional file of size bytes,
// per §3's per-file and per-owner quotas.
func (s *Store) CheckQuota(owner string, size int64) error {
	if size > MaxFileSize {
		return fmt.Errorf("file exceeds the %d byte per-file limit", MaxFileSize)
	}
	count, err := s.meta.FileCount(owner)
	if err != nil {
		return err
	}
	if count >= MaxFilesPerCS {
		return fmt.Errorf("you have reached the %d file limit", MaxFilesPerCS)
	}
	total, err := s.meta.TotalFileSize(owner)
	if err != nil {
		return err
	}
	if total+size > MaxBytesPerCS {
		return fmt.Errorf("this upload would exceed your %d byte total quota", MaxBytesPerCS)
	}
	return nil
}

// Save writes data to disk under a fresh UUID name and persists metadata,
// enforcing quotas first.
func (s *Store) Save(owner, filename, mimeType, description string, access store.AccessLevel, data []byte) (store.File, error) {
	if err := ValidateFilename(filename); err != nil {
		return store.File{}, err
	}
	if err := s.CheckQuota(owner, int64(len(data))); err != nil {
		return store.File{}, err
	}

	diskName := uuid.NewString()
	finalPath := filepath.Join(s.rootDir, diskName)

	tempFile, err := os.CreateTemp(s.rootDir, ".upload-*")
	if err != nil {
		return store.File{}, fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	_, copyErr := io.Copy(tempFile, strings.NewReader(string(data)))
	closeErr := tempFile.Close()
	if copyErr != nil {
		_ = os.Remove(tempPath)
		return store.File{}, fmt.Errorf("write file bytes: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tempPath)
		return store.File{}, fmt.Errorf("close temp file: %w", closeErr)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return store.File{}, fmt.Errorf("move file into place: %w", err)
	}

	sum := md5.Sum(data)
	f := store.File{
		Filename:    filename,
		DiskPath:    diskName,
		Size:        int64(len(data)),
		MimeType:    mimeType,
		Checksum:    hex.EncodeToString(sum[:]),
		Owner:       owner,
		Access:      access,
		Description: description,
	}
	id, err := s.meta.SaveFile(f)
	if err != nil {
		_ = os.Remove(finalPath)
		return store.File{}, err
	}
	f.ID = id
	slog.Info("file stored", "file_id", id, "owner", owner, "name", filename, "size", f.Size)
	return f, nil
}

// Open resolves file metadata and returns its bytes, verifying the stored
// checksum still matches (per P7, "download verifies it before increment").
func (s *Store) Open(id int64) (store.File, []byte, error) {
	f, err := s.meta.GetFile(id)
	if err != nil {
		return store.File{}, nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.rootDir, f.DiskPath))
	if err != nil {
		slog.Error("file open failed", "file_id", id, "err", err)
		return store.File{}, nil, fmt.Errorf("read file bytes: %w", err)
	}
	sum := md5.Sum(data)
	if hex.EncodeToString(sum[:]) != f.Checksum {
		return store.File{}, nil, fmt.Errorf("stored checksum mismatch for file %d", id)
	}
	return f, data, nil
}

// Download returns a file's bytes to a verified caller and increments its
// download counter.
func (s *Store) Download(id int64, callsign string) (store.File, []byte, error) {
	ok, err := s.meta.CheckAccess(id, callsign)
	if err != nil {
		return store.File{}, nil, err
	}
	if !ok {
		return store.File{}, nil, fmt.Errorf("access denied")
	}
	f, data, err := s.Open(id)
	if err != nil {
		return store.File{}, nil, err
	}
	if err := s.meta.IncrementDownloads(id); err != nil {
		return store.File{}, nil, err
	}
	return f, data, nil
}

// Delete removes a file's bytes and metadata, owner-checked.
func (s *Store) Delete(id int64, owner string) error {
	f, err := s.meta.GetFile(id)
	if err != nil {
		return err
	}
	if err := s.meta.DeleteFile(id, owner); err != nil {
		return err
	}
	_ = os.Remove(filepath.Join(s.rootDir, f.DiskPath))
	return nil
}
