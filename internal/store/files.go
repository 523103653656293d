package store

import (
	"database/sql"
	"time"
)

// AccessLevel enumerates File.access_level values.
type AccessLevel string

const (
	AccessPrivate AccessLevel = "private"
	AccessPublic  AccessLevel = "public"
	AccessShared  AccessLevel = "shared"
)

// File is one stored file's metadata; bytes live on disk under DiskPath
// (see internal/filestore).
type File struct {
	ID            int64
	Filename      string
	DiskPath      string
	Size          int64
	MimeType      string
	Checksum      string
	Owner         string
	Access        AccessLevel
	Description   string
	UploadedAt    time.Time
	DownloadCount int
}

// SaveFile inserts file metadata and returns its id.
func (s *Store) SaveFile(f File) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO files(filename, disk_path, size, mime_type, checksum, owner_callsign, access_level, description)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Filename, f.DiskPath, f.Size, f.MimeType, f.Checksum, f.Owner, string(f.Access), f.Description,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetFile returns metadata for file id.
func (s *Store) GetFile(id int64) (File, error) {
	var f File
	var access string
	err := s.db.QueryRow(
		`SELECT id, filename, disk_path, size, mime_type, checksum, owner_callsign, access_level, description, uploaded_at, download_count
		 FROM files WHERE id = ?`, id,
	).Scan(&f.ID, &f.Filename, &f.DiskPath, &f.Size, &f.MimeType, &f.Checksum, &f.Owner, &access, &f.Description, &f.UploadedAt, &f.DownloadCount)
	f.Access = AccessLevel(access)
	return f, err
}

// ListFiles returns files visible to callsign: owned, public, or explicitly
// shared with them.
func (s *Store) ListFiles(callsign string) ([]File, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT f.id, f.filename, f.disk_path, f.size, f.mime_type, f.checksum, f.owner_callsign, f.access_level, f.description, f.uploaded_at, f.download_count
		 FROM files f
		 LEFT JOIN file_shares fs ON fs.file_id = f.id AND fs.shared_with_callsign = ?
		 WHERE f.owner_callsign = ? OR f.access_level = 'public' OR fs.file_id IS NOT NULL
		 ORDER BY f.uploaded_at DESC`,
		callsign, callsign,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		var f File
		var access string
		if err := rows.Scan(&f.ID, &f.Filename, &f.DiskPath, &f.Size, &f.MimeType, &f.Checksum, &f.Owner, &access, &f.Description, &f.UploadedAt, &f.DownloadCount); err != nil {
			return nil, err
		}
		f.Access = AccessLevel(access)
		out = append(out, f)
	}
	return out, rows.Err()
}

// CheckAccess reports whether callsign may access file id: owner, public,
// or an explicit share row exists.
func (s *Store) CheckAccess(id int64, callsign string) (bool, error) {
	var owner, access string
	err := s.db.QueryRow(`SELECT owner_callsign, access_level FROM files WHERE id = ?`, id).Scan(&owner, &access)
	if err != nil {
		return false, err
	}
	if owner == callsign || access == string(AccessPublic) {
		return true, nil
	}
	if access != string(AccessShared) {
		return false, nil
	}
	var exists int
	err = s.db.QueryRow(
		`SELECT 1 FROM file_shares WHERE file_id = ? AND shared_with_callsign = ?`, id, callsign,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ShareFile grants callsign "with" access to file id, verifying ownership
// first and auto-promoting access_level to shared.
func (s *Store) ShareFile(id int64, owner, with string) error {
	var actualOwner string
	if err := s.db.QueryRow(`SELECT owner_callsign FROM files WHERE id = ?`, id).Scan(&actualOwner); err != nil {
		return err
	}
	if actualOwner != owner {
		return sql.ErrNoRows
	}
	if _, err := s.db.Exec(
		`UPDATE files SET access_level = 'shared' WHERE id = ? AND access_level != 'public'`, id,
	); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO file_shares(file_id, shared_with_callsign, shared_by_callsign) VALUES(?, ?, ?)`,
		id, with, owner,
	)
	return err
}

// SetPublic marks file id public, owner-checked.
func (s *Store) SetPublic(id int64, owner string) error {
	res, err := s.db.Exec(`UPDATE files SET access_level = 'public' WHERE id = ? AND owner_callsign = ?`, id, owner)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteFile removes file id, owner-checked. The caller is responsible for
// also removing the on-disk blob (see internal/filestore).
func (s *Store) DeleteFile(id int64, owner string) error {
	res, err := s.db.Exec(`DELETE FROM files WHERE id = ? AND owner_callsign = ?`, id, owner)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IncrementDownloads bumps file id's download counter.
func (s *Store) IncrementDownloads(id int64) error {
	_, err := s.db.Exec(`UPDATE files SET download_count = download_count + 1 WHERE id = ?`, id)
	return err
}

// FileCount returns the number of files owned by callsign.
func (s *Store) FileCount(callsign string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM files WHERE owner_callsign = ?`, callsign).Scan(&n)
	return n, err
}

// TotalFileSize returns the sum of file sizes owned by callsign.
func (s *Store) TotalFileSize(callsign string) (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRow(`SELECT SUM(size) FROM files WHERE owner_callsign = ?`, callsign).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Int64, nil
}
