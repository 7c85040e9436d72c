package gallery

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// MediaStore is the persistence abstraction for uploaded media.
// Stage writes the bytes somewhere invisible; nothing under name changes until
// the returned StagedMedia is committed.
type MediaStore interface {
	Stage(name string, r io.Reader) (StagedMedia, error)
}

// StagedMedia is an upload that has been fully written but not yet published.
// Exactly one of Commit or Discard should be called.
type StagedMedia interface {
	// Media describes the file as it will exist after Commit.
	Media() MediaFile
	// Commit publishes the file, overwriting any existing one with the same name.
	Commit() error
	// Discard drops the staged bytes. It is a no-op after Commit.
	Discard()
}

// DiskMediaStore keeps media as plain files in one directory.
type DiskMediaStore struct {
	dir string
}

// NewDiskMediaStore returns a store rooted at dir. The directory is created on
// first write if it does not exist.
func NewDiskMediaStore(dir string) *DiskMediaStore {
	return &DiskMediaStore{dir: dir}
}

// Stage streams r into a dot-prefixed temp file in the media directory,
// hashing as it goes. name must already be a safe media name (see MediaName).
func (s *DiskMediaStore) Stage(name string, r io.Reader) (StagedMedia, error) {
	if err := validMediaName(name); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: mkdir %s: %w", s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("media: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	fail := func(err error) (StagedMedia, error) {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, err
	}

	hasher := blake3.New()
	n, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		return fail(fmt.Errorf("media: write %s: %w", name, err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("media: sync %s: %w", name, err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("media: close %s: %w", name, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("media: chmod %s: %w", name, err)
	}

	target := filepath.Join(s.dir, name)
	return &stagedFile{
		tmpPath: tmpPath,
		file: MediaFile{
			Name:     name,
			Path:     target,
			Size:     n,
			Checksum: hex.EncodeToString(hasher.Sum(nil)),
		},
	}, nil
}

// stagedFile is a fully written temp file waiting to be renamed over its target.
type stagedFile struct {
	tmpPath string
	file    MediaFile
	done    bool
}

func (f *stagedFile) Media() MediaFile {
	return f.file
}

func (f *stagedFile) Commit() error {
	if f.done {
		return fmt.Errorf("media: %s already committed or discarded", f.file.Name)
	}
	f.done = true
	if err := os.Rename(f.tmpPath, f.file.Path); err != nil {
		os.Remove(f.tmpPath)
		return fmt.Errorf("media: rename %s: %w", f.file.Name, err)
	}
	return nil
}

func (f *stagedFile) Discard() {
	if f.done {
		return
	}
	f.done = true
	os.Remove(f.tmpPath)
}
