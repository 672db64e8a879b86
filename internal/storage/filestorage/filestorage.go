// Package filestorage implements internal/storage.Storage by laying out
// a torrent's files on disk exactly as its metainfo describes, splitting
// and joining reads/writes across file boundaries for multi-file
// torrents.
package filestorage

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/tearfur/transmission/internal/metainfo"
)

type extent struct {
	path   string
	offset int64 // logical offset where this file begins
	length int64
}

// FileStorage is a Storage backed by regular files under a download
// directory, matching the layout metainfo.Info describes.
type FileStorage struct {
	extents []extent
	files   map[string]*os.File
	dir     string
}

// New creates (but does not yet preallocate) the on-disk layout for info
// rooted at dir.
func New(info *metainfo.Info, dir string) (*FileStorage, error) {
	fs, err := NewEmpty(dir)
	if err != nil {
		return nil, err
	}
	if err := fs.Init(info); err != nil {
		return nil, err
	}
	return fs, nil
}

// NewEmpty creates a storage rooted at dir with no known file layout yet,
// for a magnet-link torrent whose metainfo hasn't been downloaded from
// peers. Init must be called once Info becomes available and before any
// ReadAt/WriteAt.
func NewEmpty(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStorage{files: make(map[string]*os.File), dir: dir}, nil
}

// Init lays out info's files under the storage's directory, replacing
// any layout previously set. Safe to call once metadata for a
// magnet-added torrent arrives.
func (fs *FileStorage) Init(info *metainfo.Info) error {
	fs.extents = fs.extents[:0]
	for _, f := range info.Files {
		p := info.DiskPath(fs.dir, f)
		fs.extents = append(fs.extents, extent{path: p, offset: f.Offset, length: f.Length})
	}
	for _, e := range fs.extents {
		if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
			return err
		}
	}
	sort.Slice(fs.extents, func(i, j int) bool { return fs.extents[i].offset < fs.extents[j].offset })
	return nil
}

// Dest returns the download directory this storage was rooted at,
// mirroring the teacher's filestorage.Dest() used by session torrent
// removal to locate files on disk.
func (fs *FileStorage) Dest() string { return fs.dir }

func (fs *FileStorage) fileFor(path string) (*os.File, error) {
	if f, ok := fs.files[path]; ok {
		return f, nil
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	fs.files[path] = f
	return f, nil
}

// ReadAt implements storage.Storage.
func (fs *FileStorage) ReadAt(p []byte, off int64) (int, error) {
	return fs.io(p, off, false)
}

// WriteAt implements storage.Storage.
func (fs *FileStorage) WriteAt(p []byte, off int64) (int, error) {
	return fs.io(p, off, true)
}

func (fs *FileStorage) io(p []byte, off int64, write bool) (int, error) {
	var total int
	for len(p) > 0 {
		e := fs.extentFor(off)
		if e == nil {
			break
		}
		f, err := fs.fileFor(e.path)
		if err != nil {
			return total, err
		}
		localOff := off - e.offset
		n := len(p)
		if int64(n) > e.length-localOff {
			n = int(e.length - localOff)
		}
		var ioErr error
		var done int
		if write {
			done, ioErr = f.WriteAt(p[:n], localOff)
		} else {
			done, ioErr = f.ReadAt(p[:n], localOff)
		}
		total += done
		if ioErr != nil {
			return total, ioErr
		}
		p = p[n:]
		off += int64(n)
	}
	return total, nil
}

func (fs *FileStorage) extentFor(off int64) *extent {
	for i := range fs.extents {
		e := &fs.extents[i]
		if off >= e.offset && off < e.offset+e.length {
			return e
		}
	}
	return nil
}

// Close closes every open file handle.
func (fs *FileStorage) Close() error {
	var firstErr error
	for _, f := range fs.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
