package allocator

import (
	"os"
	"path/filepath"

	"github.com/tearfur/transmission/internal/metainfo"
)

func (a *Allocator) allocateOne(f metainfo.File) error {
	path := a.Info.DiskPath(a.Dir, f)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()
	return file.Truncate(f.Length)
}
