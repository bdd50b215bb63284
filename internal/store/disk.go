package store

import (
	"os"
	"path/filepath"
)

// DiskUsageBytes reports the on-disk footprint of the chunk database and
// the per-dataset index directories. Missing paths contribute 0.
func (s *ChunkStore) DiskUsageBytes() (int64, error) {
	var total int64
	for _, p := range []string{s.opts.DBPath, s.opts.DataDir} {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		n, err := dirSize(p)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
