package archive

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/ghodss/yaml"
)

// CacheFile is written into the archive directory after the first scan.
const CacheFile = ".gotraj_structure.yaml"

// loadCache returns the cached structure of an archive, or nil when there is
// no usable cache. A cache is stale once the set of archive files changes.
func loadCache(path string, files []string) (st *Structure) {
	data, err := os.ReadFile(filepath.Join(path, CacheFile))
	if err != nil {
		return nil
	}
	st = &Structure{}
	if err = yaml.Unmarshal(data, st); err != nil {
		return nil
	}
	cached := slices.Clone(st.Files)
	slices.Sort(cached)
	if !slices.Equal(cached, files) || st.Check() != nil {
		return nil
	}
	st.Path = path
	return
}

// saveCache replaces the cache atomically, since every rank of a run may
// query the archive at the same time.
func saveCache(st *Structure) (err error) {
	var (
		data []byte
		tmp  *os.File
	)
	if data, err = yaml.Marshal(st); err != nil {
		return
	}
	if tmp, err = os.CreateTemp(st.Path, CacheFile+".*"); err != nil {
		return
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return
	}
	if err = tmp.Close(); err != nil {
		return
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return
	}
	return os.Rename(tmp.Name(), filepath.Join(st.Path, CacheFile))
}
