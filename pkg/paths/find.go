package paths

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/kalite/kalite/pkg/logger"
)

/* Structs */

type Path struct {
	Path         string
	RealPath     string
	FileName     string
	Directory    string
	IsDir        bool
	Size         int64
	ModifiedTime time.Time
}

/* Types */

type callbackAllowed func(string) *string

/* Vars */

var (
	log = logger.GetLogger("paths")
)

/* Public */

// InFolder walks folder concurrently and returns every entry below it
// (folder itself excluded) together with the total size of the entries.
func InFolder(folder string, includeFiles bool, includeFolders bool, acceptFn callbackAllowed) ([]Path, uint64) {
	var paths []Path
	var size uint64 = 0
	var mutex sync.Mutex

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.WithError(err).Warnf("Failed walking %s", path)
			return nil
		}

		if filepath.Clean(path) == filepath.Clean(folder) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			log.WithError(err).Errorf("Failed to get file info for %s", path)
			return nil
		}

		processEntry(path, info, includeFolders, includeFiles, acceptFn, &paths, &size, &mutex)
		return nil
	})
	if err != nil {
		log.WithError(err).Errorf("Failed to retrieve paths from %s", folder)
	}

	return paths, size
}

// ListDir returns the immediate subdirectories and files of dir, each sorted by name.
func ListDir(dir string) (dirs []Path, files []Path, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read directory %q: %w", dir, err)
	}

	for _, entry := range entries {
		entryPath := filepath.Join(dir, entry.Name())

		// follow symlinks so linked content is treated like the real thing
		info, err := os.Stat(entryPath)
		if err != nil {
			log.WithError(err).Warnf("Failed to stat %s, skipping", entryPath)
			continue
		}

		p := Path{
			Path:         entryPath,
			RealPath:     entryPath,
			FileName:     entry.Name(),
			Directory:    dir,
			IsDir:        info.IsDir(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime(),
		}

		if p.IsDir {
			dirs = append(dirs, p)
		} else if info.Mode().IsRegular() {
			files = append(files, p)
		}
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].FileName < dirs[j].FileName })
	sort.Slice(files, func(i, j int) bool { return files[i].FileName < files[j].FileName })

	return dirs, files, nil
}

// IsIgnored reports whether path lies under any of the ignore prefixes.
func IsIgnored(path string, ignorePaths []string) bool {
	for _, ignore := range ignorePaths {
		if ignore != "" && strings.HasPrefix(path, ignore) {
			return true
		}
	}
	return false
}

func IsDirEmpty(name string) (bool, error) {
	f, err := os.Open(name)
	if err != nil {
		return false, fmt.Errorf("open directory: %w", err)
	}
	defer f.Close()

	if _, err = f.Readdirnames(1); err == io.EOF {
		return true, nil
	} else if err != nil {
		return false, fmt.Errorf("read directory: %w", err)
	}

	return false, nil
}

/* Private */

// processEntry handles a single file/directory entry
func processEntry(path string, info os.FileInfo, includeFolders bool, includeFiles bool,
	acceptFn callbackAllowed, paths *[]Path, size *uint64, mutex *sync.Mutex) bool {

	if !includeFiles && !info.IsDir() {
		log.Tracef("Skipping file: %s", path)
		return false
	}

	if !includeFolders && info.IsDir() {
		log.Tracef("Skipping folder: %s", path)
		return false
	}

	realPath := path
	finalPath := path
	if acceptFn != nil {
		if acceptedPath := acceptFn(path); acceptedPath == nil {
			log.Tracef("Skipping rejected path: %s", path)
			return false
		} else {
			finalPath = *acceptedPath
		}
	}

	foundPath := Path{
		Path:         finalPath,
		RealPath:     realPath,
		FileName:     info.Name(),
		Directory:    filepath.Dir(path),
		IsDir:        info.IsDir(),
		Size:         info.Size(),
		ModifiedTime: info.ModTime(),
	}

	mutex.Lock()
	*paths = append(*paths, foundPath)
	*size += uint64(info.Size())
	mutex.Unlock()

	return true
}
