package content

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/scylladb/go-set/strset"

	"github.com/kalite/kalite/pkg/paths"
	"github.com/kalite/kalite/pkg/topictree"
)

const (
	maxWorkers = 10
	batchSize  = 50

	defaultGracePeriod = 10 * time.Minute
)

type OrphanOptions struct {
	GracePeriod time.Duration
	IgnorePaths []string
}

type OrphanResult struct {
	Removed        uint32
	Ignored        uint32
	Failures       uint32
	ReclaimedBytes uint64
}

// ReferencedStems returns the file stems in the content directory that some
// leaf of the tree owns: its unique filename, or its youtube id for stock
// videos and their thumbnails.
func ReferencedStems(tree *topictree.Tree) *strset.Set {
	stems := strset.New()

	_ = tree.View(func(tx *topictree.Txn) error {
		tx.Root().Walk(func(n *topictree.Node) bool {
			if n.IsTopic() {
				return true
			}
			if n.UniqueFilename != "" {
				stems.Add(stem(n.UniqueFilename))
			} else if n.YoutubeID != "" {
				stems.Add(n.YoutubeID)
			}
			return true
		})
		return nil
	})

	return stems
}

// Orphans removes files from the content directory that no leaf of the tree
// references and that are older than the grace period. Files left behind by
// an interrupted import are the usual source.
func (m *Manager) Orphans(opts OrphanOptions) OrphanResult {
	gracePeriod := defaultGracePeriod
	if opts.GracePeriod > 0 {
		gracePeriod = opts.GracePeriod
	}
	m.log.Debugf("Using grace period: %v", gracePeriod)

	referenced := ReferencedStems(m.tree)
	m.log.Infof("Mapped topic tree to %d referenced content files", referenced.Size())

	localPaths, _ := paths.InFolder(m.settings.ContentDir, true, false, nil)
	localFilePaths := make(map[string]int64, len(localPaths))
	for _, p := range localPaths {
		localFilePaths[p.RealPath] = p.Size
	}
	m.log.Infof("Retrieved %d files from %q", len(localFilePaths), m.settings.ContentDir)

	var (
		wg             sync.WaitGroup
		mu             sync.Mutex
		removedFiles   atomic.Uint32
		ignoredFiles   atomic.Uint32
		removeFailures atomic.Uint32
		reclaimedBytes atomic.Uint64
	)

	processInBatches(localFilePaths, maxWorkers, batchSize, func(localPath string, localPathSize int64) {
		defer wg.Done()

		if referenced.Has(stem(filepath.Base(localPath))) {
			return
		}

		if paths.IsIgnored(localPath, opts.IgnorePaths) {
			mu.Lock()
			m.log.Debugf("File matches ignore list, skipping: %q", localPath)
			mu.Unlock()
			ignoredFiles.Add(1)
			return
		}

		fileInfo, err := os.Stat(localPath)
		if err != nil {
			mu.Lock()
			m.log.WithError(err).Warnf("Could not stat file, skipping: %q", localPath)
			mu.Unlock()
			return
		}

		if time.Since(fileInfo.ModTime()) < gracePeriod {
			mu.Lock()
			m.log.Debugf("File within grace period, skipping: %q", localPath)
			mu.Unlock()
			return
		}

		mu.Lock()
		m.log.Infof("Removing orphan file: %q", localPath)
		mu.Unlock()

		if m.settings.DryRun {
			mu.Lock()
			m.log.Warn("Dry-run enabled, skipping remove...")
			mu.Unlock()
		} else if err := os.Remove(localPath); err != nil {
			mu.Lock()
			m.log.WithError(err).Errorf("Failed removing orphan file")
			mu.Unlock()
			removeFailures.Add(1)
			return
		}

		reclaimedBytes.Add(uint64(localPathSize))
		removedFiles.Add(1)
	}, &wg)

	wg.Wait()

	res := OrphanResult{
		Removed:        removedFiles.Load(),
		Ignored:        ignoredFiles.Load(),
		Failures:       removeFailures.Load(),
		ReclaimedBytes: reclaimedBytes.Load(),
	}

	m.log.WithField("reclaimed_space", humanize.IBytes(res.ReclaimedBytes)).
		Infof("Removed orphans: %d files and %d failures. Ignored %d files", res.Removed, res.Failures, res.Ignored)

	return res
}

// processInBatches processes a map in batches using a worker pool
func processInBatches(items map[string]int64, maxWorkers int, batchSize int,
	processFn func(string, int64), wg *sync.WaitGroup) {

	workerSem := make(chan struct{}, maxWorkers)

	i := 0
	batch := make([]struct {
		key string
		val int64
	}, 0, batchSize)

	for k, v := range items {
		batch = append(batch, struct {
			key string
			val int64
		}{k, v})
		i++

		// when batch is full or all items are accumulated, process the batch
		if len(batch) == batchSize || i == len(items) {
			for _, item := range batch {
				wg.Add(1)

				workerSem <- struct{}{}

				go func(path string, size int64) {
					defer func() {
						<-workerSem
					}()

					processFn(path, size)
				}(item.key, item.val)
			}

			batch = batch[:0]
		}
	}
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
