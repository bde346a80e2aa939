package content

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kalite/kalite/pkg/topictree"
)

type RemoveResult struct {
	Manifest     *topictree.Node
	Detach       topictree.DetachResult
	FilesDeleted int
	FileFailures int
}

// ValidateRemove checks every precondition of Remove without touching anything.
func (m *Manager) ValidateRemove(fileName string) error {
	if fileName == "" {
		return commandErrorf("You must specify a filename.")
	}

	if fileName == m.settings.TopicsFile || filepath.Base(fileName) == m.settings.TopicsFile {
		return commandErrorf("You cannot delete the topic tree (%s) this way. Please specify a content manifest.", m.settings.TopicsFile)
	}

	if _, err := os.Stat(m.manifestPath(fileName)); err != nil {
		return commandErrorf("The file name %q does not exist. Please specify a valid file name.", fileName)
	}

	return nil
}

// Remove undoes the import recorded in the manifest fileName: it detaches
// the subtree from the topic tree, deletes the content files of its videos
// and deletes the manifest. A subtree that is already gone, or video files
// that cannot be deleted, are logged and counted rather than returned.
func (m *Manager) Remove(fileName string) (*RemoveResult, error) {
	if err := m.ValidateRemove(fileName); err != nil {
		return nil, err
	}

	manifestPath := m.manifestPath(fileName)
	m.log.Infof("Deleting content mapped in %q", fileName)

	local, err := readManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	res := &RemoveResult{Manifest: local}
	videos := topictree.Leaves(local, topictree.KindVideo)

	if m.settings.DryRun {
		m.log.Infof("Dry-run: would remove %s (%s) from topic tree", local.Path, local.ID)
		for _, v := range videos {
			m.log.Infof("Dry-run: would delete video %s", v.UniqueFilename)
		}
		m.log.Warn("Dry-run enabled, skipping remove...")
		return res, nil
	}

	// extract local node from topic tree
	res.Detach = m.tree.Detach(local.Path, local.ID)
	switch res.Detach {
	case topictree.Detached:
		if err := m.tree.Save(); err != nil {
			return res, err
		}
		m.log.Infof("Successfully removed %s from topic tree", local.Path)
	default:
		m.log.Errorf("Failed to delete %s from topic tree: %s", local.Path, res.Detach)
	}

	// delete files from content dir
	for _, v := range videos {
		if v.UniqueFilename == "" {
			m.log.Warnf("Video %s has no content file recorded, skipping", v.Path)
			continue
		}

		name := filepath.Join(m.settings.ContentDir, filepath.Base(v.UniqueFilename))
		if err := os.Remove(name); err != nil {
			m.log.WithError(err).Errorf("Failed deleting video %s", v.UniqueFilename)
			res.FileFailures++
			continue
		}

		res.FilesDeleted++
		m.log.Debugf("Deleted video %s", v.UniqueFilename)
	}

	// delete local file map
	if err := os.Remove(manifestPath); err != nil {
		return res, fmt.Errorf("delete manifest %q: %w", manifestPath, err)
	}
	m.log.Infof("Deleted local content map %s", fileName)

	m.log.Infof("Successfully removed content bundle %s (%d files deleted, %d failures)",
		fileName, res.FilesDeleted, res.FileFailures)
	return res, nil
}

func (m *Manager) manifestPath(fileName string) string {
	return filepath.Join(m.settings.LocalContentDir, fileName)
}

func readManifest(name string) (*topictree.Node, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	node := &topictree.Node{}
	if err := json.Unmarshal(data, node); err != nil {
		return nil, fmt.Errorf("decode manifest %q: %w", name, err)
	}
	if node.Path == "" || node.ID == "" {
		return nil, fmt.Errorf("manifest %q records no path or id", name)
	}

	return node, nil
}
