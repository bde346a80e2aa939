package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/scylladb/go-set/strset"

	"github.com/kalite/kalite/pkg/expression"
	"github.com/kalite/kalite/pkg/paths"
	"github.com/kalite/kalite/pkg/topictree"
)

type AddOptions struct {
	// Location is the directory holding the bundle.
	Location string
	// ParentPath must already resolve to a topic in the tree.
	ParentPath string
	Copy       bool
	Move       bool
	// FileName names the manifest written to the local content directory.
	FileName string
	Entity   string
	License  string
}

type AddResult struct {
	Node         *topictree.Node
	Updated      bool
	ManifestPath string
	Files        int
	Bytes        uint64
	Skipped      int
}

type plannedTransfer struct {
	src  string
	dst  string
	size int64
}

type importPlan struct {
	policy      Policy
	attribution string
	transfers   []plannedTransfer
	reserved    *strset.Set
	onDisk      *strset.Set
	skipped     int
}

// ValidateAdd checks every precondition of Add without touching anything.
func (m *Manager) ValidateAdd(opts AddOptions) error {
	if opts.FileName == "" {
		return commandErrorf("You must specify a filename.")
	}

	info, err := os.Stat(opts.Location)
	switch {
	case opts.Location == "" || os.IsNotExist(err):
		return commandErrorf("The location given: %q does not exist on your computer. Please enter a valid directory.", opts.Location)
	case err != nil:
		return commandErrorf("The location given: %q could not be read: %v", opts.Location, err)
	case !info.IsDir():
		return commandErrorf("The location given: %q is not a directory. Please enter a valid directory.", opts.Location)
	}

	if opts.ParentPath == "" {
		return commandErrorf("You must specify a parent path to insert/update the new node in the topic tree.")
	}
	parent := m.tree.Lookup(opts.ParentPath)
	if parent == nil {
		return commandErrorf("The base path: %q does not exist in the current topic tree. Please enter a valid parent path.", opts.ParentPath)
	}
	if !parent.IsTopic() {
		return commandErrorf("The base path: %q is a %s, not a topic. Please enter a valid parent path.", opts.ParentPath, parent.Kind)
	}

	if opts.Copy == opts.Move {
		return commandErrorf("You must specify one flag to copy content (--copy) or move content (--move)")
	}

	return nil
}

// Add maps the directory at opts.Location to a topic subtree, transfers its
// files into the content directory under unique names, writes the manifest
// and merges the subtree into the topic tree. Nothing is mutated when
// validation or planning fails.
func (m *Manager) Add(ctx context.Context, opts AddOptions) (*AddResult, error) {
	if err := m.ValidateAdd(opts); err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(m.settings.LocalContentDir, opts.FileName)
	if _, err := os.Stat(manifestPath); err == nil {
		m.log.Info("Overwriting...")
	}

	if empty, err := paths.IsDirEmpty(opts.Location); err == nil && empty {
		m.log.Warnf("Directory %s is empty, importing an empty topic", opts.Location)
	}

	parentPath := topictree.NormalizePath(opts.ParentPath)
	m.log.Infof("Compiling data from %s for insertion to %s ...", opts.Location, parentPath)

	attribution := Attribution(opts.Location)
	licenses := map[string]topictree.License{
		attribution: {Entity: opts.Entity, License: opts.License},
	}

	plan := &importPlan{
		policy:      PolicyCopy,
		attribution: attribution,
		reserved:    strset.New(),
	}
	if opts.Move {
		plan.policy = PolicyMove
	}

	node, err := m.buildTopic(ctx, plan, opts.Location, parentPath)
	if err != nil {
		return nil, fmt.Errorf("map %q: %w", opts.Location, err)
	}

	res := &AddResult{
		Node:         node,
		ManifestPath: manifestPath,
		Skipped:      plan.skipped,
	}

	if m.settings.DryRun {
		for _, tr := range plan.transfers {
			m.log.Infof("Dry-run: would %s %q to %q", plan.policy, tr.src, tr.dst)
			res.Files++
			res.Bytes += uint64(tr.size)
		}
		m.log.Warn("Dry-run enabled, skipping manifest and topic tree update...")
		return res, nil
	}

	if err := os.MkdirAll(m.settings.ContentDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure content directory: %w", err)
	}

	for _, tr := range plan.transfers {
		if err := plan.policy.transfer(tr.src, tr.dst); err != nil {
			return res, fmt.Errorf("%s %q: %w", plan.policy, tr.src, err)
		}
		res.Files++
		res.Bytes += uint64(tr.size)
		m.log.Debugf("%s file %s to local content directory (%s)", transferVerb(plan.policy), filepath.Base(tr.dst),
			humanize.IBytes(uint64(tr.size)))
	}

	data, err := json.MarshalIndent(node, "", "    ")
	if err != nil {
		return res, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := topictree.WriteFileAtomic(manifestPath, data); err != nil {
		return res, fmt.Errorf("write manifest: %w", err)
	}
	m.log.Infof("Wrote output to %s", manifestPath)

	res.Updated, err = m.tree.Insert(node, parentPath, licenses)
	if err != nil {
		return res, fmt.Errorf("insert into topic tree: %w", err)
	}

	if err := m.tree.Save(); err != nil {
		return res, err
	}

	m.log.WithField("transferred", humanize.IBytes(res.Bytes)).
		Infof("Successfully added content bundle %s (%d files, %d skipped)", opts.Location, res.Files, res.Skipped)
	return res, nil
}

// buildTopic maps dir to a topic node: subdirectories first (sorted), then
// files, then the rollup fold over the finished children.
func (m *Manager) buildTopic(ctx context.Context, plan *importPlan, dir string, parentPath string) (*topictree.Node, error) {
	baseName := m.normalizer.Basename(topictree.TrimSlash(dir))
	topicSlug := Slugify(baseName)
	if topicSlug == "" {
		return nil, fmt.Errorf("cannot derive a slug from directory name %q", filepath.Base(dir))
	}
	currentPath := topictree.AddSlash(parentPath + topicSlug)

	node := &topictree.Node{
		Kind:        topictree.KindTopic,
		Attribution: plan.attribution,
		Path:        currentPath,
		ID:          topicSlug,
		Title:       HumanizeName(baseName),
		Slug:        topicSlug,
		ParentID:    lastID(parentPath),
		AncestorIDs: ancestorIDs(parentPath),
		Children:    []*topictree.Node{},
	}

	dirs, files, err := paths.ListDir(dir)
	if err != nil {
		return nil, err
	}

	for _, d := range dirs {
		child, err := m.buildTopic(ctx, plan, d.Path, currentPath)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	for _, f := range files {
		leaf, err := m.buildLeaf(ctx, plan, f, currentPath, topicSlug)
		if err != nil {
			return nil, err
		}
		if leaf != nil {
			node.Children = append(node.Children, leaf)
		}
	}

	topictree.Rollup(node)
	return node, nil
}

// buildLeaf maps a single file. It returns nil for files that are ignored or
// have no known kind.
func (m *Manager) buildLeaf(ctx context.Context, plan *importPlan, f paths.Path, currentPath string, parentID string) (*topictree.Node, error) {
	name := m.normalizer.Basename(f.FileName)
	stem, ext := splitExt(name)
	kind, ok := m.classifier.KindByExtension(name)

	ignored, reason, err := expression.CheckFileSingleMatchWithReason(ctx, expression.File{
		Name:         f.FileName,
		Ext:          ext,
		Dir:          f.Directory,
		Kind:         kindName(kind, ok),
		Size:         f.Size,
		ModifiedTime: f.ModifiedTime,
	}, m.ignore)
	if err != nil {
		return nil, fmt.Errorf("evaluate ignore expressions for %q: %w", f.Path, err)
	}
	if ignored {
		m.log.Debugf("Ignoring %q (matched %q)", f.Path, reason)
		plan.skipped++
		return nil, nil
	}

	if !ok {
		m.log.Warnf("No content kind for extension %q, skipping: %q", ext, f.Path)
		plan.skipped++
		return nil, nil
	}

	fileSlug := Slugify(stem)
	if fileSlug == "" {
		m.log.Warnf("No slug can be derived from file name, skipping: %q", f.Path)
		plan.skipped++
		return nil, nil
	}

	leafPath := topictree.AddSlash(currentPath + fileSlug)

	// a re-import overwrites the file the existing leaf already owns
	uniqueFilename := m.reusableFilename(plan, leafPath, ext)
	if uniqueFilename == "" {
		uniqueName, err := m.uniqueFilename(plan, fileSlug)
		if err != nil {
			return nil, err
		}
		uniqueFilename = uniqueName + ext
	}

	plan.transfers = append(plan.transfers, plannedTransfer{
		src:  f.Path,
		dst:  filepath.Join(m.settings.ContentDir, uniqueFilename),
		size: f.Size,
	})

	return &topictree.Node{
		Kind:           kind,
		YoutubeID:      fileSlug,
		ID:             fileSlug,
		Title:          HumanizeName(stem),
		Path:           leafPath,
		ContentType:    ext,
		AncestorIDs:    ancestorIDs(currentPath),
		Slug:           fileSlug,
		ParentID:       parentID,
		UniqueFilename: uniqueFilename,
		Attribution:    plan.attribution,
	}, nil
}

// reusableFilename returns the content file of the leaf already at leafPath
// when it has the same extension and no other file of this import claimed it.
func (m *Manager) reusableFilename(plan *importPlan, leafPath string, ext string) string {
	existing := m.tree.Lookup(leafPath)
	if existing == nil || existing.UniqueFilename == "" {
		return ""
	}

	existingStem, existingExt := splitExt(existing.UniqueFilename)
	if existingExt != ext || plan.reserved.Has(existingStem) {
		return ""
	}

	plan.reserved.Add(existingStem)
	return existing.UniqueFilename
}

// uniqueFilename returns name, or name suffixed with the smallest integer
// from 1 up, such that no file in the content directory has that stem and
// no earlier file of this import reserved it.
func (m *Manager) uniqueFilename(plan *importPlan, name string) (string, error) {
	candidate := name
	for i := 1; ; i++ {
		taken, err := m.stemTaken(plan, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			plan.reserved.Add(candidate)
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", name, i)
	}
}

func (m *Manager) stemTaken(plan *importPlan, stem string) (bool, error) {
	if plan.reserved.Has(stem) {
		return true, nil
	}

	if plan.onDisk == nil {
		stems, err := contentStems(m.settings.ContentDir)
		if err != nil {
			return false, err
		}
		plan.onDisk = stems
	}
	return plan.onDisk.Has(stem), nil
}

// contentStems lists every prefix of an entry name in dir that ends before a
// dot, so "clip.en.vtt" claims both "clip" and "clip.en".
func contentStems(dir string) (*strset.Set, error) {
	stems := strset.New()

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return stems, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read content directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		for i := 0; i < len(name); i++ {
			if name[i] == '.' {
				stems.Add(name[:i])
			}
		}
	}
	return stems, nil
}

func kindName(kind topictree.Kind, ok bool) string {
	if !ok {
		return ""
	}
	return kind.String()
}

func transferVerb(p Policy) string {
	if p == PolicyMove {
		return "Moved"
	}
	return "Copied"
}

// Attribution returns the attribution key an import of location records.
func Attribution(location string) string {
	return strings.TrimSpace(filepath.Base(filepath.Clean(location)))
}
