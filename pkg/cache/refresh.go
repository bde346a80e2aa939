package cache

import (
	"github.com/sirupsen/logrus"

	"github.com/kalite/kalite/pkg/logger"
	"github.com/kalite/kalite/pkg/topictree"
)

const rootName = "topics"

// Counter computes video availability and counts.
type Counter interface {
	StampURLs(video *topictree.Node, force bool)
	CountVideos(topic *topictree.Node, force bool) bool
}

// Refresher keeps the cached video counts and urls of the nodes a page is
// about to render current.
type Refresher struct {
	tree    *topictree.Tree
	counter Counter
	log     *logrus.Entry
}

func New(tree *topictree.Tree, counter Counter) *Refresher {
	return &Refresher{
		tree:    tree,
		counter: counter,
		log:     logger.GetLogger("cache"),
	}
}

// Refresh takes the tree's write lock and refreshes nodes.
func (r *Refresher) Refresh(nodes map[string]*topictree.Node, force bool) error {
	return r.tree.Update(func(tx *topictree.Txn) error {
		r.RefreshTx(tx, nodes, force)
		return nil
	})
}

// RefreshTx refreshes nodes from inside an Update callback. An empty map
// refreshes the root.
func (r *Refresher) RefreshTx(tx *topictree.Txn, nodes map[string]*topictree.Node, force bool) {
	if len(nodes) == 0 {
		nodes = map[string]*topictree.Node{rootName: tx.Root()}
	}

	for name, node := range nodes {
		if node == nil {
			continue
		}
		r.log.Tracef("Refreshing %s (%s) force=%v", name, node.Path, force)

		switch node.Kind {
		case topictree.KindVideo:
			if force || node.URLs == nil {
				if parent := node.Parent(); parent != nil {
					r.recount(parent, true)
				} else {
					r.counter.StampURLs(node, true)
				}
			}

		case topictree.KindTopic:
			hasGrandchildren := node.HasGrandchildren()

			if !force && (!hasGrandchildren || !node.HasCounts()) {
				for _, v := range node.ChildrenOfKind(topictree.KindVideo) {
					r.counter.StampURLs(v, false)
				}
			}

			r.recount(node, force || !hasGrandchildren)
		}
	}
}

func (r *Refresher) recount(node *topictree.Node, force bool) {
	if !force && node.HasCounts() {
		return
	}

	changed := r.counter.CountVideos(node, force)
	if !changed {
		return
	}

	if parent := node.Parent(); parent != nil && parent.HasCounts() {
		r.log.Debugf("Counts changed for %s, invalidating ancestors", node.Path)
		for p := parent; p != nil; p = p.Parent() {
			p.ClearCounts()
		}
	}
}
