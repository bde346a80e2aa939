package topictree

import (
	"github.com/scylladb/go-set/strset"
)

// Rollup recomputes the denormalized contains and attributions sets of a
// topic from its direct children. Children must already be rolled up, so
// callers fold post-order while building a subtree.
func Rollup(n *Node) {
	contains := strset.New()
	attributions := strset.New()

	for _, ch := range n.Children {
		if ch.Contains != nil {
			contains.Merge(ch.Contains)
		}
		contains.Add(ch.Kind.String())

		if ch.Attribution != "" {
			attributions.Add(ch.Attribution)
		}
		if ch.Attributions != nil {
			attributions.Merge(ch.Attributions)
		}
	}

	n.Contains = contains
	n.Attributions = attributions
}
