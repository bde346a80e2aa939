package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalite/kalite/pkg/topictree"
)

type countCall struct {
	path  string
	force bool
}

type fakeCounter struct {
	changed bool
	counts  []countCall
	stamps  []countCall
}

func (f *fakeCounter) StampURLs(video *topictree.Node, force bool) {
	f.stamps = append(f.stamps, countCall{video.Path, force})
	if video.URLs == nil || force {
		video.URLs = map[string]topictree.VideoURL{"default": {}}
	}
}

func (f *fakeCounter) CountVideos(topic *topictree.Node, force bool) bool {
	f.counts = append(f.counts, countCall{topic.Path, force})
	topic.SetCounts(1, 1)
	return f.changed
}

func counts(local, known int) (*int, *int) {
	return &local, &known
}

// root / math (counts) / algebra (counts) / {v1, e1}
func testTree(t *testing.T) (*topictree.Tree, map[string]*topictree.Node) {
	t.Helper()

	v1 := &topictree.Node{Kind: topictree.KindVideo, ID: "v1", Path: "/math/algebra/v1/"}
	e1 := &topictree.Node{Kind: topictree.KindExercise, ID: "e1", Path: "/math/algebra/e1/"}
	algebra := &topictree.Node{Kind: topictree.KindTopic, ID: "algebra", Path: "/math/algebra/", Children: []*topictree.Node{v1, e1}}
	algebra.NVideosLocal, algebra.NVideosKnown = counts(0, 1)
	math := &topictree.Node{Kind: topictree.KindTopic, ID: "math", Path: "/math/", Children: []*topictree.Node{algebra}}
	math.NVideosLocal, math.NVideosKnown = counts(0, 1)
	root := &topictree.Node{Kind: topictree.KindTopic, ID: "root", Path: "/", Children: []*topictree.Node{math}}
	root.NVideosLocal, root.NVideosKnown = counts(0, 1)

	tree := topictree.New(root, "")
	return tree, map[string]*topictree.Node{
		"root": root, "math": math, "algebra": algebra, "v1": v1, "e1": e1,
	}
}

func TestRefresh_TopicWithoutCountsRecomputes(t *testing.T) {
	tree, n := testTree(t)
	n["math"].ClearCounts()

	fc := &fakeCounter{}
	require.NoError(t, New(tree, fc).Refresh(map[string]*topictree.Node{"topic": n["math"]}, false))

	assert.Equal(t, []countCall{{"/math/", false}}, fc.counts)
	assert.True(t, n["math"].HasCounts())
}

func TestRefresh_TopicWithCountsAndGrandchildrenIsCached(t *testing.T) {
	tree, n := testTree(t)

	fc := &fakeCounter{}
	require.NoError(t, New(tree, fc).Refresh(map[string]*topictree.Node{"topic": n["math"]}, false))

	assert.Empty(t, fc.counts)
	assert.Empty(t, fc.stamps)
}

func TestRefresh_LeafTopicAlwaysRecounts(t *testing.T) {
	tree, n := testTree(t)

	fc := &fakeCounter{}
	require.NoError(t, New(tree, fc).Refresh(map[string]*topictree.Node{"topic": n["algebra"]}, false))

	assert.Equal(t, []countCall{{"/math/algebra/v1/", false}}, fc.stamps)
	assert.Equal(t, []countCall{{"/math/algebra/", true}}, fc.counts)
}

func TestRefresh_ForcedTopicRecounts(t *testing.T) {
	tree, n := testTree(t)

	fc := &fakeCounter{}
	require.NoError(t, New(tree, fc).Refresh(map[string]*topictree.Node{"topic": n["math"]}, true))

	assert.Empty(t, fc.stamps)
	assert.Equal(t, []countCall{{"/math/", true}}, fc.counts)
}

func TestRefresh_ChangeInvalidatesAncestors(t *testing.T) {
	tree, n := testTree(t)

	fc := &fakeCounter{changed: true}
	require.NoError(t, New(tree, fc).Refresh(map[string]*topictree.Node{"topic": n["algebra"]}, false))

	assert.True(t, n["algebra"].HasCounts())
	assert.False(t, n["math"].HasCounts())
	assert.False(t, n["root"].HasCounts())
}

func TestRefresh_NoChangeKeepsAncestors(t *testing.T) {
	tree, n := testTree(t)

	fc := &fakeCounter{}
	require.NoError(t, New(tree, fc).Refresh(map[string]*topictree.Node{"topic": n["algebra"]}, false))

	assert.True(t, n["math"].HasCounts())
	assert.True(t, n["root"].HasCounts())
}

func TestRefresh_VideoRecountsParent(t *testing.T) {
	tree, n := testTree(t)

	fc := &fakeCounter{}
	r := New(tree, fc)
	require.NoError(t, r.Refresh(map[string]*topictree.Node{"video": n["v1"]}, false))
	assert.Equal(t, []countCall{{"/math/algebra/", true}}, fc.counts)

	// stamped now, so only a forced refresh recounts
	n["v1"].URLs = map[string]topictree.VideoURL{}
	fc.counts = nil
	require.NoError(t, r.Refresh(map[string]*topictree.Node{"video": n["v1"]}, false))
	assert.Empty(t, fc.counts)

	require.NoError(t, r.Refresh(map[string]*topictree.Node{"video": n["v1"]}, true))
	assert.Equal(t, []countCall{{"/math/algebra/", true}}, fc.counts)
}

func TestRefresh_DefaultsToRoot(t *testing.T) {
	tree, n := testTree(t)
	n["root"].ClearCounts()

	fc := &fakeCounter{}
	require.NoError(t, New(tree, fc).Refresh(nil, false))

	assert.Equal(t, []countCall{{"/", false}}, fc.counts)
}

func TestRefresh_ExerciseIsIgnored(t *testing.T) {
	tree, n := testTree(t)

	fc := &fakeCounter{}
	require.NoError(t, New(tree, fc).Refresh(map[string]*topictree.Node{"exercise": n["e1"]}, true))

	assert.Empty(t, fc.counts)
	assert.Empty(t, fc.stamps)
}
