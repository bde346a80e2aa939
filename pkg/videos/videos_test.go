package videos

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalite/kalite/pkg/topictree"
)

func contentDir(t *testing.T, names ...string) string {
	t.Helper()

	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	return dir
}

func video(id string) *topictree.Node {
	return &topictree.Node{Kind: topictree.KindVideo, ID: id, YoutubeID: id, Path: "/t/" + id + "/"}
}

func TestStampURLs(t *testing.T) {
	dir := contentDir(t, "abc.mp4", "abc.png", "local.webm")
	s := NewStamper(dir, "/content/", "http://backup.example/%s.mp4")

	onDisk := video("abc")
	s.StampURLs(onDisk, false)
	assert.True(t, onDisk.OnDisk)
	assert.True(t, onDisk.Available)
	assert.Equal(t, topictree.VideoURL{
		OnDisk:       true,
		StreamURL:    "/content/abc.mp4",
		ThumbnailURL: "/content/abc.png",
	}, onDisk.URLs["default"])

	imported := video("local")
	imported.UniqueFilename = "local.webm"
	s.StampURLs(imported, false)
	assert.True(t, imported.OnDisk)
	assert.Equal(t, "/content/local.webm", imported.URLs["default"].StreamURL)

	missing := video("zzz")
	s.StampURLs(missing, false)
	assert.False(t, missing.OnDisk)
	assert.True(t, missing.Available)
	assert.Equal(t, "http://backup.example/zzz.mp4", missing.URLs["default"].StreamURL)

	noBackup := NewStamper(dir, "/content/", "")
	missing = video("zzz")
	noBackup.StampURLs(missing, false)
	assert.False(t, missing.Available)
	assert.NotNil(t, missing.URLs)
}

func TestStampURLsOnlyWhenForcedOrMissing(t *testing.T) {
	dir := contentDir(t)
	s := NewStamper(dir, "/content/", "")

	v := video("abc")
	s.StampURLs(v, false)
	assert.False(t, v.OnDisk)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc.mp4"), []byte("x"), 0o644))
	s.Rescan()

	s.StampURLs(v, false)
	assert.False(t, v.OnDisk, "already stamped")

	s.StampURLs(v, true)
	assert.True(t, v.OnDisk)
}

func TestCountVideos(t *testing.T) {
	dir := contentDir(t, "a.mp4", "c.mp4")
	s := NewStamper(dir, "/content/", "")

	inner := &topictree.Node{
		Kind:     topictree.KindTopic,
		Path:     "/t/inner/",
		Children: []*topictree.Node{video("c"), video("d")},
	}
	topic := &topictree.Node{
		Kind: topictree.KindTopic,
		Path: "/t/",
		Children: []*topictree.Node{
			inner,
			video("a"),
			video("b"),
			{Kind: topictree.KindExercise, ID: "e"},
		},
	}

	changed := s.CountVideos(topic, false)
	assert.False(t, changed, "no previous counts")
	assert.Equal(t, 2, *topic.NVideosLocal)
	assert.Equal(t, 4, *topic.NVideosKnown)
	assert.True(t, topic.Available)
	assert.Equal(t, 1, *inner.NVideosLocal)
	assert.Equal(t, 2, *inner.NVideosKnown)

	// nothing changed on disk
	assert.False(t, s.CountVideos(topic, true))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "d.mp4"), []byte("x"), 0o644))
	s.Rescan()

	// cached child counts are reused unless forced
	assert.False(t, s.CountVideos(topic, false))
	assert.Equal(t, 2, *topic.NVideosLocal)

	assert.True(t, s.CountVideos(topic, true))
	assert.Equal(t, 3, *topic.NVideosLocal)
	assert.Equal(t, 2, *inner.NVideosLocal)
}
