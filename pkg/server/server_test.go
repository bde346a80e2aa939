package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalite/kalite/pkg/cache"
	"github.com/kalite/kalite/pkg/topictree"
	"github.com/kalite/kalite/pkg/videos"
)

const testTree = `{
    "kind": "Topic", "id": "root", "slug": "", "title": "Khan Academy", "path": "/",
    "children": [
        {
            "kind": "Topic", "id": "math", "slug": "math", "title": "Math", "path": "/math/",
            "description": "<p>All of <b>math</b></p>",
            "children": [
                {
                    "kind": "Topic", "id": "addition", "slug": "addition", "title": "Addition", "path": "/math/addition/",
                    "children": [
                        {"kind": "Video", "id": "v1", "slug": "adding", "title": "Adding numbers", "path": "/math/addition/adding/", "youtube_id": "v1"},
                        {"kind": "Video", "id": "v2", "slug": "carrying", "title": "Carrying", "path": "/math/addition/carrying/", "youtube_id": "v2"},
                        {"kind": "Exercise", "id": "e1", "slug": "add-1", "title": "Addition 1", "path": "/math/addition/add-1/"}
                    ]
                },
                {"kind": "Topic", "id": "secret", "slug": "secret", "title": "Secret", "path": "/math/secret/", "hide": true, "children": []}
            ]
        }
    ]
}`

type fixture struct {
	tree       *topictree.Tree
	contentDir string
	server     *Server
	handler    http.Handler
}

func newFixture(t *testing.T, backup string) *fixture {
	t.Helper()

	dir := t.TempDir()
	topicsFile := filepath.Join(dir, "topics.json")
	require.NoError(t, os.WriteFile(topicsFile, []byte(testTree), 0o644))

	contentDir := filepath.Join(dir, "content")
	require.NoError(t, os.MkdirAll(contentDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, "v1.mp4"), []byte("x"), 0o644))

	tree, err := topictree.Load(topicsFile)
	require.NoError(t, err)

	stamper := videos.NewStamper(contentDir, "/content/", backup)
	srv := New(tree, cache.New(tree, stamper), Options{BackupVideos: stamper.HasBackup(), Indexer: stamper})

	return &fixture{tree: tree, contentDir: contentDir, server: srv, handler: srv.Router()}
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHomepage(t *testing.T) {
	f := newFixture(t, "")

	w := f.get(t, "/")
	require.Equal(t, http.StatusOK, w.Code)

	var ctx TopicContext
	decode(t, w, &ctx)
	assert.Equal(t, "Home", ctx.Title)
	require.Len(t, ctx.Topics, 1)
	assert.Equal(t, "/math/", ctx.Topics[0].Path)
	require.NotNil(t, ctx.Topics[0].NVideosLocal)
	assert.Equal(t, 1, *ctx.Topics[0].NVideosLocal)
	assert.Equal(t, 2, *ctx.Topics[0].NVideosKnown)
	assert.False(t, ctx.BackupVidsAvailable)
}

func TestTopicPage(t *testing.T) {
	f := newFixture(t, "")

	w := f.get(t, "/topics/math/")
	require.Equal(t, http.StatusOK, w.Code)

	var ctx TopicContext
	decode(t, w, &ctx)
	assert.Equal(t, "Math", ctx.Title)
	assert.Equal(t, "All of math", ctx.Description)
	require.Len(t, ctx.Topics, 1, "hidden topics are not listed")
	assert.Equal(t, "Addition", ctx.Topics[0].Title)
	assert.Empty(t, ctx.Videos)

	w = f.get(t, "/topics/math/addition")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &ctx)
	assert.Len(t, ctx.Videos, 2)
	assert.Len(t, ctx.Exercises, 1)
	require.NotNil(t, ctx.Topic.NVideosLocal)
	assert.Equal(t, 1, *ctx.Topic.NVideosLocal)
}

func TestVideoPage(t *testing.T) {
	f := newFixture(t, "")

	w := f.get(t, "/topics/math/addition/adding/")
	require.Equal(t, http.StatusOK, w.Code)

	var ctx VideoContext
	decode(t, w, &ctx)
	assert.Equal(t, "Adding numbers", ctx.Title)
	assert.True(t, ctx.Video.OnDisk)
	assert.Equal(t, "/content/v1.mp4", ctx.Video.URLs["default"].StreamURL)
	assert.Empty(t, ctx.Messages)

	w = f.get(t, "/topics/math/addition/carrying/")
	require.Equal(t, http.StatusOK, w.Code)
	ctx = VideoContext{}
	decode(t, w, &ctx)
	assert.False(t, ctx.Video.Available)
	require.Len(t, ctx.Messages, 1)
	assert.Equal(t, "warning", ctx.Messages[0].Level)
}

func TestVideoPageFromBackup(t *testing.T) {
	f := newFixture(t, "http://backup.example/%s.mp4")

	w := f.get(t, "/topics/math/addition/carrying/")
	require.Equal(t, http.StatusOK, w.Code)

	var ctx VideoContext
	decode(t, w, &ctx)
	assert.True(t, ctx.BackupVidsAvailable)
	assert.True(t, ctx.Video.Available)
	require.Len(t, ctx.Messages, 1)
	assert.Equal(t, "success", ctx.Messages[0].Level)
	assert.Contains(t, ctx.Messages[0].Text, "http://backup.example/v2.mp4")
}

func TestExercisePage(t *testing.T) {
	f := newFixture(t, "")

	w := f.get(t, "/topics/math/addition/add-1/")
	require.Equal(t, http.StatusOK, w.Code)

	var ctx ExerciseContext
	decode(t, w, &ctx)
	assert.Equal(t, "Addition 1", ctx.Title)
	require.Len(t, ctx.RelatedVideos, 1, "only available videos")
	assert.Equal(t, "v1", ctx.RelatedVideos[0].ID)
}

func TestSplatNotFound(t *testing.T) {
	f := newFixture(t, "")

	w := f.get(t, "/topics/nowhere/")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearch(t *testing.T) {
	f := newFixture(t, "")

	t.Run("substring", func(t *testing.T) {
		w := f.get(t, "/search?query=add")
		require.Equal(t, http.StatusOK, w.Code)

		var ctx SearchContext
		decode(t, w, &ctx)
		assert.Len(t, ctx.Results["Video"], 1)
		assert.Len(t, ctx.Results["Exercise"], 1)
		assert.Len(t, ctx.Results["Topic"], 1)
		assert.False(t, ctx.HitMax["Video"])
	})

	t.Run("exact title redirects", func(t *testing.T) {
		w := f.get(t, "/search?query=Carrying")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/topics/math/addition/carrying/", w.Header().Get("Location"))
	})

	t.Run("category and hit max", func(t *testing.T) {
		w := f.get(t, "/search?query=a&category=Video&max_results=1")
		require.Equal(t, http.StatusOK, w.Code)

		var ctx SearchContext
		decode(t, w, &ctx)
		assert.Len(t, ctx.Results, 1)
		assert.Len(t, ctx.Results["Video"], 1)
		assert.True(t, ctx.HitMax["Video"])
	})

	t.Run("missing query", func(t *testing.T) {
		w := f.get(t, "/search")
		require.Equal(t, http.StatusOK, w.Code)

		var ctx SearchContext
		decode(t, w, &ctx)
		assert.NotEmpty(t, ctx.QueryError)
	})

	t.Run("bad parameters", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, f.get(t, "/search?query=a&max_results=x").Code)
		assert.Equal(t, http.StatusBadRequest, f.get(t, "/search?query=a&category=Song").Code)
	})
}

func TestExerciseDashboard(t *testing.T) {
	f := newFixture(t, "")

	w := f.get(t, "/exercises")
	require.Equal(t, http.StatusOK, w.Code)

	var ctx KnowledgeMapContext
	decode(t, w, &ctx)
	assert.Equal(t, "Your Knowledge Map", ctx.Title)
	assert.Equal(t, map[string]string{"add-1": "/math/addition/add-1/"}, ctx.ExercisePaths)

	w = f.get(t, "/exercises?topic=addition")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &ctx)
	assert.Equal(t, "Addition", ctx.Title)

	assert.Equal(t, http.StatusNotFound, f.get(t, "/exercises?topic=nope").Code)
}

func TestReload(t *testing.T) {
	f := newFixture(t, "")

	w := f.get(t, "/topics/math/addition/carrying/")
	var before VideoContext
	decode(t, w, &before)
	assert.False(t, before.Video.OnDisk)

	require.NoError(t, os.WriteFile(filepath.Join(f.contentDir, "v2.mp4"), []byte("x"), 0o644))

	r := httptest.NewRequest(http.MethodPost, "/api/reload", nil)
	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var res map[string]int
	decode(t, w, &res)
	assert.Equal(t, 2, res["files"])
	assert.Equal(t, 7, res["nodes"])

	w = f.get(t, "/topics/math/addition/carrying/")
	var after VideoContext
	decode(t, w, &after)
	assert.True(t, after.Video.OnDisk)
}

func TestWatchReloadsOnRewrite(t *testing.T) {
	f := newFixture(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Equal(t, 7, f.tree.Len())

	// give the watcher a moment to register before the first write
	time.Sleep(100 * time.Millisecond)

	small := `{"kind": "Topic", "id": "root", "path": "/", "children": []}`
	require.NoError(t, topictree.WriteFileAtomic(f.tree.File(), []byte(small)))

	assert.Eventually(t, func() bool {
		return f.tree.Len() == 1
	}, 5*time.Second, 20*time.Millisecond)
}
