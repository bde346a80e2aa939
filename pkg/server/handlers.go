package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/kalite/kalite/pkg/topictree"
)

const defaultMaxResults = 25

var searchKinds = []topictree.Kind{topictree.KindTopic, topictree.KindVideo, topictree.KindExercise}

// Homepage handles GET /
func (s *Server) Homepage(w http.ResponseWriter, r *http.Request) {
	var body []byte
	err := s.tree.Update(func(tx *topictree.Txn) error {
		root := tx.Root()
		s.refresher.RefreshTx(tx, map[string]*topictree.Node{"topics": root}, false)

		ctx := s.topicContext(root)
		ctx.Title = "Home"

		var err error
		body, err = json.Marshal(ctx)
		return err
	})
	s.writeBody(w, body, err)
}

// Splat handles GET /topics/*, dispatching on the kind of node at the path.
func (s *Server) Splat(w http.ResponseWriter, r *http.Request) {
	nodePath := topictree.NormalizePath(strings.TrimPrefix(r.URL.Path, "/topics"))

	var (
		body  []byte
		found bool
	)
	err := s.tree.Update(func(tx *topictree.Txn) error {
		node := tx.Lookup(nodePath)
		if node == nil {
			return nil
		}
		found = true

		var page interface{}
		switch node.Kind {
		case topictree.KindTopic:
			s.refresher.RefreshTx(tx, map[string]*topictree.Node{"topic": node}, false)
			page = s.topicContext(node)
		case topictree.KindVideo:
			s.refresher.RefreshTx(tx, map[string]*topictree.Node{"video": node}, false)
			page = s.videoContext(node)
		case topictree.KindExercise:
			related := relatedVideos(node)
			s.refresher.RefreshTx(tx, related, false)
			page = exerciseContext(node, related)
		default:
			return fmt.Errorf("node %s has unknown kind %s", node.Path, node.Kind)
		}

		var err error
		body, err = json.Marshal(page)
		return err
	})

	if err == nil && !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no topic tree node at %q", nodePath))
		return
	}
	s.writeBody(w, body, err)
}

// Search handles GET /search?query=&category=&max_results=
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	maxResults := defaultMaxResults
	if v := q.Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid max_results: %q", v))
			return
		}
		maxResults = n
	}

	category := q.Get("category")
	if category != "" {
		if _, err := topictree.ParseKind(category); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ctx := SearchContext{
		Results:    map[string][]*topictree.Node{},
		HitMax:     map[string]bool{},
		MaxResults: maxResults,
		Category:   category,
	}

	if !q.Has("query") {
		ctx.QueryError = "Error: query not specified."
		ctx.Title = "Search results for ''"
		s.writeJSON(w, ctx)
		return
	}

	query := strings.ToLower(q.Get("query"))
	ctx.Query = query
	ctx.Title = fmt.Sprintf("Search results for '%s'", query)

	var (
		body     []byte
		redirect string
	)
	err := s.tree.Update(func(tx *topictree.Txn) error {
		s.refresher.RefreshTx(tx, nil, false)

		for _, kind := range searchKinds {
			if category != "" && kind.String() != category {
				continue
			}

			matches := []*topictree.Node{}
			seen := map[string]bool{}
			for _, n := range tx.Nodes(kind) {
				if seen[n.ID] {
					continue
				}
				seen[n.ID] = true

				title := strings.ToLower(n.Title)
				if title == query {
					redirect = n.Path
					return nil
				}
				if len(matches) < maxResults && strings.Contains(title, query) {
					matches = append(matches, n)
				}
			}

			ctx.Results[kind.String()] = matches
			ctx.HitMax[kind.String()] = len(matches) == maxResults
		}

		var err error
		body, err = json.Marshal(ctx)
		return err
	})

	if err == nil && redirect != "" {
		http.Redirect(w, r, "/topics"+redirect, http.StatusFound)
		return
	}
	s.writeBody(w, body, err)
}

// ExerciseDashboard handles GET /exercises, the knowledge map.
func (s *Server) ExerciseDashboard(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("topic")

	ctx := KnowledgeMapContext{
		Title:         "Your Knowledge Map",
		ExercisePaths: map[string]string{},
	}

	var found bool
	_ = s.tree.View(func(tx *topictree.Txn) error {
		for _, ex := range tx.Nodes(topictree.KindExercise) {
			// first path wins
			if _, ok := ctx.ExercisePaths[ex.Slug]; !ok {
				ctx.ExercisePaths[ex.Slug] = ex.Path
			}
		}

		if slug == "" {
			found = true
			return nil
		}
		for _, t := range tx.Nodes(topictree.KindTopic) {
			if t.Slug == slug {
				ctx.Title = t.Title
				found = true
				break
			}
		}
		return nil
	})

	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no topic with slug %q", slug))
		return
	}
	s.writeJSON(w, ctx)
}

// Reload handles POST /api/reload, picking up imports made by other processes.
func (s *Server) Reload(w http.ResponseWriter, r *http.Request) {
	nodes, files, err := s.reload()
	if err != nil {
		s.log.WithError(err).Error("Failed reloading topic tree")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, map[string]int{
		"nodes": nodes,
		"files": files,
	})
}

func (s *Server) reload() (int, int, error) {
	if err := s.tree.Reload(); err != nil {
		return 0, 0, err
	}

	files := 0
	if s.opts.Indexer != nil {
		files = s.opts.Indexer.Rescan()
	}
	return s.tree.Len(), files, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	body, err := json.Marshal(v)
	s.writeBody(w, body, err)
}

func (s *Server) writeBody(w http.ResponseWriter, body []byte, err error) {
	if err != nil {
		s.log.WithError(err).Error("Failed rendering page")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
