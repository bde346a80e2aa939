package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/kalite/kalite/pkg/cache"
	"github.com/kalite/kalite/pkg/logger"
	"github.com/kalite/kalite/pkg/topictree"
)

const shutdownTimeout = 5 * time.Second

// Indexer rescans local content after the tree is reloaded.
type Indexer interface {
	Rescan() int
}

type Options struct {
	BackupVideos bool
	Indexer      Indexer
}

// Server renders page contexts for the topic tree as JSON.
type Server struct {
	tree      *topictree.Tree
	refresher *cache.Refresher
	opts      Options
	log       *logrus.Entry
}

func New(tree *topictree.Tree, refresher *cache.Refresher, opts Options) *Server {
	return &Server{
		tree:      tree,
		refresher: refresher,
		opts:      opts,
		log:       logger.GetLogger("server"),
	}
}

// Router returns the http handler with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/", s.Homepage)
	r.Get("/search", s.Search)
	r.Get("/exercises", s.ExerciseDashboard)
	r.Get("/topics/*", s.Splat)

	r.Route("/api", func(r chi.Router) {
		r.Post("/reload", s.Reload)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func requestLogger(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				log.WithFields(logrus.Fields{
					"request_id": middleware.GetReqID(r.Context()),
					"remote":     r.RemoteAddr,
					"status":     ww.Status(),
					"bytes":      ww.BytesWritten(),
					"duration":   time.Since(start),
				}).Debugf("%s %s", r.Method, r.URL.RequestURI())
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
