// Package devserver serves a development build with watch mode and live
// reload.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dkoosis/frontkit/pkg/build"
	"github.com/dkoosis/frontkit/pkg/chunks"
	"github.com/dkoosis/frontkit/pkg/descriptor"
)

// ReloadPath is the server-sent events endpoint of the reload client.
const ReloadPath = "/__frontkit/reload"

// Config configures a Server.
type Config struct {
	Root       string
	Descriptor descriptor.Descriptor
	// Addr overrides the listen address derived from the descriptor port.
	Addr string
}

// Server is the development server.
type Server struct {
	root     string
	desc     descriptor.Descriptor
	addr     string
	outDir   string
	static   string
	log      zerolog.Logger
	notifier *Notifier

	mu       sync.RWMutex
	page     string
	meta     *chunks.Metafile
	failures []string
	listener net.Addr
}

// New creates a Server. The descriptor is validated but nothing is built
// until Run.
func New(cfg Config, log zerolog.Logger) (*Server, error) {
	if err := cfg.Descriptor.Validate(); err != nil {
		return nil, fmt.Errorf("invalid descriptor: %w", err)
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	d := cfg.Descriptor
	addr := cfg.Addr
	if addr == "" {
		addr = fmt.Sprintf(":%d", d.DevServer.Port)
	}

	return &Server{
		root:     root,
		desc:     d,
		addr:     addr,
		outDir:   d.Path(root, d.Output.Path),
		static:   d.Path(root, d.DevServer.StaticDir),
		log:      log,
		notifier: NewNotifier(),
	}, nil
}

// Notifier returns the reload broadcaster.
func (s *Server) Notifier() *Notifier { return s.notifier }

// Addr returns the bound listen address once Run is serving.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listener
}

// Run builds in watch mode and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if s.desc.Output.Clean {
		if err := os.RemoveAll(s.outDir); err != nil {
			return fmt.Errorf("clean output: %w", err)
		}
	}

	opts, err := build.Options(s.desc, s.root)
	if err != nil {
		return err
	}
	opts.Write = true
	opts.Plugins = append(opts.Plugins, api.Plugin{
		Name: "frontkit-reload",
		Setup: func(pb api.PluginBuild) {
			pb.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				s.rebuilt(result)
				return api.OnEndResult{}, nil
			})
		},
	})

	esctx, cerr := api.Context(opts)
	if cerr != nil {
		return fmt.Errorf("create build context: %s", build.FormatMessages(cerr.Errors))
	}
	defer esctx.Dispose()

	if err := esctx.Watch(api.WatchOptions{}); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln.Addr()
	s.mu.Unlock()

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("static", s.desc.DevServer.StaticDir).
		Bool("hot", s.desc.DevServer.Hot).
		Msg("Dev server running")

	eg.Go(func() error {
		return s.watchStatic(egctx)
	})

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.log.Debug().Msg("Shutting down dev server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// rebuilt records the outcome of a watch build and notifies clients.
func (s *Server) rebuilt(result *api.BuildResult) {
	if len(result.Errors) > 0 {
		msg := build.FormatMessages(result.Errors)
		s.log.Error().Str("errors", msg).Msg("Rebuild failed")
		s.mu.Lock()
		s.failures = []string{msg}
		s.mu.Unlock()
		s.notifier.Broadcast()
		return
	}

	meta, err := chunks.ParseMetafile([]byte(result.Metafile))
	if err != nil {
		s.log.Error().Err(err).Msg("Rebuild produced an unreadable metafile")
		return
	}

	s.mu.Lock()
	s.meta = meta
	s.failures = nil
	s.mu.Unlock()

	if err := s.renderPage(); err != nil {
		s.log.Error().Err(err).Msg("Render page failed")
	}
	s.log.Info().Int("warnings", len(result.Warnings)).Msg("Rebuild complete")
	s.notifier.Broadcast()
}

// renderPage re-renders the page from the last successful build.
func (s *Server) renderPage() error {
	s.mu.RLock()
	meta := s.meta
	s.mu.RUnlock()
	if meta == nil {
		return nil
	}

	tmpl := descriptor.HTMLPlugin{Template: s.desc.DevServer.StaticDir + "/index.html", Filename: "index.html"}
	for _, p := range s.desc.Plugins {
		if h, ok := p.(descriptor.HTMLPlugin); ok {
			tmpl = h
		}
	}

	var inline []string
	if s.desc.DevServer.Hot {
		inline = append(inline, reloadScript)
	}
	page, err := build.Page(tmpl, s.root, s.desc, meta, inline, s.log)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.page = page
	s.mu.Unlock()
	return nil
}

// reloadScript is injected into the page when hot reload is enabled.
const reloadScript = `
;(function() {
  var es = new EventSource('` + ReloadPath + `');
  es.onmessage = function(e) {
    if (e.data === 'reload') {
      window.location.reload();
    }
  };
})();
`
