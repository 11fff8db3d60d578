// Package server serves live previews of generated components together with
// the registry API, the studio page, the gallery and a websocket push channel.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/designforge/mimicry/internal/config"
	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/gallery"
	"github.com/designforge/mimicry/internal/logging"
	"github.com/designforge/mimicry/internal/preview"
	"github.com/designforge/mimicry/internal/registry"
	"github.com/designforge/mimicry/internal/resolver"
	"github.com/designforge/mimicry/internal/types"
	"github.com/designforge/mimicry/internal/watcher"
)

// Server serves component previews with live registry updates
type Server struct {
	config     *config.Config
	store      registry.Store
	resolver   *resolver.Resolver
	builder    preview.Builder
	gallery    *gallery.Gallery
	hub        *Hub
	logger     logging.Logger
	errHandler *errors.ErrorHandler
	startedAt  time.Time

	watcher     *watcher.FileWatcher
	httpServer  *http.Server
	serverMutex sync.RWMutex

	shutdownOnce sync.Once
}

// UpdateMessage represents a message pushed to studio pages
type UpdateMessage struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Event     string    `json:"event,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Message types pushed over the websocket.
const (
	MessageRegistryUpdate = "registry_update"
)

// Option customises a Server.
type Option func(*Server)

// WithResolverOptions appends resolver options, mainly for tests that need
// a fake sleeper.
func WithResolverOptions(opts ...resolver.Option) Option {
	return func(s *Server) {
		base := []resolver.Option{
			resolver.WithAttempts(s.config.Preview.ResolveAttempts),
			resolver.WithDelay(s.config.Preview.ResolveDelay),
			resolver.WithLogger(s.logger),
		}
		s.resolver = resolver.New(s.store, append(base, opts...)...)
	}
}

// New creates a server over store. The store stays owned by the caller.
func New(cfg *config.Config, store registry.Store, logger logging.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithComponent("server")

	s := &Server{
		config:     cfg,
		store:      store,
		logger:     logger,
		errHandler: errors.NewErrorHandler(logger),
		builder: preview.Builder{
			MountDelay:    cfg.Preview.MountDelay,
			RenderTimeout: cfg.Preview.RenderTimeout,
		},
		gallery:   gallery.New(cfg.Gallery.ImagesDir, store, logger),
		hub:       NewHub(logger),
		startedAt: time.Now(),
	}
	s.resolver = resolver.New(store,
		resolver.WithAttempts(cfg.Preview.ResolveAttempts),
		resolver.WithDelay(cfg.Preview.ResolveDelay),
		resolver.WithLogger(logger),
	)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Run starts the background workers: the websocket hub, the forwarding of
// store events and, when enabled, the directory watcher. They stop when ctx
// is done.
func (s *Server) Run(ctx context.Context) {
	go s.hub.Run(ctx)
	go s.forwardStoreEvents(ctx)

	if s.config.Development.Watch {
		if err := s.setupFileWatcher(ctx); err != nil {
			s.logger.Warn(ctx, err, "File watcher disabled")
		}
	}
}

// Start runs the workers and serves HTTP until the server is shut down.
func (s *Server) Start(ctx context.Context) error {
	s.Run(ctx)

	addr := s.config.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.NewEnhancedError(fmt.Sprintf("Failed to start server on %s", addr), err,
			errors.ServerStartError(err, s.config.Server.Port))
	}

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	url := fmt.Sprintf("http://%s", listener.Addr().String())
	s.logger.Info(ctx, "Preview server listening", "url", url, "registry", s.store.Dir())

	if s.config.Server.Open {
		go s.openBrowser(url)
	}

	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) setupFileWatcher(ctx context.Context) error {
	fw, err := watcher.NewComponentsWatcher(s.store.Dir(), s.config.Registry.File, s.config.Development.DebounceDelay, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	fw.AddHandler(s.handleFileChange)
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return err
	}
	s.serverMutex.Lock()
	s.watcher = fw
	s.serverMutex.Unlock()
	return nil
}

// handleFileChange re-reads the registry after an on-disk change, which may
// come from another process, and tells studio pages about it.
func (s *Server) handleFileChange(events []watcher.ChangeEvent) error {
	ctx := context.Background()
	reg, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload registry: %w", err)
	}
	s.logger.Debug(ctx, "Components directory changed", "events", len(events), "components", len(reg.Components))
	s.broadcastMessage(UpdateMessage{
		Type:      MessageRegistryUpdate,
		Target:    reg.Active(),
		Event:     "file_change",
		Timestamp: time.Now(),
	})
	return nil
}

func (s *Server) forwardStoreEvents(ctx context.Context) {
	events := s.store.Watch()
	defer s.store.Unwatch(events)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			target := ""
			if ev.Component != nil {
				target = ev.Component.ID
			}
			s.broadcastMessage(UpdateMessage{
				Type:      MessageRegistryUpdate,
				Target:    target,
				Event:     string(ev.Type),
				Timestamp: ev.Timestamp,
			})
		}
	}
}

func (s *Server) broadcastMessage(msg UpdateMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error(context.Background(), err, "Failed to marshal update message")
		return
	}
	s.hub.Broadcast(data)
}

func (s *Server) openBrowser(url string) {
	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	if err != nil {
		s.logger.Warn(context.Background(), err, "Failed to open browser", "url", url)
	}
}

// Shutdown gracefully shuts down the server and releases its workers.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		s.serverMutex.RLock()
		fw := s.watcher
		server := s.httpServer
		s.serverMutex.RUnlock()

		if fw != nil {
			if err := fw.Stop(); err != nil {
				s.logger.Warn(ctx, err, "Failed to stop file watcher")
			}
		}

		s.hub.Close()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}

// componentCount is used by the health check.
func (s *Server) componentCount(ctx context.Context) (int, *types.Registry, error) {
	reg, err := s.store.Load(ctx)
	if err != nil {
		return 0, nil, err
	}
	return len(reg.Components), reg, nil
}
