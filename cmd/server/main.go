package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkmik/multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"meshgraph/internal/config"
	"meshgraph/internal/controller"
	"meshgraph/internal/datasource"
	"meshgraph/internal/handler"
	"meshgraph/internal/hub"
	"meshgraph/internal/loop"
	"meshgraph/internal/metrics"
	"meshgraph/internal/repository"
	"meshgraph/internal/repository/sqlite"
	"meshgraph/internal/store"
	"meshgraph/internal/ticker"
	"meshgraph/internal/tracker"
	"meshgraph/internal/watcher"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	logger := logrus.New()
	log := logrus.NewEntry(logger)

	cfg, path, err := config.Load(config.Options{Path: *configPath, Flags: fs})
	if err != nil {
		log.WithError(err).WithField("path", path).Fatal("failed to load config")
	}
	configureLogger(logger, cfg.Log)

	if path != "" {
		log.WithField("path", path).Info("config loaded")
	} else {
		log.Info("no config file found, using defaults")
	}

	if err := run(cfg, path, fs, logger); err != nil {
		log.WithError(err).Fatal("server failed")
	}
}

func run(cfg *config.Config, path string, fs *flag.FlagSet, logger *logrus.Logger) error {
	log := logrus.NewEntry(logger)
	log.Info("starting meshgraph server")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Fetch history
	var history repository.FetchHistory
	if cfg.History.Path != "" {
		repo, err := sqlite.New(cfg.History.Path)
		if err != nil {
			return errors.Wrap(err, "open history database")
		}
		defer repo.Close()
		log.WithField("path", cfg.History.Path).Info("history database opened")

		if cfg.History.Retain > 0 {
			pruned, err := repo.Prune(context.Background(), cfg.History.Retain)
			if err != nil {
				log.WithError(err).Warn("failed to prune fetch history")
			} else if pruned > 0 {
				log.WithField("pruned", pruned).Info("pruned fetch history")
			}
		}
		history = repo
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	// Event loop owning the store, controller and data source
	ev := loop.New(log)
	go func() {
		if err := ev.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("event loop stopped")
		}
	}()

	sseHub := hub.New(m, log)
	go sseHub.Run(runCtx)

	fetcher, err := datasource.NewHTTPFetcher(cfg.Backend.URL, cfg.Backend.Timeout, log)
	if err != nil {
		return errors.Wrap(err, "create backend fetcher")
	}

	source := datasource.New(datasource.Options{
		Fetcher:    fetcher,
		Dispatcher: ev,
		History:    history,
		Metrics:    m,
		Log:        log,
	})
	defer source.Close()

	st := store.New(tracker.Snapshot{Params: cfg.InitialParams(), View: cfg.InitialView()})
	boundary := controller.NewRenderBoundary(m, log)
	ctrl := controller.New(controller.Options{
		Store:    st,
		Source:   source,
		Initial:  st.Snapshot(),
		Boundary: boundary,
		Observers: controller.DefaultObservers(st, boundary, func(selector string) {
			sseHub.Publish(hub.EventFocus, map[string]string{"selector": selector})
		}),
		OnChange: func(status controller.Status) {
			sseHub.Publish(hub.EventStatus, status)
		},
		Metrics: m,
		Log:     log,
	})

	startNode := cfg.StartNode()
	if err := ev.Do(runCtx, func() {
		forwardSourceEvents(source, sseHub)
		st.Subscribe(func(snap tracker.Snapshot) {
			sseHub.Publish(hub.EventView, handler.NewViewResponse(snap))
		})
		ctrl.Start(startNode)
	}); err != nil {
		return errors.Wrap(err, "start refresh controller")
	}

	// Refresh ticks are committed on the loop like every other change
	tk := ticker.New(cfg.Refresh.Interval, func(at time.Time) {
		ms := at.UnixMilli()
		ev.Post(func() { st.SetLastRefreshAt(ms) })
	}, log)
	tk.Start(runCtx)
	defer tk.Stop()

	if path != "" {
		w := watcher.New(path, func() {
			reloaded, _, err := config.Load(config.Options{Path: path, Flags: fs})
			if err != nil {
				log.WithError(err).Warn("ignoring invalid config change")
				return
			}
			tk.SetInterval(reloaded.Refresh.Interval)
			configureLogger(logger, reloaded.Log)
			log.WithFields(logrus.Fields{
				"refresh": reloaded.Refresh.Interval,
				"level":   reloaded.Log.Level,
			}).Info("config reloaded")
		}, log)
		go func() {
			if err := w.Watch(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Warn("config watcher stopped")
			}
		}()
	}

	h := handler.New(handler.Deps{
		Loop:       ev,
		Store:      st,
		Controller: ctrl,
		Source:     source,
		History:    history,
		Log:        log,
	})
	router := handler.NewRouter(h, handler.RouterOptions{Events: sseHub, Gatherer: reg})

	// No write timeout: SSE streams and view sockets stay open
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var errs []error
	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("shutting down server")
	case err := <-serverErr:
		errs = append(errs, errors.Wrap(err, "serve"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ev.Do(ctx, ctrl.Close); err != nil {
		errs = append(errs, errors.Wrap(err, "close refresh controller"))
	}
	tk.Stop()
	// Closes SSE streams so Shutdown does not wait on them
	cancelRun()

	if err := server.Shutdown(ctx); err != nil {
		errs = append(errs, errors.Wrap(err, "shutdown server"))
	}

	log.Info("server stopped")
	if len(errs) == 0 {
		return nil
	}
	return multierror.Join(errs)
}

// forwardSourceEvents pushes data source events to SSE clients. Must run on
// the loop.
func forwardSourceEvents(source datasource.Source, sseHub *hub.Hub) {
	types := map[datasource.EventKind]hub.EventType{
		datasource.EventLoadStart:       hub.EventLoadStart,
		datasource.EventFetchSuccess:    hub.EventFetchSuccess,
		datasource.EventFetchError:      hub.EventFetchError,
		datasource.EventEmptyNamespaces: hub.EventEmpty,
	}
	for kind, eventType := range types {
		source.Subscribe(kind, func(e datasource.Event) {
			sseHub.Publish(eventType, newSourceEvent(e))
		})
	}
}

type sourceEvent struct {
	Request string `json:"request"`
	Scope   string `json:"scope,omitempty"`
	Error   string `json:"error,omitempty"`
	Nodes   int    `json:"nodes,omitempty"`
	Edges   int    `json:"edges,omitempty"`
}

func newSourceEvent(e datasource.Event) sourceEvent {
	ev := sourceEvent{Request: e.Request.ID, Scope: e.Request.Scope()}
	if e.Err != nil {
		ev.Error = e.Err.Error()
	}
	if e.Data != nil {
		ev.Nodes = len(e.Data.Nodes)
		ev.Edges = len(e.Data.Edges)
	}
	return ev
}

func configureLogger(logger *logrus.Logger, cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
