package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"modelhost/internal/adapters"
	"modelhost/internal/catalog"
	"modelhost/internal/config"
	"modelhost/internal/httpapi"
	"modelhost/internal/lifecycle"
	"modelhost/internal/loader"
	"modelhost/internal/memory"
	"modelhost/internal/services"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	cfg := config.Config{}
	var (
		cfgPath  string
		logLevel string
		cors     string
	)

	root := &cobra.Command{
		Use:           "modelhostd",
		Short:         "Model lifecycle daemon: catalog, adapters, load coordination and memory pressure",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfgPath, cfg, logLevel, cors)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", envOr("MODELHOST_CONFIG", ""), "config file (.yaml, .json or .toml); flags override file values")
	root.Flags().StringVar(&cfg.Addr, "addr", envOr("MODELHOST_ADDR", ""), "HTTP listen address, e.g. :8090")
	root.Flags().StringVar(&cfg.ModelsDir, "models-dir", envOr("MODELHOST_MODELS_DIR", ""), "directory to scan for model artifacts")
	root.Flags().BoolVar(&cfg.WatchModelsDir, "watch", false, "watch the models directory for new artifacts")
	root.Flags().Int64Var(&cfg.MemoryThresholdBytes, "memory-threshold-bytes", 0, "available-memory level below which pressure is warning (0=default)")
	root.Flags().Int64Var(&cfg.CriticalThresholdBytes, "critical-threshold-bytes", 0, "available-memory level below which pressure is critical (0=default)")
	root.Flags().BoolVar(&cfg.AutoUnload, "auto-unload", false, "evict the oldest model when tracked usage exceeds the auto-unload threshold")
	root.Flags().Int64Var(&cfg.AutoUnloadThresholdBytes, "auto-unload-threshold-bytes", 0, "tracked-usage level that triggers eviction (0 disables)")
	root.Flags().IntVar(&cfg.PressureIntervalSeconds, "pressure-interval", 0, "seconds between background pressure checks (0 disables)")
	root.Flags().StringVar(&logLevel, "log-level", envOr("MODELHOST_LOG_LEVEL", "info"), "log level: trace|debug|info|warn|error")
	root.Flags().StringVar(&cors, "cors-origins", "", "comma-separated allowed CORS origins (empty disables CORS)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, cfgPath string, flags config.Config, logLevel, cors string) error {
	lvl, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(lvl)

	cfg := flags
	if cfgPath != "" {
		fileCfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = mergeConfig(fileCfg, flags, cmd)
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8090"
	}

	cat := catalog.New()
	if cfg.ModelsDir != "" {
		n, err := cat.Discover(cfg.ModelsDir)
		if err != nil {
			log.Warn().Err(err).Str("dir", cfg.ModelsDir).Msg("model discovery failed")
		} else {
			log.Info().Int("models", n).Str("dir", cfg.ModelsDir).Msg("discovered model artifacts")
		}
	}

	reg := adapters.NewRegistry(cat, log)
	reg.Register(adapters.NewLlamaCppAdapter(0, 0), 100)
	if !adapters.LlamaBuilt() {
		log.Warn().Msg("llamacpp adapter is a stub; rebuild with -tags=llama for real inference")
	}

	mon := memory.NewMonitor(memory.SystemSampler)
	mon.Configure(cfg.MemoryThresholdBytes, cfg.CriticalThresholdBytes)

	coord := loader.NewCoordinator(cat, reg, log)
	orch := lifecycle.New(coord, reg, mon, lifecycle.Config{
		AutoUnload:               cfg.AutoUnload,
		AutoUnloadThresholdBytes: cfg.AutoUnloadThresholdBytes,
	}, log, lifecycle.WithPublisher(httpapi.NewMetricsPublisher()))

	httpapi.SetLogger(log)
	if cors != "" {
		httpapi.SetCORSOptions(true, strings.Split(cors, ","),
			[]string{"GET", "POST", "OPTIONS"}, []string{"Accept", "Content-Type"})
	}
	mux := httpapi.NewMux(httpapi.Deps{
		Catalog:   cat,
		Registry:  reg,
		Orch:      orch,
		Monitor:   mon,
		StartTime: time.Now(),
	})

	mgr := services.NewManager(log, services.WithStartRetry(3, 500*time.Millisecond))
	mgr.Register("http", &httpService{addr: cfg.Addr, handler: mux, log: log})
	if cfg.WatchModelsDir && cfg.ModelsDir != "" {
		mgr.Register("watcher", &watcherService{cat: cat, dir: cfg.ModelsDir, log: log})
	}
	if cfg.PressureIntervalSeconds > 0 {
		mgr.Register("pressure", &pressureService{
			orch:     orch,
			interval: time.Duration(cfg.PressureIntervalSeconds) * time.Second,
			log:      log,
		})
	}

	if err := mgr.StartAll(); err != nil {
		if stopErr := mgr.StopAll(); stopErr != nil {
			log.Error().Err(stopErr).Msg("cleanup after failed startup")
		}
		return err
	}
	log.Info().Str("addr", cfg.Addr).Str("models_dir", cfg.ModelsDir).Int("models", cat.Len()).Msg("modelhostd started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	if err := mgr.StopAll(); err != nil {
		log.Error().Err(err).Msg("shutdown")
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := orch.UnloadAllModels(ctx); err != nil {
		log.Error().Err(err).Msg("unload on shutdown")
	}
	return nil
}

// mergeConfig overlays explicitly-set flags on top of file values.
func mergeConfig(file, flags config.Config, cmd *cobra.Command) config.Config {
	out := file
	if flags.Addr != "" {
		out.Addr = flags.Addr
	}
	if flags.ModelsDir != "" {
		out.ModelsDir = flags.ModelsDir
	}
	if flags.MemoryThresholdBytes != 0 {
		out.MemoryThresholdBytes = flags.MemoryThresholdBytes
	}
	if flags.CriticalThresholdBytes != 0 {
		out.CriticalThresholdBytes = flags.CriticalThresholdBytes
	}
	if flags.AutoUnloadThresholdBytes != 0 {
		out.AutoUnloadThresholdBytes = flags.AutoUnloadThresholdBytes
	}
	if flags.PressureIntervalSeconds != 0 {
		out.PressureIntervalSeconds = flags.PressureIntervalSeconds
	}
	// Booleans can only be forced on from the command line; use the file to
	// turn them off.
	if cmd.Flags().Changed("auto-unload") {
		out.AutoUnload = flags.AutoUnload
	}
	if cmd.Flags().Changed("watch") {
		out.WatchModelsDir = flags.WatchModelsDir
	}
	return out
}

// httpService runs the API server as a managed service. Start binds the
// listener synchronously so StartAll surfaces address conflicts.
type httpService struct {
	addr    string
	handler http.Handler
	log     zerolog.Logger

	mu      sync.Mutex
	srv     *http.Server
	running bool
}

func (s *httpService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: s.addr, Handler: s.handler}
	s.srv = srv
	s.running = true
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("http server")
		}
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()
	return nil
}

func (s *httpService) Stop() error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (s *httpService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// watcherService materializes catalog entries as model files appear.
type watcherService struct {
	cat *catalog.Catalog
	dir string
	log zerolog.Logger

	mu     sync.Mutex
	w      *catalog.Watcher
	cancel context.CancelFunc
}

func (s *watcherService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := catalog.NewWatcher(s.cat, s.dir, s.log)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.w = w
	s.cancel = cancel
	go w.Run(ctx)
	return nil
}

func (s *watcherService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil
	}
	s.cancel()
	err := s.w.Close()
	s.w = nil
	s.cancel = nil
	return err
}

func (s *watcherService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w != nil
}

// pressureService runs the periodic memory-pressure check.
type pressureService struct {
	orch     *lifecycle.Orchestrator
	interval time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *pressureService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go func() {
		defer close(done)
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if _, err := s.orch.HandleMemoryPressure(ctx); err != nil {
					s.log.Warn().Err(err).Msg("pressure check")
				}
			}
		}
	}()
	return nil
}

func (s *pressureService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	return nil
}

func (s *pressureService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
