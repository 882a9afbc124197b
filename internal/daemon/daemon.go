package daemon

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/lorehq/lore/internal/adapters"
	"github.com/lorehq/lore/internal/config"
	"github.com/lorehq/lore/internal/db"
	"github.com/lorehq/lore/internal/ingest"
	"github.com/lorehq/lore/internal/linker"
)

// Daemon owns the long-running capture pipeline: watcher, debouncer,
// ingestion engine, linker, periodic scans, and the IPC server.
type Daemon struct {
	cfg      *config.Config
	cfgMu    sync.RWMutex
	state    *State
	store    *sql.DB
	registry *adapters.Registry
	engine   *ingest.Engine
	linker   *linker.Linker
	log      zerolog.Logger

	startedAt time.Time
	counters  counters
	shutdown  context.CancelFunc
}

// NewState returns the daemon coordination paths under the data root.
func NewState() (*State, error) {
	if _, err := config.EnsureDataDir(); err != nil {
		return nil, err
	}

	pidPath, err := config.PIDPath()
	if err != nil {
		return nil, err
	}
	socketPath, err := config.SocketPath()
	if err != nil {
		return nil, err
	}
	logPath, err := config.LogPath()
	if err != nil {
		return nil, err
	}

	return &State{PIDFile: pidPath, SocketPath: socketPath, LogFile: logPath}, nil
}

// Run starts the daemon in the foreground and blocks until shutdown. It
// refuses to start when another instance holds the PID file.
func Run(ctx context.Context, cfg *config.Config, foreground bool) error {
	state, err := NewState()
	if err != nil {
		return err
	}

	log, closeLog, err := openLogger(state.LogFile, foreground)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := state.AcquirePID(); err != nil {
		return err
	}
	defer state.Cleanup() //nolint:errcheck // best effort on the way out

	dbPath, err := cfg.DBPath()
	if err != nil {
		return err
	}
	store, err := db.Open(dbPath)
	if err != nil {
		return eris.Wrap(err, "failed to open store; refusing to start")
	}
	defer store.Close()

	if err := recordMachineIdentity(store, cfg); err != nil {
		return err
	}

	registry, err := adapters.NewRegistry(homeDir(), cfg.Watchers)
	if err != nil {
		return err
	}

	d := &Daemon{
		cfg:       cfg,
		state:     state,
		store:     store,
		registry:  registry,
		log:       log,
		startedAt: time.Now(),
	}
	d.engine = ingest.New(store, registry, cfg, log)
	d.linker = linker.New(store, cfg, log)
	d.engine.OnSessionEnded(d.handleSessionEnded)

	return d.run(ctx)
}

func (d *Daemon) run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	d.shutdown = cancel

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		select {
		case sig := <-signals:
			d.log.Info().Str("signal", sig.String()).Msg("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	d.log.Info().Int("pid", os.Getpid()).Msg("daemon started")

	roots := d.registry.WatchRoots()
	watcher, err := NewWatcher(roots, d.log)
	if err != nil {
		return err
	}
	defer watcher.Close()
	d.log.Info().Int("roots", len(roots)).Msg("watching")

	debouncer := NewDebouncer(d.config().Debounce())
	defer debouncer.Close()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		watcher.Run(ctx, debouncer)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.consumeEvents(ctx, debouncer)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.periodicScan(ctx)
	}()

	server := NewServer(d.state.SocketPath, d.log)
	d.registerHandlers(server)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Run(ctx); err != nil {
			d.log.Error().Err(err).Msg("IPC server stopped")
			cancel()
		}
	}()

	// Initial scan bootstraps existing sources and recovers missed events.
	if err := d.engine.ScanAll(ctx); err != nil && ctx.Err() == nil {
		d.log.Error().Err(err).Msg("initial scan failed")
	}

	<-ctx.Done()
	wg.Wait()

	d.log.Info().Msg("daemon stopped")
	return nil
}

func (d *Daemon) config() *config.Config {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	return d.cfg
}

// consumeEvents drains the debouncer into the engine.
func (d *Daemon) consumeEvents(ctx context.Context, debouncer *Debouncer) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-debouncer.C():
			debouncer.Ack(path)
			if err := d.engine.Ingest(ctx, path); err != nil {
				d.log.Error().Err(err).Str("path", path).Msg("ingest failed")
			}
		}
	}
}

// periodicScan runs the full source scan and the finalisation sweep on the
// configured interval.
func (d *Daemon) periodicScan(ctx context.Context) {
	ticker := time.NewTicker(d.config().ScanInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.engine.ScanAll(ctx); err != nil && ctx.Err() == nil {
				d.log.Error().Err(err).Msg("periodic scan failed")
			}
			if err := d.engine.FinaliseSweep(ctx); err != nil {
				d.log.Error().Err(err).Msg("finalisation sweep failed")
			}
		}
	}
}

// handleSessionEnded runs forward linking for a just-finalised session.
func (d *Daemon) handleSessionEnded(sessionID uuid.UUID) {
	go func() {
		linked, err := d.linker.LinkSession(sessionID)
		if err != nil {
			d.log.Error().Err(err).Str("session", sessionID.String()).Msg("forward linking failed")
			return
		}
		if linked > 0 {
			d.counters.linksCreated.Add(uint64(linked))
		}
	}()
}

func (d *Daemon) registerHandlers(server *Server) {
	server.Handle("status", func(_ context.Context, _ Request) (interface{}, error) {
		return d.stats(), nil
	})

	server.Handle("stats", func(_ context.Context, _ Request) (interface{}, error) {
		dbPath, err := d.config().DBPath()
		if err != nil {
			return nil, err
		}
		storeStats, err := db.GetStats(d.store, dbPath)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"daemon": d.stats(),
			"store":  storeStats,
		}, nil
	})

	server.Handle("shutdown", func(_ context.Context, _ Request) (interface{}, error) {
		d.log.Info().Msg("shutdown requested over IPC")
		// Reply first, then stop accepting.
		go d.shutdown()
		return "stopping", nil
	})

	server.Handle("reload-config", func(_ context.Context, _ Request) (interface{}, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		d.cfgMu.Lock()
		d.cfg = cfg
		d.cfgMu.Unlock()
		d.log.Info().Msg("configuration reloaded")
		return "reloaded", nil
	})

	server.Handle("ingest-now", func(ctx context.Context, req Request) (interface{}, error) {
		var args struct {
			Path string `json:"path"`
		}
		if len(req.Args) > 0 {
			if err := json.Unmarshal(req.Args, &args); err != nil {
				return nil, eris.Wrap(err, "invalid arguments")
			}
		}

		if args.Path != "" {
			if err := d.engine.Ingest(ctx, args.Path); err != nil {
				return nil, err
			}
			return "ingested", nil
		}

		if err := d.engine.ScanAll(ctx); err != nil {
			return nil, err
		}
		return "scanned", nil
	})

	server.Handle("link-commit", func(_ context.Context, req Request) (interface{}, error) {
		var args struct {
			Repo   string `json:"repo"`
			Commit string `json:"commit"`
			Origin string `json:"origin"`
		}
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, eris.Wrap(err, "invalid arguments")
		}

		origin := originFromString(args.Origin)
		linked, err := d.linker.LinkCommit(args.Repo, args.Commit, origin)
		if err != nil {
			return nil, err
		}
		d.counters.linksCreated.Add(uint64(linked))
		return map[string]int{"linked": linked}, nil
	})
}

func (d *Daemon) stats() Stats {
	engineStats := d.engine.Stats()
	return Stats{
		PID:              os.Getpid(),
		StartedAt:        d.startedAt,
		UptimeSeconds:    int64(time.Since(d.startedAt).Seconds()),
		WatchedRoots:     len(d.registry.WatchRoots()),
		SourcesScanned:   engineStats.SourcesScanned.Load(),
		SessionsImported: engineStats.SessionsImported.Load(),
		MessagesImported: engineStats.MessagesImported.Load(),
		LinksCreated:     d.counters.linksCreated.Load(),
		Errors:           engineStats.Errors.Load(),
	}
}

// recordMachineIdentity persists a stable machine id and the configured
// machine name into the store's meta table.
func recordMachineIdentity(store *sql.DB, cfg *config.Config) error {
	id, err := db.GetMeta(store, "machine_id")
	if err != nil {
		return err
	}
	if id == "" {
		if err := db.SetMeta(store, "machine_id", uuid.NewString()); err != nil {
			return err
		}
	}
	return db.SetMeta(store, "machine_name", cfg.MachineName)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
