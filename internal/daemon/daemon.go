// Package daemon wires chime's components into a runnable scheduler
// process: policy registry, agenda provider, escalation engine, action
// dispatcher, tick driver, and the CLI-facing socket.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/telesto-labs/chime/internal/agenda"
	"github.com/telesto-labs/chime/internal/dispatch"
	"github.com/telesto-labs/chime/internal/driver"
	"github.com/telesto-labs/chime/internal/engine"
	"github.com/telesto-labs/chime/internal/events"
	"github.com/telesto-labs/chime/internal/ipc"
	"github.com/telesto-labs/chime/internal/lock"
	"github.com/telesto-labs/chime/internal/logging"
	"github.com/telesto-labs/chime/internal/model"
	"github.com/telesto-labs/chime/internal/notify"
	"github.com/telesto-labs/chime/internal/policy"
)

// Daemon owns every piece of one scheduler instance. Nothing here is
// process-global: two Daemons over two directories are fully independent.
type Daemon struct {
	chimeDir string
	config   model.Config
	logger   *logging.Logger
	logFile  io.Closer

	fileLock *lock.FileLock
	server   *ipc.Server
	watcher  *agenda.Watcher

	bus        *events.Bus
	audit      *events.AuditLog
	unsubAudit []func()
	registry   *policy.Registry
	provider   *agenda.DirProvider
	dispatcher *dispatch.Dispatcher
	engine     *engine.Engine
	driver     *driver.Driver

	shutdown sync.Once
}

// New creates a Daemon over chimeDir, logging to logs/chimed.log inside it.
func New(chimeDir string, cfg model.Config) (*Daemon, error) {
	logPath := filepath.Join(chimeDir, "logs", "chimed.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open daemon log: %w", err)
	}
	return newDaemon(chimeDir, cfg, logFile, logFile)
}

// newDaemon is the internal constructor, split out so tests can capture the
// log output.
func newDaemon(chimeDir string, cfg model.Config, w io.Writer, closer io.Closer) (*Daemon, error) {
	cfg.ApplyDefaults()
	logger := logging.New(w, "daemon", logging.ParseLevel(cfg.Logging.Level))

	agendaDir := cfg.Agenda.Dir
	if !filepath.IsAbs(agendaDir) {
		agendaDir = filepath.Join(chimeDir, agendaDir)
	}
	if err := os.MkdirAll(agendaDir, 0755); err != nil {
		return nil, fmt.Errorf("ensure agenda dir: %w", err)
	}

	bus := events.NewBus(100)

	audit, err := events.NewAuditLog(filepath.Join(chimeDir, "logs", "escalations.jsonl"), 0)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	registry := policy.NewRegistry()
	if err := policy.RegisterFromConfig(registry, cfg.Policies); err != nil {
		audit.Close()
		return nil, fmt.Errorf("register policies: %w", err)
	}

	provider := agenda.NewDirProvider(agendaDir, bus, logger.WithComponent("agenda"))

	dispatcher := dispatch.New(provider, bus, logger.WithComponent("dispatch"),
		dispatch.WithMaxConcurrent(cfg.Dispatch.MaxConcurrent),
		dispatch.WithHandlerTimeout(time.Duration(cfg.Dispatch.HandlerTimeoutSec)*time.Second),
	)
	notify.RegisterBuiltins(dispatcher, dispatcher, cfg.Handlers, logger.WithComponent("notify"))

	eng := engine.New(provider, registry, dispatcher, bus, logger.WithComponent("engine"))

	d := &Daemon{
		chimeDir:   chimeDir,
		config:     cfg,
		logger:     logger,
		logFile:    closer,
		fileLock:   lock.NewFileLock(filepath.Join(chimeDir, "chimed.lock")),
		server:     ipc.NewServer(filepath.Join(chimeDir, ipc.DefaultSocketName), logger.WithComponent("ipc")),
		bus:        bus,
		audit:      audit,
		registry:   registry,
		provider:   provider,
		dispatcher: dispatcher,
		engine:     eng,
	}
	d.driver = driver.New(eng.Tick, logger.WithComponent("driver"),
		driver.WithIdleSource(driver.SystemIdle))

	d.subscribeAudit()
	return d, nil
}

// subscribeAudit records fired tiers, drift, and failures to the audit log.
func (d *Daemon) subscribeAudit() {
	record := func(ev events.Event) {
		if err := d.audit.Record(ev); err != nil {
			d.logger.Errorf("audit record: %v", err)
		}
	}
	for _, t := range []events.Type{
		events.TypeTierFired,
		events.TypeDriftWarning,
		events.TypeHandlerFailed,
		events.TypeTaskSkipped,
		events.TypeSourceError,
	} {
		d.unsubAudit = append(d.unsubAudit, d.bus.Subscribe(t, record))
	}
}

// Run starts the daemon and blocks until shutdown completes.
func (d *Daemon) Run() error {
	if err := d.fileLock.TryLock(); err != nil {
		return fmt.Errorf("daemon lock: %w", err)
	}
	d.logger.Infof("daemon starting pid=%d dir=%s", os.Getpid(), d.chimeDir)

	d.registerOps()
	if err := d.server.Start(); err != nil {
		d.cleanup()
		return fmt.Errorf("start ipc server: %w", err)
	}
	d.logger.Infof("ipc listening on %s", filepath.Join(d.chimeDir, ipc.DefaultSocketName))

	if d.config.Agenda.Watch {
		watcher, err := agenda.NewWatcher(d.provider.Dir(), d.driver.Kick, d.logger.WithComponent("watcher"))
		if err != nil {
			// Polling still works without the watcher.
			d.logger.Warnf("agenda watcher unavailable: %v", err)
		} else {
			d.watcher = watcher
		}
	}

	interval := time.Duration(d.config.Scheduler.IntervalSec) * time.Second
	if err := d.driver.Start(interval); err != nil {
		d.cleanup()
		return fmt.Errorf("start driver: %w", err)
	}

	// Evaluate once at startup rather than waiting a full interval.
	d.driver.Kick()
	d.logger.Infof("daemon ready interval=%ds policies=%v", d.config.Scheduler.IntervalSec, d.registry.Names())

	d.waitSignals()
	return nil
}

type actionParams struct {
	DispatchID string `json:"dispatch_id"`
	Key        string `json:"key"`
}

type closeParams struct {
	DispatchID string `json:"dispatch_id"`
	Reason     string `json:"reason"`
}

// registerOps wires the CLI-facing operations, including the user-action
// callback surface for interactive notifications.
func (d *Daemon) registerOps() {
	d.server.Handle("ping", func(req *ipc.Request) *ipc.Response {
		return ipc.SuccessResponse(map[string]string{"status": "ok"})
	})

	d.server.Handle("tick", func(req *ipc.Request) *ipc.Response {
		d.driver.Kick()
		return ipc.SuccessResponse(map[string]string{"status": "tick_requested"})
	})

	d.server.Handle("action", func(req *ipc.Request) *ipc.Response {
		var p actionParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return ipc.ErrorResponse(ipc.ErrCodeValidation, err.Error())
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.dispatcher.OnUserAction(ctx, p.DispatchID, p.Key); err != nil {
			if errors.Is(err, dispatch.ErrUnknownDispatch) {
				return ipc.ErrorResponse(ipc.ErrCodeNotFound, err.Error())
			}
			return ipc.ErrorResponse(ipc.ErrCodeInternal, err.Error())
		}
		return ipc.SuccessResponse(map[string]string{"status": "applied"})
	})

	d.server.Handle("close", func(req *ipc.Request) *ipc.Response {
		var p closeParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return ipc.ErrorResponse(ipc.ErrCodeValidation, err.Error())
		}
		if p.Reason == "" {
			p.Reason = "closed"
		}
		d.dispatcher.OnClose(p.DispatchID, p.Reason)
		return ipc.SuccessResponse(map[string]string{"status": "closed"})
	})

	d.server.Handle("records", func(req *ipc.Request) *ipc.Response {
		return ipc.SuccessResponse(map[string]any{"records": d.dispatcher.Records()})
	})

	d.server.Handle("shutdown", func(req *ipc.Request) *ipc.Response {
		d.logger.Infof("shutdown requested via ipc")
		go d.Shutdown()
		return ipc.SuccessResponse(map[string]string{"status": "shutdown_accepted"})
	})
}

// waitSignals blocks until a shutdown signal arrives.
func (d *Daemon) waitSignals() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	d.logger.Infof("received signal=%s, shutting down", sig)

	// A second signal forces exit.
	go func() {
		<-sigCh
		d.logger.Warnf("received second signal, forcing exit")
		os.Exit(1)
	}()

	d.Shutdown()
}

// Shutdown stops the daemon gracefully. Idempotent.
func (d *Daemon) Shutdown() {
	d.shutdown.Do(func() {
		d.logger.Infof("shutdown started")

		// Stop tick sources first: no new dispatches after this.
		d.driver.Stop()
		if d.watcher != nil {
			_ = d.watcher.Close()
		}
		_ = d.server.Stop()

		// Drain in-flight dispatches with a timeout.
		done := make(chan struct{})
		go func() {
			d.dispatcher.Wait()
			close(done)
		}()
		select {
		case <-done:
			d.logger.Infof("dispatches drained")
		case <-time.After(time.Duration(d.config.Scheduler.ShutdownTimeoutSec) * time.Second):
			d.logger.Warnf("shutdown timeout after %ds, abandoning in-flight dispatches",
				d.config.Scheduler.ShutdownTimeoutSec)
		}

		d.cleanup()
		d.logger.Infof("daemon stopped")
	})
}

func (d *Daemon) cleanup() {
	for _, unsub := range d.unsubAudit {
		unsub()
	}
	d.bus.Close()
	_ = d.audit.Close()
	_ = d.fileLock.Unlock()
	if d.logFile != nil {
		_ = d.logFile.Close()
	}
}
