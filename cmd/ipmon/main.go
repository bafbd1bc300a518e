package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/ipmon/internal/config"
	"github.com/hamed0406/ipmon/internal/display"
	"github.com/hamed0406/ipmon/internal/heartbeat"
	"github.com/hamed0406/ipmon/internal/httpapi"
	"github.com/hamed0406/ipmon/internal/logging"
	"github.com/hamed0406/ipmon/internal/monitor"
	"github.com/hamed0406/ipmon/internal/probe"
	"github.com/hamed0406/ipmon/internal/registry"
	"github.com/hamed0406/ipmon/internal/reload"
	"github.com/hamed0406/ipmon/internal/taskmgr"
)

func main() {
	cfg := config.FromEnv()
	flag.StringVar(&cfg.TargetsFile, "config", cfg.TargetsFile, "targets file (YAML)")
	flag.StringVar(&cfg.LogDir, "logdir", cfg.LogDir, "log directory")
	flag.StringVar(&cfg.LogLevel, "level", cfg.LogLevel, "log level: debug, info, warn, error")
	displaySec := flag.Int("display", int(cfg.DisplayInterval/time.Second), "status display interval in seconds")
	flag.Parse()
	if *displaySec > 0 {
		cfg.DisplayInterval = time.Duration(*displaySec) * time.Second
	}

	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := taskmgr.New(taskmgr.WithCapacity(cfg.MaxTasks))
	source := &registry.FileSource{Path: cfg.TargetsFile}
	factory := func() *monitor.Engine {
		return monitor.NewEngine(logger, mgr, probe.NewPinger())
	}
	coord := reload.NewCoordinator(logger, source, factory, cfg.ReloadInterval)

	logger.Info("ipmon_starting", zap.String("targets_file", cfg.TargetsFile))
	if err := coord.Bootstrap(); err != nil {
		logger.Error("startup_failed", zap.Error(err))
		os.Exit(1)
	}

	var pub *heartbeat.Publisher
	if cfg.MQTTBroker != "" {
		pub, err = heartbeat.Connect(logger, mgr, cfg.MQTTBroker, cfg.MQTTTopic, cfg.HeartbeatInterval)
		if err != nil {
			logger.Warn("heartbeat_disabled", zap.Error(err))
			pub = nil
		} else if _, err := mgr.Create(pub.Run, "heartbeat"); err != nil {
			logger.Warn("heartbeat_task_failed", zap.Error(err))
		}
	}

	api := httpapi.NewServer(logger, coord)
	srv := &http.Server{Addr: cfg.Addr, Handler: api.Router()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		coord.Run(gctx)
		return nil
	})
	g.Go(func() error {
		display.New(os.Stdout, coord, cfg.DisplayInterval).Run(gctx)
		return nil
	})
	g.Go(func() error {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shctx)
	})

	logger.Info("ipmon_started", zap.String("addr", cfg.Addr))
	runErr := g.Wait()

	// Orderly shutdown: stop the engine, release the task manager,
	// then drop the broker connection.
	coord.Shutdown()
	mgr.Destroy()
	if pub != nil {
		pub.Close()
	}

	if runErr != nil {
		logger.Error("run_error", zap.Error(runErr))
		os.Exit(1)
	}
	logger.Info("ipmon_stopped")
}
