package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/framepulse/framepulse-core/internal/api"
	"github.com/framepulse/framepulse-core/internal/config"
	"github.com/framepulse/framepulse-core/internal/detectors"
	"github.com/framepulse/framepulse-core/internal/pipeline"
	"github.com/framepulse/framepulse-core/internal/scheduler"
	"github.com/framepulse/framepulse-core/internal/services"
	"github.com/framepulse/framepulse-core/internal/stream"
	"github.com/framepulse/framepulse-core/internal/video"
	"github.com/framepulse/framepulse-core/pkg/cache"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logg := logger.New(cfg.LogLevel)
	logg.Info("starting FRAMEPULSE-CORE", "version", api.Version, "environment", cfg.Environment)

	profiles := config.NewProfileStore(logg)
	if cfg.Detection.ProfilesFile != "" {
		if err := profiles.LoadFile(cfg.Detection.ProfilesFile); err != nil {
			logg.Fatal("failed to load threshold profiles", "file", cfg.Detection.ProfilesFile, "error", err)
		}
		watcher, err := profiles.Watch(cfg.Detection.ProfilesFile)
		if err != nil {
			logg.Warn("profile hot reload unavailable", "error", err)
		} else {
			defer watcher.Close()
		}
	}

	cacheAddr := ""
	if len(cfg.Cache.Nodes) > 0 {
		cacheAddr = cfg.Cache.Nodes[0]
	}
	verdictCache := cache.New(cacheAddr, "", 0, time.Duration(cfg.Cache.TTLSeconds)*time.Second, logg)

	registry, err := detectors.NewDefaultRegistry()
	if err != nil {
		logg.Fatal("failed to build detector registry", "error", err)
	}
	pipe := pipeline.New(registry, logg)
	engine := video.NewEngine(pipe, logg)

	diagService := services.NewDiagnosisService(pipe, profiles, verdictCache, cfg.Detection,
		time.Duration(cfg.Cache.TTLSeconds)*time.Second, logg)
	videoService := services.NewVideoService(engine, diagService, cfg.Video, logg)

	streamManager := stream.NewManager(stream.UnconfiguredConnector{}, pipe, engine, profiles, cfg.Stream, logg)
	streamManager.SetMaxStreams(cfg.Stream.MaxStreams)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		store, err := scheduler.NewStore(cfg.Scheduler.DataDir)
		if err != nil {
			logg.Fatal("failed to open scheduler store", "dir", cfg.Scheduler.DataDir, "error", err)
		}
		taskService := services.NewTaskService(diagService, videoService, logg)
		sched = scheduler.New(store, taskService, cfg.Scheduler.Workers, cfg.Scheduler.HistoryRetention, logg,
			scheduler.WithTick(time.Duration(cfg.Scheduler.TickSeconds)*time.Second))
		go sched.Run(ctx)
	}

	apiServer := api.NewServer(cfg, logg, diagService, videoService, streamManager, sched)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logg.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logg.Error("HTTP shutdown failed", "error", err)
		}
		streamManager.Shutdown()
		cancel()
		if sched != nil {
			sched.Wait()
		}
		os.Exit(0)
	}()

	if err := apiServer.Start(); err != nil {
		logg.Fatal("server failed", "error", err)
	}
}
