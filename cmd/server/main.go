package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transcribecore/internal/audio"
	"transcribecore/internal/config"
	"transcribecore/internal/database"
	"transcribecore/internal/dropzone"
	"transcribecore/internal/jobstore"
	"transcribecore/internal/modelengine"
	"transcribecore/internal/pipeline"
	"transcribecore/internal/queue"
	"transcribecore/internal/refiner"
	"transcribecore/internal/repository"
	"transcribecore/internal/separator"
	"transcribecore/internal/transcribe"
	"transcribecore/internal/webapi"
	"transcribecore/pkg/logger"

	_ "transcribecore/docs"

	"github.com/gin-gonic/gin"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// @title Transcription Orchestration Core
// @version 1.0
// @description Converts recorded audio into per-instrument MIDI via a separation + ensemble-transcription + TTA + refinement pipeline.
// @termsOfService http://swagger.io/terms/

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

func main() {
	var showVersion = flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("transcribecore %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	cfg := config.Load()

	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Info("starting transcription orchestration core", "version", version, "commit", commit)

	if err := database.Initialize(cfg.DatabasePath); err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	jobRepo := repository.NewJobRepository(database.DB)
	bus := jobstore.NewEventBus()
	defer bus.Close()
	store := jobstore.NewStore(jobRepo, bus)

	engines := modelengine.NewEngines(cfg)
	defer engines.TeardownAll()

	acquirer := audio.NewAcquirer(nil)
	sep := separator.NewSeparator(engines.Separator, cfg.EnergyFloor)
	generalist := transcribe.NewGeneralist(engines.Generalist)
	piano := transcribe.NewPianoSpecialist(engines.Piano)
	ref := refiner.NewRefiner(engines.Refiner)

	orchestrator := pipeline.New(store, acquirer, sep, generalist, piano, ref, pipeline.Config{
		WorkspaceRoot:      cfg.WorkspaceRoot,
		WeightA:            cfg.WeightA,
		WeightBPiano:       cfg.WeightBPiano,
		VoteThreshold:      cfg.VoteThreshold,
		VoteToleranceSec:   cfg.VoteToleranceSec,
		TTAToleranceSec:    cfg.TTAToleranceSec,
		TTAMinVotes:        cfg.TTAMinVotes,
		DurationCeilingSec: cfg.DurationCeilingSec,
		EnergyFloor:        cfg.EnergyFloor,
	})

	q := queue.New(orchestrator, cfg.QueueWorkers)
	queueCtx, cancelQueue := context.WithCancel(context.Background())
	q.Start(queueCtx)

	handler := webapi.NewHandler(store, q, cfg.WorkspaceRoot)

	dropzoneService := dropzone.NewService(cfg, handler)
	if err := dropzoneService.Start(); err != nil {
		logger.Error("failed to start dropzone service", "error", err)
		os.Exit(1)
	}

	if cfg.Host != "localhost" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := webapi.SetupRoutes(handler)

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("http server listening", "host", cfg.Host, "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	cancelQueue()
	q.Stop(10 * time.Second)

	if err := dropzoneService.Stop(); err != nil {
		logger.Warn("dropzone stop error", "error", err)
	}

	logger.Info("server exited")
}
