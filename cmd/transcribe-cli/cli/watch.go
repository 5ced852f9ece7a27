package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"transcribecore/internal/audio"
	"transcribecore/internal/config"
	"transcribecore/internal/database"
	"transcribecore/internal/dropzone"
	"transcribecore/internal/jobstore"
	"transcribecore/internal/modelengine"
	"transcribecore/internal/models"
	"transcribecore/internal/pipeline"
	"transcribecore/internal/queue"
	"transcribecore/internal/refiner"
	"transcribecore/internal/repository"
	"transcribecore/internal/separator"
	"transcribecore/internal/transcribe"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <folder>",
	Short: "Watch a folder and transcribe dropped-in files with an embedded pipeline (no server required)",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// localSubmitter adapts jobstore.Store + queue.Queue to dropzone.Submitter,
// the same shape webapi.Handler.Submit uses against the server process.
type localSubmitter struct {
	store *jobstore.Store
	q     *queue.Queue
}

func (s *localSubmitter) Submit(jobID string, sourcePath string, opts models.JobOptions) error {
	if _, err := s.store.Create(context.Background(), jobID, models.SourceUpload, sourcePath, opts); err != nil {
		return err
	}
	s.q.Enqueue(jobID)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	folder, err := filepath.Abs(args[0])
	if err != nil {
		return userError(fmt.Errorf("resolve folder path: %w", err))
	}
	if _, err := os.Stat(folder); os.IsNotExist(err) {
		return userError(fmt.Errorf("folder does not exist: %s", folder))
	}

	if err := SaveConfig("", folder); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to save watch folder to config: %v\n", err)
	}

	cfg := config.Load()
	cfg.DropzonePath = folder

	if err := database.Initialize(cfg.DatabasePath); err != nil {
		return infraError(fmt.Errorf("initialize database: %w", err))
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
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)

	dz := dropzone.NewService(cfg, &localSubmitter{store: store, q: q})
	if err := dz.Start(); err != nil {
		cancel()
		return infraError(fmt.Errorf("start dropzone watcher: %w", err))
	}

	fmt.Printf("watching %s for new audio files (embedded pipeline, no server)\n", folder)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	q.Stop(10 * time.Second)
	_ = dz.Stop()
	return nil
}
