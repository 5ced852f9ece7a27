// Package dropzone watches a folder for dropped-in audio files and
// auto-submits each one as a transcription job, the same recursive
// fsnotify-watch pattern the teacher uses for its upload dropzone.
package dropzone

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"transcribecore/internal/config"
	"transcribecore/internal/models"
	"transcribecore/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// Submitter creates a job record and enqueues it for processing, the
// surface dropzone needs out of the rest of the core (webapi's handler
// implements the same contract for POST /transcribe).
type Submitter interface {
	Submit(jobID string, sourcePath string, opts models.JobOptions) error
}

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".flac": true, ".m4a": true, ".aac": true,
	".ogg": true, ".wma": true, ".mp4": true, ".avi": true, ".mov": true,
	".mkv": true, ".webm": true,
}

// Service watches config.DropzonePath and auto-submits every audio file
// dropped into it (or already present at startup) as a job with the
// default instrument set {piano, vocals, drums, bass, guitar, other}.
type Service struct {
	cfg       *config.Config
	watcher   *fsnotify.Watcher
	submitter Submitter
}

// NewService builds the dropzone watcher.
func NewService(cfg *config.Config, submitter Submitter) *Service {
	return &Service{cfg: cfg, submitter: submitter}
}

// Start creates the dropzone directory, ingests anything already sitting
// in it, then watches for new arrivals in a background goroutine.
func (s *Service) Start() error {
	if err := os.MkdirAll(s.cfg.DropzonePath, 0o755); err != nil {
		return fmt.Errorf("create dropzone directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	s.watcher = watcher

	if err := s.addDirectoryRecursively(s.cfg.DropzonePath); err != nil {
		s.watcher.Close()
		return fmt.Errorf("watch dropzone directories: %w", err)
	}

	if err := s.processExistingFiles(); err != nil {
		logger.Warn("dropzone: failed to process some existing files", "error", err)
	}

	go s.watchFiles()
	logger.Info("dropzone service started", "path", s.cfg.DropzonePath)
	return nil
}

// Stop closes the underlying filesystem watcher.
func (s *Service) Stop() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

func (s *Service) addDirectoryRecursively(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logger.Warn("dropzone: error accessing path", "path", path, "error", err)
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if err := s.watcher.Add(path); err != nil {
			logger.Warn("dropzone: failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (s *Service) processExistingFiles() error {
	return filepath.Walk(s.cfg.DropzonePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logger.Warn("dropzone: error accessing path", "path", path, "error", err)
			return nil
		}
		if !info.IsDir() && isAudioFile(path) {
			s.processFile(path)
		}
		return nil
	})
}

func (s *Service) watchFiles() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := s.addDirectoryRecursively(event.Name); err != nil {
					logger.Warn("dropzone: failed to watch new directory", "path", event.Name, "error", err)
				}
				continue
			}
			s.processFile(event.Name)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("dropzone watcher error", "error", err)
		}
	}
}

func isAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// processFile submits one dropped-in file as a job and removes it from
// the dropzone on success.
func (s *Service) processFile(path string) {
	time.Sleep(500 * time.Millisecond) // let the writer finish flushing

	if !isAudioFile(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	jobID := uuid.New().String()
	opts := models.JobOptions{
		Instruments: []string{
			models.InstrumentPiano, models.InstrumentVocals, models.InstrumentDrums,
			models.InstrumentBass, models.InstrumentGuitar, models.InstrumentOther,
		},
	}
	if err := s.submitter.Submit(jobID, path, opts); err != nil {
		logger.Warn("dropzone: failed to submit job", "path", path, "error", err)
		return
	}

	var deleteErr error
	for i := 0; i < 5; i++ {
		if deleteErr = os.Remove(path); deleteErr == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if deleteErr != nil {
		logger.Warn("dropzone: failed to remove ingested file", "path", path, "error", deleteErr)
	} else {
		logger.Info("dropzone: ingested file", "path", path, "job_id", jobID)
	}
}
