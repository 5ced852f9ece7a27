package dropzone

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"transcribecore/internal/config"
	"transcribecore/internal/models"
)

type fakeSubmitter struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeSubmitter) Submit(jobID string, sourcePath string, opts models.JobOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sourcePath)
	return nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestIsAudioFile(t *testing.T) {
	cases := map[string]bool{
		"song.mp3":     true,
		"song.WAV":     true,
		"clip.flac":    true,
		"notes.txt":    false,
		"archive.zip":  false,
		"no-extension": false,
	}
	for name, want := range cases {
		if got := isAudioFile(name); got != want {
			t.Errorf("isAudioFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestService_IngestsPreexistingFileOnStart(t *testing.T) {
	dir := t.TempDir()
	dropPath := filepath.Join(dir, "dropzone")
	if err := os.MkdirAll(dropPath, 0o755); err != nil {
		t.Fatal(err)
	}

	audioFile := filepath.Join(dropPath, "take1.wav")
	if err := os.WriteFile(audioFile, []byte("fake-audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	sub := &fakeSubmitter{}
	svc := NewService(&config.Config{DropzonePath: dropPath}, sub)
	if err := svc.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer svc.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if sub.count() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if sub.count() != 1 {
		t.Fatalf("expected exactly one submission, got %d", sub.count())
	}
	if _, err := os.Stat(audioFile); !os.IsNotExist(err) {
		t.Fatalf("expected ingested file to be removed from dropzone, stat err: %v", err)
	}
}

func TestService_IngestsFileDroppedAfterStart(t *testing.T) {
	dir := t.TempDir()
	dropPath := filepath.Join(dir, "dropzone")

	sub := &fakeSubmitter{}
	svc := NewService(&config.Config{DropzonePath: dropPath}, sub)
	if err := svc.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer svc.Stop()

	audioFile := filepath.Join(dropPath, "take2.mp3")
	if err := os.WriteFile(audioFile, []byte("fake-audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if sub.count() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if sub.count() != 1 {
		t.Fatalf("expected exactly one submission, got %d", sub.count())
	}
}
