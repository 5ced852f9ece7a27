// Package audio handles acquiring a job's source audio into its workspace
// and probing/transforming it with ffmpeg/ffprobe, the same exec-based
// pattern the teacher uses for format preprocessing.
package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"transcribecore/internal/models"
	"transcribecore/internal/stageerr"
)

var (
	ErrInvalidInput      = stageerr.ErrInvalidInput
	ErrSourceUnavailable = stageerr.ErrSourceUnavailable
	ErrInternal          = stageerr.ErrInternal
)

// URLFetcher is the external collaborator spec.md §1 places out of scope:
// "given a URL... yields a local PCM audio path within the job's
// workspace." Any cookie-based auth workflow lives behind this interface.
type URLFetcher interface {
	Fetch(ctx context.Context, url string, destDir string) (localPath string, err error)
}

// Acquirer resolves a job's source into a local file under its workspace.
type Acquirer struct {
	fetcher URLFetcher
}

// NewAcquirer builds an Acquirer. fetcher may be nil; URL-kind jobs will
// then fail with source-unavailable, matching the "opaque precondition"
// treatment of spec.md §9.
func NewAcquirer(fetcher URLFetcher) *Acquirer {
	return &Acquirer{fetcher: fetcher}
}

// Acquire resolves source into <workspaceDir>/source.<ext>, per spec.md
// §4.7 step 2.
func (a *Acquirer) Acquire(ctx context.Context, kind models.SourceKind, value string, workspaceDir string) (string, error) {
	if err := os.MkdirAll(workspaceDir, 0755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInternal, err)
	}

	switch kind {
	case models.SourceUpload:
		return a.acquireUpload(value, workspaceDir)
	case models.SourceURL:
		return a.acquireURL(ctx, value, workspaceDir)
	default:
		return "", fmt.Errorf("%w: unknown source kind %q", ErrInvalidInput, kind)
	}
}

func (a *Acquirer) acquireUpload(path, workspaceDir string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: uploaded file not found: %v", ErrInvalidInput, err)
	}
	dest := filepath.Join(workspaceDir, "source"+filepath.Ext(path))
	if err := copyFile(path, dest); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return dest, nil
}

func (a *Acquirer) acquireURL(ctx context.Context, url, workspaceDir string) (string, error) {
	if a.fetcher == nil {
		return "", fmt.Errorf("%w: no URL fetcher configured", ErrSourceUnavailable)
	}
	path, err := a.fetcher.Fetch(ctx, url, workspaceDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return path, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
