package upload

import (
	"context"
	"fmt"

	"github.com/melbahja/got"
)

// Fetch downloads a completed object from its access URL to destPath. It is
// a verification helper for collaborators that want to read back what they
// uploaded; the upload pipeline itself never consumes it.
func (o *Orchestrator) Fetch(ctx context.Context, objectURL, destPath string) error {
	downloader := got.New()
	downloader.Client = o.transport

	if err := downloader.Do(got.NewDownload(ctx, objectURL, destPath)); err != nil {
		return fmt.Errorf("fetch object: %w", err)
	}
	return nil
}
