package upload

import (
	"time"

	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
)

type uploadTracker struct {
	tracker analytics.Tracker
	logger  log.Logger
}

func newUploadTracker(envRepo env.Repository, logger log.Logger) uploadTracker {
	p := analytics.Properties{
		"app_id": envRepo.Get("SHUTTLE_APP_ID"),
		"client": envRepo.Get("SHUTTLE_CLIENT_NAME"),
	}
	return uploadTracker{
		tracker: analytics.NewDefaultTracker(logger, p),
		logger:  logger,
	}
}

func (t *uploadTracker) logUploadStarted(sizeBytes int64, partCount int32) {
	properties := analytics.Properties{
		"upload_size_bytes": sizeBytes,
		"part_count":        partCount,
	}
	t.tracker.Enqueue("upload_started", properties)
}

func (t *uploadTracker) logUploadCompleted(uploadTime time.Duration, sizeBytes int64, partCount int32) {
	properties := analytics.Properties{
		"upload_time_s":     uploadTime.Truncate(time.Second).Seconds(),
		"upload_size_bytes": sizeBytes,
		"part_count":        partCount,
	}
	t.tracker.Enqueue("upload_completed", properties)
}

func (t *uploadTracker) logUploadFailed(uploadTime time.Duration, partCount int32) {
	properties := analytics.Properties{
		"upload_time_s": uploadTime.Truncate(time.Second).Seconds(),
		"part_count":    partCount,
	}
	t.tracker.Enqueue("upload_failed", properties)
}

func (t *uploadTracker) wait() {
	t.tracker.Wait()
}
