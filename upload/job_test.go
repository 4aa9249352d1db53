package upload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuttlehq/shuttle/session"
)

func newIdleJob() *Job {
	return NewJob("job-1", session.SourceWeb, session.TierStandard, "report.pdf", "application/pdf", 25)
}

func TestJob_Lifecycle(t *testing.T) {
	job := newIdleJob()
	assert.Equal(t, StatusIdle, job.Status())
	assert.Equal(t, 0, job.Progress())

	require.NoError(t, job.beginUpload())
	assert.Equal(t, StatusUploading, job.Status())

	// Only one attempt can own the job at a time.
	assert.Error(t, job.beginUpload())

	job.markCompleted("https://cdn.example.com/key-1")
	assert.Equal(t, StatusCompleted, job.Status())
	assert.Equal(t, 100, job.Progress())
	assert.Equal(t, "https://cdn.example.com/key-1", job.ObjectURL())
}

func TestJob_MarkError(t *testing.T) {
	job := newIdleJob()
	require.NoError(t, job.beginUpload())

	cause := errors.New("part transfer failed")
	job.markError(cause)

	assert.Equal(t, StatusError, job.Status())
	assert.Equal(t, cause, job.Err())
	assert.Empty(t, job.ObjectURL())
}

func TestJob_ProgressIsMonotonicAndCapped(t *testing.T) {
	job := newIdleJob()
	require.NoError(t, job.beginUpload())

	previous := job.Progress()
	for i := 0; i < 3; i++ {
		job.notePartDone(3)
		current := job.Progress()
		assert.GreaterOrEqual(t, current, previous)
		previous = current
	}

	// Every part is done but completion is not confirmed yet.
	assert.Equal(t, 99, job.Progress())

	job.markCompleted("https://cdn.example.com/key-1")
	assert.Equal(t, 100, job.Progress())
}

func TestJob_ProgressSinglePart(t *testing.T) {
	job := newIdleJob()
	require.NoError(t, job.beginUpload())

	job.notePartDone(1)

	assert.Equal(t, 99, job.Progress())
}

func TestJob_Reset(t *testing.T) {
	job := newIdleJob()

	assert.Error(t, job.Reset())

	require.NoError(t, job.beginUpload())
	assert.Error(t, job.Reset())

	job.markError(errors.New("boom"))
	require.NoError(t, job.Reset())
	assert.Equal(t, StatusIdle, job.Status())
	assert.Equal(t, 0, job.Progress())
	assert.NoError(t, job.Err())

	require.NoError(t, job.beginUpload())
	job.markCompleted("https://cdn.example.com/key-1")
	require.NoError(t, job.Reset())
	assert.Empty(t, job.ObjectURL())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "uploading", StatusUploading.String())
	assert.Equal(t, "completed", StatusCompleted.String())
	assert.Equal(t, "error", StatusError.String())
}
