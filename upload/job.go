package upload

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/shuttlehq/shuttle/session"
)

// Status is the lifecycle state of a Job.
type Status int32

// Job states. The only transitions are Idle → Uploading → {Completed, Error},
// plus an explicit Reset from a terminal state back to Idle.
const (
	StatusIdle Status = iota
	StatusUploading
	StatusCompleted
	StatusError
)

// String ...
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusUploading:
		return "uploading"
	case StatusCompleted:
		return "completed"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Job is the client-visible unit of work wrapping one file. A Job is
// exclusively owned by the orchestration handling it and must not be shared
// across concurrent orchestrations.
type Job struct {
	ID          string
	Source      session.Source
	Tier        session.Tier
	FileName    string
	ContentType string
	Size        int64

	// Checksum is an optional SHA-256 content checksum, recorded on the
	// committed object as metadata. Set it before handing the job to the
	// orchestrator.
	Checksum string

	status         int32
	progress       int32
	completedParts int64

	mu        sync.Mutex
	objectURL string
	err       error
}

// NewJob creates a Job in the Idle state.
func NewJob(id string, source session.Source, tier session.Tier, fileName, contentType string, size int64) *Job {
	return &Job{
		ID:          id,
		Source:      source,
		Tier:        tier,
		FileName:    fileName,
		ContentType: contentType,
		Size:        size,
	}
}

// Status ...
func (j *Job) Status() Status {
	return Status(atomic.LoadInt32(&j.status))
}

// Progress reports upload progress in [0, 100]. It is monotonically
// non-decreasing within one upload attempt and reaches 100 exactly when the
// job completes.
func (j *Job) Progress() int {
	return int(atomic.LoadInt32(&j.progress))
}

// ObjectURL returns the access URL of the committed object, set on
// completion.
func (j *Job) ObjectURL() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.objectURL
}

// Err returns the error that moved the job to StatusError, if any.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Reset returns a terminal job to Idle so a new upload attempt can start.
func (j *Job) Reset() error {
	status := j.Status()
	if status != StatusCompleted && status != StatusError {
		return fmt.Errorf("cannot reset job in status %s", status)
	}
	j.mu.Lock()
	j.objectURL = ""
	j.err = nil
	j.mu.Unlock()
	atomic.StoreInt64(&j.completedParts, 0)
	atomic.StoreInt32(&j.progress, 0)
	atomic.StoreInt32(&j.status, int32(StatusIdle))
	return nil
}

// beginUpload transitions Idle → Uploading exactly once per attempt and
// resets progress to 0.
func (j *Job) beginUpload() error {
	if !atomic.CompareAndSwapInt32(&j.status, int32(StatusIdle), int32(StatusUploading)) {
		return fmt.Errorf("job %s is %s, expected %s", j.ID, j.Status(), StatusIdle)
	}
	atomic.StoreInt64(&j.completedParts, 0)
	atomic.StoreInt32(&j.progress, 0)
	return nil
}

// notePartDone increments the completed part counter and recomputes progress.
// It is called concurrently by part-transfer goroutines: the stored value only
// ever moves up, so two interleaved calls cannot publish a stale lower value.
// Progress is held below 100 until completion is confirmed: 100 is reserved
// for StatusCompleted.
func (j *Job) notePartDone(totalParts int32) {
	done := atomic.AddInt64(&j.completedParts, 1)
	progress := int32(math.Round(float64(done) * 100 / float64(totalParts)))
	if progress > 99 {
		progress = 99
	}
	for {
		current := atomic.LoadInt32(&j.progress)
		if progress <= current || atomic.CompareAndSwapInt32(&j.progress, current, progress) {
			return
		}
	}
}

func (j *Job) markCompleted(objectURL string) {
	j.mu.Lock()
	j.objectURL = objectURL
	j.mu.Unlock()
	atomic.StoreInt32(&j.progress, 100)
	atomic.StoreInt32(&j.status, int32(StatusCompleted))
}

func (j *Job) markError(err error) {
	j.mu.Lock()
	j.err = err
	j.mu.Unlock()
	atomic.StoreInt32(&j.status, int32(StatusError))
}
