package upload

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"

	"github.com/shuttlehq/shuttle/session"
)

// DefaultParallelism is the maximum number of parts transferred concurrently
// within one batch.
const DefaultParallelism = 10

// Orchestrator drives upload jobs from Idle through Uploading to Completed or
// Error. Parts are transferred in strictly sequential batches; within a batch
// transfers run concurrently with no ordering guarantee. Transfers are never
// retried by the orchestrator: a failed part fails the whole upload.
type Orchestrator struct {
	broker      Broker
	transport   *http.Client
	envRepo     env.Repository
	logger      log.Logger
	parallelism int32
}

// NewOrchestrator creates an orchestrator over the given broker. `transport`
// can be nil, unless you want to provide a custom HTTP client for part
// transfers.
func NewOrchestrator(broker Broker, envRepo env.Repository, logger log.Logger, transport *http.Client) *Orchestrator {
	if transport == nil {
		transport = DefaultTransport()
	}
	return &Orchestrator{
		broker:      broker,
		transport:   transport,
		envRepo:     envRepo,
		logger:      logger,
		parallelism: DefaultParallelism,
	}
}

type partResult struct {
	partNumber int32
	token      string
	err        error
}

// Run uploads one job's parts and finalizes the session. The job must be
// Idle. The declared content type and size are the caller's responsibility to
// validate beforehand (see ValidateFile); an invalid input here is a
// precondition violation, not a recoverable error.
func (o *Orchestrator) Run(ctx context.Context, job *Job, provider PartProvider) error {
	if err := job.beginUpload(); err != nil {
		return err
	}

	partCount := provider.PartCount()
	if partCount < 1 {
		err := fmt.Errorf("%w: no parts to upload", session.ErrInput)
		job.markError(err)
		return err
	}

	tracker := newUploadTracker(o.envRepo, o.logger)
	defer tracker.wait()
	startTime := time.Now()
	tracker.logUploadStarted(job.Size, partCount)

	o.logger.Infof("Uploading %s (%s, %d parts)...",
		job.FileName, units.HumanSizeWithPrecision(float64(job.Size), 3), partCount)

	result, err := o.broker.InitUpload(ctx, InitParams{
		Source:      job.Source,
		Tier:        job.Tier,
		FileName:    job.FileName,
		ContentType: job.ContentType,
		Checksum:    job.Checksum,
		PartCount:   partCount,
	})
	if err != nil {
		// No parts were authorized, nothing to abort.
		err = fmt.Errorf("init upload: %w", err)
		job.markError(err)
		tracker.logUploadFailed(time.Since(startTime), partCount)
		return err
	}
	o.logger.Debugf("Session ID: %s", result.SessionID)

	if int32(len(result.Targets)) != partCount {
		err := fmt.Errorf("target count mismatch: expected %d, got %d", partCount, len(result.Targets))
		o.abort(ctx, job, result)
		job.markError(err)
		tracker.logUploadFailed(time.Since(startTime), partCount)
		return err
	}

	acks, err := o.transferBatches(ctx, job, provider, result.Targets)
	if err != nil {
		// In-flight siblings already finished; abort exactly once, then
		// propagate the original transfer error.
		o.abort(ctx, job, result)
		job.markError(err)
		tracker.logUploadFailed(time.Since(startTime), partCount)
		return err
	}

	sort.Slice(acks, func(i, j int) bool { return acks[i].PartNumber < acks[j].PartNumber })

	objectURL, err := o.broker.CompleteUpload(ctx, CompleteParams{
		Source:    job.Source,
		Tier:      job.Tier,
		ObjectKey: result.ObjectKey,
		SessionID: result.SessionID,
		Parts:     acks,
	})
	if err != nil {
		// The session state after a failed completion is undefined; it is
		// left for out-of-band cleanup rather than aborted.
		err = fmt.Errorf("complete upload: %w", err)
		o.logger.Warnf("Session %s left for out-of-band cleanup after failed completion", result.SessionID)
		job.markError(err)
		tracker.logUploadFailed(time.Since(startTime), partCount)
		return err
	}

	job.markCompleted(objectURL)
	uploadTime := time.Since(startTime).Round(time.Second)
	tracker.logUploadCompleted(time.Since(startTime), job.Size, partCount)
	o.logger.Donef("Uploaded %s in %s", job.FileName, uploadTime)
	return nil
}

// transferBatches partitions part numbers into sequential batches of at most
// `parallelism` parts and transfers each batch concurrently. Batches are
// strictly sequential: every transfer of a batch finishes before the next
// batch starts. On failure the results of in-flight siblings are discarded
// and no further batches are issued.
func (o *Orchestrator) transferBatches(ctx context.Context, job *Job, provider PartProvider, targets []session.UploadTarget) ([]session.PartAck, error) {
	partCount := int32(len(targets))
	acks := make([]session.PartAck, 0, partCount)

	for batchStart := int32(1); batchStart <= partCount; batchStart += o.parallelism {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("upload cancelled: %w", err)
		}

		batchEnd := batchStart + o.parallelism - 1
		if batchEnd > partCount {
			batchEnd = partCount
		}
		batchSize := int(batchEnd - batchStart + 1)
		o.logger.Debugf("Transferring parts %d..%d of %d", batchStart, batchEnd, partCount)

		results := make(chan partResult, batchSize)
		var wg sync.WaitGroup
		for partNumber := batchStart; partNumber <= batchEnd; partNumber++ {
			wg.Add(1)
			go func(partNumber int32, target session.UploadTarget) {
				defer wg.Done()
				token, err := o.transferOne(ctx, provider, partNumber, target)
				if err == nil {
					// Progress moves on each individual part success, not
					// on batch boundaries.
					job.notePartDone(partCount)
				}
				results <- partResult{partNumber: partNumber, token: token, err: err}
			}(partNumber, targets[partNumber-1])
		}
		wg.Wait()
		close(results)

		var failure *partResult
		for result := range results {
			if result.err != nil {
				if failure == nil || result.partNumber < failure.partNumber {
					r := result
					failure = &r
				}
				continue
			}
			acks = append(acks, session.PartAck{
				PartNumber:     result.partNumber,
				IntegrityToken: result.token,
			})
		}
		if failure != nil {
			return nil, fmt.Errorf("transfer part %d: %w", failure.partNumber, failure.err)
		}
	}

	return acks, nil
}

func (o *Orchestrator) transferOne(ctx context.Context, provider PartProvider, partNumber int32, target session.UploadTarget) (string, error) {
	body, err := provider.Part(partNumber)
	if err != nil {
		return "", fmt.Errorf("read part %d: %w", partNumber, err)
	}
	return transferPart(ctx, o.transport, target, body, provider.PartSize(partNumber))
}

// abort issues the best-effort session release. Failures are swallowed so the
// original transfer error is the one that propagates.
func (o *Orchestrator) abort(ctx context.Context, job *Job, result InitResult) {
	err := o.broker.AbortUpload(ctx, AbortParams{
		Source:    job.Source,
		Tier:      job.Tier,
		ObjectKey: result.ObjectKey,
		SessionID: result.SessionID,
	})
	if err != nil {
		o.logger.Warnf("Failed to abort session %s: %s", result.SessionID, err)
	}
}

// Item pairs a job with its part provider for a multi-file run.
type Item struct {
	Job      *Job
	Provider PartProvider
}

// RunAll uploads every item concurrently. Files are independent: one file's
// failure does not cancel sibling pipelines, and there is no ordering
// guarantee between files. The returned slice is aligned with the input; the
// overall request succeeded only if every entry is nil.
func (o *Orchestrator) RunAll(ctx context.Context, items []Item) []error {
	errs := make([]error, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item Item) {
			defer wg.Done()
			errs[i] = o.Run(ctx, item.Job, item.Provider)
		}(i, item)
	}
	wg.Wait()
	return errs
}

// RunFile is a convenience wrapper that partitions the file at path with the
// default chunk size, logs its content checksum and runs the upload.
func (o *Orchestrator) RunFile(ctx context.Context, job *Job, path string) error {
	provider, err := NewFilePartProvider(path, DefaultChunkSize)
	if err != nil {
		return fmt.Errorf("partition file: %w", err)
	}
	defer func() {
		if err := provider.Close(); err != nil {
			o.logger.Errorf("failed to close file: %s", err)
		}
	}()

	checksum, err := checksumOfFile(path)
	if err != nil {
		o.logger.Warnf(err.Error())
		// fail silently and continue
	}
	if job.Checksum == "" {
		job.Checksum = checksum
	}
	o.logger.Debugf("Content checksum: %s", checksum)

	return o.Run(ctx, job, provider)
}
