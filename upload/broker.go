package upload

import (
	"context"

	"github.com/shuttlehq/shuttle/session"
)

// InitParams describes one upload to be opened.
type InitParams struct {
	Source      session.Source
	Tier        session.Tier
	FileName    string
	ContentType string
	Checksum    string
	PartCount   int32
}

// InitResult carries the opened session and its part upload targets, ordered
// by part number.
type InitResult struct {
	SessionID string
	ObjectKey string
	Targets   []session.UploadTarget
}

// CompleteParams carries the full acknowledged part set of one upload.
type CompleteParams struct {
	Source    session.Source
	Tier      session.Tier
	ObjectKey string
	SessionID string
	Parts     []session.PartAck
}

// AbortParams identifies the session to release.
type AbortParams struct {
	Source    session.Source
	Tier      session.Tier
	ObjectKey string
	SessionID string
}

// Broker is the orchestrator's view of the session manager. The control
// package provides an in-process implementation over a Handler and an HTTP
// client for remote managers.
type Broker interface {
	InitUpload(ctx context.Context, params InitParams) (InitResult, error)
	CompleteUpload(ctx context.Context, params CompleteParams) (string, error)
	AbortUpload(ctx context.Context, params AbortParams) error
}
