// Package control implements the upload control protocol: one logical
// endpoint discriminated by an action field, brokering session lifecycle
// operations between transfer clients and the session manager.
package control

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shuttlehq/shuttle/session"
)

// Supported action values.
const (
	ActionInitUpload     = "initUpload"
	ActionCompleteUpload = "completeUpload"
	ActionAbortUpload    = "abortUpload"
)

// Error kinds reported in responses.
const (
	ErrorKindInput    = "input"
	ErrorKindSession  = "session"
	ErrorKindUpstream = "upstream"
	ErrorKindInternal = "internal"
)

// Request is the control protocol request envelope.
type Request struct {
	Action      string      `json:"action"`
	Source      string      `json:"source,omitempty"`
	Tier        string      `json:"tier,omitempty"`
	FileName    string      `json:"fileName,omitempty"`
	ContentType string      `json:"contentType,omitempty"`
	Checksum    string      `json:"checksum,omitempty"`
	PartCount   int32       `json:"partCount,omitempty"`
	ObjectKey   string      `json:"objectKey,omitempty"`
	SessionID   string      `json:"sessionId,omitempty"`
	Parts       []PartInput `json:"parts,omitempty"`
}

// PartInput acknowledges one transferred part on the wire.
type PartInput struct {
	IntegrityToken string `json:"integrityToken"`
	PartNumber     int32  `json:"partNumber"`
}

// TargetPayload is one part upload authorization on the wire.
type TargetPayload struct {
	PartNumber int32             `json:"partNumber"`
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers,omitempty"`
	ExpiresAt  time.Time         `json:"expiresAt"`
}

// Response is the control protocol response envelope.
type Response struct {
	OK        bool            `json:"ok"`
	Error     string          `json:"error,omitempty"`
	ErrorKind string          `json:"errorKind,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	ObjectKey string          `json:"objectKey,omitempty"`
	Targets   []TargetPayload `json:"targets,omitempty"`
	ObjectURL string          `json:"objectUrl,omitempty"`
}

func targetPayload(target session.UploadTarget) TargetPayload {
	var headers map[string]string
	if len(target.Header) > 0 {
		headers = make(map[string]string, len(target.Header))
		for name := range target.Header {
			headers[name] = target.Header.Get(name)
		}
	}
	return TargetPayload{
		PartNumber: target.PartNumber,
		URL:        target.URL,
		Method:     target.Method,
		Headers:    headers,
		ExpiresAt:  target.ExpiresAt,
	}
}

func uploadTarget(payload TargetPayload) session.UploadTarget {
	header := http.Header{}
	for name, value := range payload.Headers {
		header.Set(name, value)
	}
	return session.UploadTarget{
		PartNumber: payload.PartNumber,
		URL:        payload.URL,
		Method:     payload.Method,
		Header:     header,
		ExpiresAt:  payload.ExpiresAt,
	}
}

// responseError converts a failure response back into an error of the session
// taxonomy so remote and in-process brokers are indistinguishable to callers.
func responseError(resp Response) error {
	if resp.OK {
		return nil
	}
	switch resp.ErrorKind {
	case ErrorKindInput:
		return fmt.Errorf("%w: %s", session.ErrInput, resp.Error)
	case ErrorKindSession:
		return fmt.Errorf("%w: %s", session.ErrSessionNotFound, resp.Error)
	default:
		return fmt.Errorf("%w: %s", session.ErrUpstream, resp.Error)
	}
}
