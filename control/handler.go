package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"

	"github.com/shuttlehq/shuttle/session"
)

// Handler dispatches control protocol requests to a session manager. Storage
// errors are logged in full but never leak verbatim into responses.
type Handler struct {
	manager *session.Manager
	logger  log.Logger
	now     func() time.Time
}

// NewHandler ...
func NewHandler(manager *session.Manager, logger log.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle processes one control protocol request.
func (h *Handler) Handle(ctx context.Context, req Request) Response {
	switch req.Action {
	case ActionInitUpload:
		return h.initUpload(ctx, req)
	case ActionCompleteUpload:
		return h.completeUpload(ctx, req)
	case ActionAbortUpload:
		return h.abortUpload(ctx, req)
	default:
		return inputFailure(fmt.Sprintf("unknown action %q", req.Action))
	}
}

func (h *Handler) initUpload(ctx context.Context, req Request) Response {
	source, err := session.ParseSource(req.Source)
	if err != nil {
		return h.failure(err)
	}
	tier, err := session.ParseTier(req.Tier)
	if err != nil {
		return h.failure(err)
	}
	if req.FileName == "" {
		return inputFailure("fileName is required")
	}
	if req.ContentType == "" {
		return inputFailure("contentType is required")
	}
	if req.PartCount < 1 {
		return inputFailure(fmt.Sprintf("partCount must be positive, got %d", req.PartCount))
	}

	dest, err := h.manager.Resolve(source, tier)
	if err != nil {
		return h.failure(err)
	}

	objectKey := session.BuildObjectKey(h.now(), req.FileName)
	sessionID, err := h.manager.OpenSession(ctx, session.OpenParams{
		Destination: dest,
		ObjectKey:   objectKey,
		ContentType: req.ContentType,
		Checksum:    req.Checksum,
		PartCount:   req.PartCount,
	})
	if err != nil {
		return h.failure(err)
	}

	targets := make([]TargetPayload, 0, req.PartCount)
	for partNumber := int32(1); partNumber <= req.PartCount; partNumber++ {
		target, err := h.manager.AuthorizePart(ctx, sessionID, partNumber)
		if err != nil {
			if abortErr := h.manager.AbortSession(ctx, sessionID, objectKey); abortErr != nil {
				h.logger.Warnf("Cleanup after failed authorization: %s", abortErr)
			}
			return h.failure(err)
		}
		targets = append(targets, targetPayload(target))
	}

	return Response{
		OK:        true,
		SessionID: sessionID,
		ObjectKey: objectKey,
		Targets:   targets,
	}
}

func (h *Handler) completeUpload(ctx context.Context, req Request) Response {
	if req.ObjectKey == "" {
		return inputFailure("objectKey is required")
	}
	if req.SessionID == "" {
		return inputFailure("sessionId is required")
	}
	if len(req.Parts) == 0 {
		return inputFailure("parts must not be empty")
	}
	parts := make([]session.PartAck, len(req.Parts))
	for i, part := range req.Parts {
		if part.PartNumber < 1 {
			return inputFailure(fmt.Sprintf("malformed parts array: part number %d", part.PartNumber))
		}
		if part.IntegrityToken == "" {
			return inputFailure(fmt.Sprintf("malformed parts array: empty integrity token for part %d", part.PartNumber))
		}
		parts[i] = session.PartAck{
			PartNumber:     part.PartNumber,
			IntegrityToken: part.IntegrityToken,
		}
	}

	objectURL, err := h.manager.CompleteSession(ctx, req.SessionID, req.ObjectKey, parts)
	if err != nil {
		return h.failure(err)
	}

	return Response{
		OK:        true,
		ObjectKey: req.ObjectKey,
		ObjectURL: objectURL,
	}
}

func (h *Handler) abortUpload(ctx context.Context, req Request) Response {
	if req.ObjectKey == "" {
		return inputFailure("objectKey is required")
	}
	if req.SessionID == "" {
		return inputFailure("sessionId is required")
	}

	// A failed abort is logged, never escalated: the acknowledgement is
	// success-or-already-gone either way.
	if err := h.manager.AbortSession(ctx, req.SessionID, req.ObjectKey); err != nil {
		h.logger.Warnf("Abort of session %s: %s", req.SessionID, err)
	}

	return Response{OK: true}
}

// failure maps an error of the session taxonomy to a response, logging the
// full chain and sanitizing what goes on the wire.
func (h *Handler) failure(err error) Response {
	switch {
	case errors.Is(err, session.ErrInput), errors.Is(err, session.ErrIncompletePartSet):
		return Response{OK: false, ErrorKind: ErrorKindInput, Error: err.Error()}
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionTerminal):
		return Response{OK: false, ErrorKind: ErrorKindSession, Error: err.Error()}
	case errors.Is(err, session.ErrUpstream), errors.Is(err, session.ErrDestinationUnavailable):
		h.logger.Errorf("Upstream failure: %s", err)
		return Response{OK: false, ErrorKind: ErrorKindUpstream, Error: "storage rejected the operation"}
	default:
		h.logger.Errorf("Unhandled failure: %s", err)
		return Response{OK: false, ErrorKind: ErrorKindInternal, Error: "internal error"}
	}
}

func inputFailure(message string) Response {
	return Response{OK: false, ErrorKind: ErrorKindInput, Error: message}
}
