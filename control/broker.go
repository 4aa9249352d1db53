package control

import (
	"context"

	"github.com/shuttlehq/shuttle/session"
	"github.com/shuttlehq/shuttle/upload"
)

// HandlerBroker adapts a Handler to upload.Broker for in-process use, so the
// orchestrator speaks the same protocol whether the session manager is local
// or remote.
type HandlerBroker struct {
	handler *Handler
}

// NewHandlerBroker ...
func NewHandlerBroker(handler *Handler) HandlerBroker {
	return HandlerBroker{handler: handler}
}

// InitUpload ...
func (b HandlerBroker) InitUpload(ctx context.Context, params upload.InitParams) (upload.InitResult, error) {
	resp := b.handler.Handle(ctx, initRequest(params))
	if err := responseError(resp); err != nil {
		return upload.InitResult{}, err
	}
	return initResult(resp), nil
}

// CompleteUpload ...
func (b HandlerBroker) CompleteUpload(ctx context.Context, params upload.CompleteParams) (string, error) {
	resp := b.handler.Handle(ctx, completeRequest(params))
	if err := responseError(resp); err != nil {
		return "", err
	}
	return resp.ObjectURL, nil
}

// AbortUpload ...
func (b HandlerBroker) AbortUpload(ctx context.Context, params upload.AbortParams) error {
	resp := b.handler.Handle(ctx, abortRequest(params))
	return responseError(resp)
}

func initRequest(params upload.InitParams) Request {
	return Request{
		Action:      ActionInitUpload,
		Source:      string(params.Source),
		Tier:        string(params.Tier),
		FileName:    params.FileName,
		ContentType: params.ContentType,
		Checksum:    params.Checksum,
		PartCount:   params.PartCount,
	}
}

func completeRequest(params upload.CompleteParams) Request {
	parts := make([]PartInput, len(params.Parts))
	for i, part := range params.Parts {
		parts[i] = PartInput{
			IntegrityToken: part.IntegrityToken,
			PartNumber:     part.PartNumber,
		}
	}
	return Request{
		Action:    ActionCompleteUpload,
		Source:    string(params.Source),
		Tier:      string(params.Tier),
		ObjectKey: params.ObjectKey,
		SessionID: params.SessionID,
		Parts:     parts,
	}
}

func abortRequest(params upload.AbortParams) Request {
	return Request{
		Action:    ActionAbortUpload,
		Source:    string(params.Source),
		Tier:      string(params.Tier),
		ObjectKey: params.ObjectKey,
		SessionID: params.SessionID,
	}
}

func initResult(resp Response) upload.InitResult {
	targets := make([]session.UploadTarget, len(resp.Targets))
	for i, payload := range resp.Targets {
		targets[i] = uploadTarget(payload)
	}
	return upload.InitResult{
		SessionID: resp.SessionID,
		ObjectKey: resp.ObjectKey,
		Targets:   targets,
	}
}

var _ upload.Broker = HandlerBroker{}
