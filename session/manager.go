package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-utils/v2/log"
)

// DefaultTargetTTL is the validity window of a part upload target. Expiry is
// enforced by the storage service itself, not by the Manager.
const DefaultTargetTTL = time.Hour

// UploadTarget is a time-limited authorization for transferring one part
// directly to storage.
type UploadTarget struct {
	PartNumber int32
	URL        string
	Method     string
	Header     http.Header
	ExpiresAt  time.Time
}

// PartAck acknowledges one transferred part. IntegrityToken is the opaque
// value returned by storage, stored verbatim without surrounding quoting.
type PartAck struct {
	PartNumber     int32
	IntegrityToken string
}

type uploadSession struct {
	id          string
	objectKey   string
	destination Destination
	contentType string
	partCount   int32
	terminal    bool
}

// Manager brokers access to the storage service's multipart primitives. It
// never touches file bytes. Operations on a single session are expected to
// originate from one orchestrating flow at a time; this is a caller
// discipline, not an enforced lock.
//
// Session records are held in memory for the life of the process, terminal
// ones included: a finalized session must stay distinguishable from a
// never-opened one. Deployments with unbounded session churn need to recycle
// the process or front the Manager with their own retention policy.
type Manager struct {
	storage   StorageAPI
	presigner PartPresigner
	routes    *RoutingTable
	logger    log.Logger
	targetTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*uploadSession
}

// NewManager creates a session manager over the given storage primitives and
// routing table.
func NewManager(storage StorageAPI, presigner PartPresigner, routes *RoutingTable, logger log.Logger) *Manager {
	return &Manager{
		storage:   storage,
		presigner: presigner,
		routes:    routes,
		logger:    logger,
		targetTTL: DefaultTargetTTL,
		sessions:  map[string]*uploadSession{},
	}
}

// Resolve looks up the destination for the given source and tier. This check
// is the sole gate in front of every other operation: an unknown routing key
// is rejected before any session is opened.
func (m *Manager) Resolve(source Source, tier Tier) (Destination, error) {
	return m.routes.Resolve(source, tier)
}

// OpenParams describes one session to open.
type OpenParams struct {
	Destination Destination
	ObjectKey   string
	ContentType string
	// Checksum is an optional SHA-256 content checksum, attached to the
	// committed object as metadata.
	Checksum  string
	PartCount int32
}

// OpenSession opens a multipart session for the given destination and object
// key. It has no side effect on failure.
func (m *Manager) OpenSession(ctx context.Context, params OpenParams) (string, error) {
	if params.ObjectKey == "" {
		return "", fmt.Errorf("%w: empty object key", ErrInput)
	}
	if params.PartCount < 1 {
		return "", fmt.Errorf("%w: part count must be positive, got %d", ErrInput, params.PartCount)
	}
	dest := params.Destination
	if dest.Bucket == "" {
		return "", fmt.Errorf("%w: destination has no bucket", ErrDestinationUnavailable)
	}

	input := &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(dest.Bucket),
		Key:         aws.String(params.ObjectKey),
		ContentType: aws.String(params.ContentType),
	}
	if params.Checksum != "" {
		input.Metadata = map[string]string{"content-checksum": params.Checksum}
	}

	out, err := m.storage.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", upstreamError("createMultipartUpload", dest.Bucket, params.ObjectKey, err)
	}
	sessionID := aws.ToString(out.UploadId)

	m.mu.Lock()
	m.sessions[sessionID] = &uploadSession{
		id:          sessionID,
		objectKey:   params.ObjectKey,
		destination: dest,
		contentType: params.ContentType,
		partCount:   params.PartCount,
	}
	m.mu.Unlock()

	m.logger.Debugf("Opened session %s for %s/%s (%d parts)", sessionID, dest.Bucket, params.ObjectKey, params.PartCount)
	return sessionID, nil
}

// AuthorizePart issues one time-limited upload target for the given part.
// Authorizations are independent and may be requested for all parts up front
// or individually.
func (m *Manager) AuthorizePart(ctx context.Context, sessionID string, partNumber int32) (UploadTarget, error) {
	sess, err := m.liveSession(sessionID)
	if err != nil {
		return UploadTarget{}, err
	}
	if partNumber < 1 || partNumber > sess.partCount {
		return UploadTarget{}, fmt.Errorf("%w: part number %d out of range [1, %d]", ErrInput, partNumber, sess.partCount)
	}

	expiresAt := time.Now().Add(m.targetTTL)
	req, err := m.presigner.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(sess.destination.Bucket),
		Key:        aws.String(sess.objectKey),
		UploadId:   aws.String(sessionID),
		PartNumber: aws.Int32(partNumber),
	}, func(o *s3.PresignOptions) {
		o.Expires = m.targetTTL
	})
	if err != nil {
		return UploadTarget{}, upstreamError("presignUploadPart", sess.destination.Bucket, sess.objectKey, err)
	}

	return UploadTarget{
		PartNumber: partNumber,
		URL:        req.URL,
		Method:     req.Method,
		Header:     req.SignedHeader,
		ExpiresAt:  expiresAt,
	}, nil
}

// CompleteSession assembles the acknowledged parts into one committed object.
// The input order of parts carries no meaning: the Manager sorts its own view
// by part number before final assembly. On success the session is terminal
// and the returned URL addresses the object. On failure the session is also
// marked terminal and left for out-of-band cleanup; no abort is attempted
// because the storage-side state after a failed completion is undefined.
func (m *Manager) CompleteSession(ctx context.Context, sessionID, objectKey string, parts []PartAck) (string, error) {
	sess, err := m.takeTerminal(sessionID)
	if err != nil {
		return "", err
	}
	if objectKey != sess.objectKey {
		return "", fmt.Errorf("%w: object key %q does not match session", ErrInput, objectKey)
	}
	if err := validatePartSet(parts, sess.partCount); err != nil {
		return "", err
	}

	sorted := make([]PartAck, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	completed := make([]types.CompletedPart, len(sorted))
	for i, part := range sorted {
		completed[i] = types.CompletedPart{
			ETag:       aws.String(part.IntegrityToken),
			PartNumber: aws.Int32(part.PartNumber),
		}
	}

	out, err := m.storage.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(sess.destination.Bucket),
		Key:      aws.String(sess.objectKey),
		UploadId: aws.String(sessionID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		m.logger.Warnf("Completion of session %s failed, leaving it for out-of-band cleanup: %s", sessionID, err)
		return "", upstreamError("completeMultipartUpload", sess.destination.Bucket, sess.objectKey, err)
	}

	m.logger.Debugf("Completed session %s (%d parts)", sessionID, len(sorted))
	return objectURL(sess.destination, sess.objectKey, aws.ToString(out.Location)), nil
}

// AbortSession releases any partially uploaded data and the session itself.
// It is idempotent: aborting an unknown or already-terminal session succeeds.
// A non-nil return wraps ErrAbortFailure and is diagnostic only; it must not
// be escalated over the error that triggered the cleanup.
func (m *Manager) AbortSession(ctx context.Context, sessionID, objectKey string) error {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		m.logger.Debugf("Abort of unknown session %s, treating as already gone", sessionID)
		return nil
	}
	if sess.terminal {
		m.mu.Unlock()
		m.logger.Debugf("Abort of terminal session %s, treating as already gone", sessionID)
		return nil
	}
	sess.terminal = true
	m.mu.Unlock()

	_, err := m.storage.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(sess.destination.Bucket),
		Key:      aws.String(sess.objectKey),
		UploadId: aws.String(sessionID),
	})
	if err != nil {
		if isNoSuchUpload(err) {
			m.logger.Debugf("Session %s already gone from storage", sessionID)
			return nil
		}
		m.logger.Warnf("Failed to abort session %s: %s", sessionID, err)
		return fmt.Errorf("%w: session %s: %v", ErrAbortFailure, sessionID, err)
	}

	m.logger.Debugf("Aborted session %s", sessionID)
	return nil
}

// liveSession returns the session if it exists and is not terminal.
func (m *Manager) liveSession(sessionID string) (uploadSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return uploadSession{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if sess.terminal {
		return uploadSession{}, fmt.Errorf("%w: %s", ErrSessionTerminal, sessionID)
	}
	return *sess, nil
}

// takeTerminal transitions a live session to terminal and returns its state.
// A session has at most one outstanding completion or abort in flight.
func (m *Manager) takeTerminal(sessionID string) (uploadSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return uploadSession{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if sess.terminal {
		return uploadSession{}, fmt.Errorf("%w: %s", ErrSessionTerminal, sessionID)
	}
	sess.terminal = true
	return *sess, nil
}

func validatePartSet(parts []PartAck, partCount int32) error {
	if int32(len(parts)) != partCount {
		return fmt.Errorf("%w: got %d parts, expected %d", ErrIncompletePartSet, len(parts), partCount)
	}
	seen := make(map[int32]bool, len(parts))
	for _, part := range parts {
		if part.PartNumber < 1 || part.PartNumber > partCount {
			return fmt.Errorf("%w: part number %d out of range [1, %d]", ErrIncompletePartSet, part.PartNumber, partCount)
		}
		if seen[part.PartNumber] {
			return fmt.Errorf("%w: duplicate part number %d", ErrIncompletePartSet, part.PartNumber)
		}
		if part.IntegrityToken == "" {
			return fmt.Errorf("%w: empty integrity token for part %d", ErrIncompletePartSet, part.PartNumber)
		}
		seen[part.PartNumber] = true
	}
	return nil
}

func objectURL(dest Destination, objectKey, storageLocation string) string {
	if dest.PublicBaseURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimSuffix(dest.PublicBaseURL, "/"), objectKey)
	}
	return storageLocation
}

func isNoSuchUpload(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NoSuchUpload"
	}
	return false
}
