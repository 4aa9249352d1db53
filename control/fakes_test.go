package control

import (
	"context"
	"fmt"
	"sync"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeStorage struct {
	mu sync.Mutex

	createCalls   int
	completeCalls int
	abortCalls    int

	completeErr error
	abortErr    error

	lastCompleteInput *s3.CompleteMultipartUploadInput
}

func (f *fakeStorage) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	uploadID := fmt.Sprintf("session-%d", f.createCalls)
	return &s3.CreateMultipartUploadOutput{UploadId: &uploadID}, nil
}

func (f *fakeStorage) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	f.lastCompleteInput = params
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	location := "https://storage.test/" + *params.Key
	return &s3.CompleteMultipartUploadOutput{Location: &location}, nil
}

func (f *fakeStorage) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abortCalls++
	if f.abortErr != nil {
		return nil, f.abortErr
	}
	return &s3.AbortMultipartUploadOutput{}, nil
}

type fakePresigner struct {
	mu         sync.Mutex
	calls      int
	presignErr error
	failOnCall int
}

func (f *fakePresigner) PresignUploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.presignErr != nil && (f.failOnCall == 0 || f.calls == f.failOnCall) {
		return nil, f.presignErr
	}
	return &v4.PresignedHTTPRequest{
		URL:    fmt.Sprintf("https://storage.test/%s/%s/%d", *params.Bucket, *params.Key, *params.PartNumber),
		Method: "PUT",
	}, nil
}
