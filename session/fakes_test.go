package session

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

	createErr   error
	completeErr error
	abortErr    error

	lastCreateInput   *s3.CreateMultipartUploadInput
	lastCompleteInput *s3.CompleteMultipartUploadInput

	uploadID string
	location string
}

func (f *fakeStorage) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastCreateInput = params
	if f.createErr != nil {
		return nil, f.createErr
	}
	uploadID := f.uploadID
	if uploadID == "" {
		uploadID = "upload-1"
	}
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
	location := f.location
	if location == "" {
		location = "https://storage.test/" + *params.Key
	}
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

type fakeEnvRepo struct {
	envVars map[string]string
}

func (repo fakeEnvRepo) Get(key string) string {
	value, ok := repo.envVars[key]
	if ok {
		return value
	}
	return ""
}

func (repo fakeEnvRepo) Set(key, value string) error {
	repo.envVars[key] = value
	return nil
}

func (repo fakeEnvRepo) Unset(key string) error {
	repo.envVars[key] = ""
	return nil
}

func (repo fakeEnvRepo) List() []string {
	envs := []string{}
	for k, v := range repo.envVars {
		envs = append(envs, fmt.Sprintf("%s=%s", k, v))
	}
	return envs
}
