package upload

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/shuttlehq/shuttle/session"
)

type fakeBroker struct {
	mu sync.Mutex

	targetURL    func(partNumber int32) string
	shortTargets bool

	initErr     error
	initErrFor  map[string]error
	completeErr error
	abortErr    error

	initCalls     int
	completeCalls int
	abortCalls    int

	lastCompleteParts []session.PartAck
}

func (f *fakeBroker) InitUpload(ctx context.Context, params InitParams) (InitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	if f.initErr != nil {
		return InitResult{}, f.initErr
	}
	if err, ok := f.initErrFor[params.FileName]; ok {
		return InitResult{}, err
	}

	targetCount := params.PartCount
	if f.shortTargets {
		targetCount--
	}
	targets := make([]session.UploadTarget, 0, targetCount)
	for partNumber := int32(1); partNumber <= targetCount; partNumber++ {
		url := fmt.Sprintf("https://storage.test/parts/%d", partNumber)
		if f.targetURL != nil {
			url = f.targetURL(partNumber)
		}
		targets = append(targets, session.UploadTarget{
			PartNumber: partNumber,
			URL:        url,
			Method:     http.MethodPut,
		})
	}
	return InitResult{
		SessionID: "session-1",
		ObjectKey: "key-" + params.FileName,
		Targets:   targets,
	}, nil
}

func (f *fakeBroker) CompleteUpload(ctx context.Context, params CompleteParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	f.lastCompleteParts = append([]session.PartAck{}, params.Parts...)
	if f.completeErr != nil {
		return "", f.completeErr
	}
	return "https://cdn.example.com/" + params.ObjectKey, nil
}

func (f *fakeBroker) AbortUpload(ctx context.Context, params AbortParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abortCalls++
	return f.abortErr
}

var _ Broker = (*fakeBroker)(nil)

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
