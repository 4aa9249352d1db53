package upload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shuttlehq/shuttle/session"
)

// DefaultTransport creates an HTTP client tuned for parallel part transfers.
// There is no client-level timeout: transfer deadlines come from the caller's
// context, and the core never retries a part on its own.
func DefaultTransport() *http.Client {
	return &http.Client{
		Timeout: 0,
		Transport: &http.Transport{
			MaxIdleConns:        50,
			MaxConnsPerHost:     20,
			IdleConnTimeout:     10 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
			Proxy:               http.ProxyFromEnvironment,
		},
	}
}

// transferPart sends one part's bytes directly to storage using its upload
// target and returns the normalized integrity token.
func transferPart(ctx context.Context, client *http.Client, target session.UploadTarget, body io.Reader, size int64) (string, error) {
	method := target.Method
	if method == "" {
		method = http.MethodPut
	}

	req, err := http.NewRequestWithContext(ctx, method, target.URL, body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	for name := range target.Header {
		req.Header.Set(name, target.Header.Get(name))
	}
	req.ContentLength = size

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorBody := make([]byte, 1024)
		n, _ := io.ReadAtLeast(resp.Body, errorBody, 1)
		return "", fmt.Errorf("part transfer failed with status %d: %s", resp.StatusCode, string(errorBody[:n]))
	}

	token := strings.Trim(resp.Header.Get("ETag"), `"`)
	if token == "" {
		return "", fmt.Errorf("no integrity token in response")
	}

	return token, nil
}
