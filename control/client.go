package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/shuttlehq/shuttle/upload"
)

// Client calls a remote control endpoint over HTTP. Transport-level retry
// policy lives in the retryable HTTP client, outside the no-retry upload
// core.
type Client struct {
	httpClient  *retryablehttp.Client
	endpointURL string
	accessToken string
	logger      log.Logger
}

// NewClient creates a control protocol client for the given endpoint.
func NewClient(endpointURL, accessToken string, logger log.Logger) Client {
	return Client{
		httpClient:  retryhttp.NewClient(logger),
		endpointURL: endpointURL,
		accessToken: accessToken,
		logger:      logger,
	}
}

// InitUpload ...
func (c Client) InitUpload(ctx context.Context, params upload.InitParams) (upload.InitResult, error) {
	resp, err := c.do(ctx, initRequest(params))
	if err != nil {
		return upload.InitResult{}, err
	}
	if err := responseError(resp); err != nil {
		return upload.InitResult{}, err
	}
	return initResult(resp), nil
}

// CompleteUpload ...
func (c Client) CompleteUpload(ctx context.Context, params upload.CompleteParams) (string, error) {
	resp, err := c.do(ctx, completeRequest(params))
	if err != nil {
		return "", err
	}
	if err := responseError(resp); err != nil {
		return "", err
	}
	return resp.ObjectURL, nil
}

// AbortUpload ...
func (c Client) AbortUpload(ctx context.Context, params upload.AbortParams) error {
	resp, err := c.do(ctx, abortRequest(params))
	if err != nil {
		return err
	}
	return responseError(resp)
}

func (c Client) do(ctx context.Context, request Request) (Response, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return Response{}, err
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, c.endpointURL, body)
	if err != nil {
		return Response{}, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.accessToken))
	req.Header.Set("Content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
			c.logger.Printf(err.Error())
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return Response{}, unwrapError(resp)
	}

	var response Response
	err = json.NewDecoder(resp.Body).Decode(&response)
	if err != nil {
		return Response{}, err
	}

	return response, nil
}

func unwrapError(resp *http.Response) error {
	errorResp, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, errorResp)
}

var _ upload.Broker = Client{}
