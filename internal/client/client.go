package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MightyToolkit/vigil-reporter/internal/config"
	"github.com/MightyToolkit/vigil-reporter/internal/metrics"
)

const maxBodyBytes = 1 << 20

type Client struct {
	httpClient *http.Client
	token      string
}

// TransportError means the endpoint could not be reached at all: DNS
// failure, refused connection, timeout.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s is currently unreachable: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

func NewClient(cfg *config.Config) *Client {
	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	return NewClientWithTimeout(cfg.Token, timeout)
}

func NewClientWithTimeout(token string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			// a redirect is an answer from Vigil, not something to follow
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		token: token,
	}
}

// PostReport sends payload to endpoint. Any HTTP status is returned as a
// Response; only a failure to get one is an error.
func (c *Client) PostReport(ctx context.Context, endpoint string, payload *metrics.ReportPayload) (*Response, error) {
	if err := config.ValidateURL(endpoint); err != nil {
		return nil, err
	}
	return c.postJSON(ctx, endpoint, payload)
}

func (c *Client) postJSON(ctx context.Context, fullURL string, requestBody any) (*Response, error) {
	encoded, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if !isTransportError(err) {
			return nil, err
		}
		return nil, &TransportError{URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	return &Response{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(bodyBytes)),
	}, nil
}

// isTransportError excludes cancellation by the caller; everything else
// Do can fail with means the request never got an answer.
func isTransportError(err error) bool {
	return !errors.Is(err, context.Canceled)
}
