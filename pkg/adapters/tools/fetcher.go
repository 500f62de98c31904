package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultFetchTimeout = 10 * time.Second
	// maxBodySize bounds how much of a response body is read
	maxBodySize = 10 << 20
)

// DataFetcher performs HTTP requests
type DataFetcher struct {
	client *http.Client
}

// NewDataFetcher creates the data_fetcher tool; a nil client uses http.DefaultClient
func NewDataFetcher(client *http.Client) *DataFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &DataFetcher{client: client}
}

func (t *DataFetcher) Name() string { return "data_fetcher" }

// Call expects args "url" and optional "method"; config "timeout" is in seconds
func (t *DataFetcher) Call(ctx context.Context, args map[string]interface{}, config map[string]interface{}) (interface{}, error) {
	url, ok := args["url"].(string)
	if !ok || url == "" {
		return nil, fmt.Errorf("url argument is required")
	}

	method := http.MethodGet
	if m, ok := args["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}

	timeout := defaultFetchTimeout
	if secs, ok := config["timeout"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs * float64(time.Second))
	} else if secs, ok := config["timeout"].(int); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	headers := make(map[string]interface{}, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return map[string]interface{}{
		"status":  resp.StatusCode,
		"text":    string(body),
		"headers": headers,
	}, nil
}
