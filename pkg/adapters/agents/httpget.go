package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/aescanero/dagrun/pkg/ports"
)

// HTTPGet fetches a URL with the data_fetcher tool and summarizes the response
type HTTPGet struct{}

// NewHTTPGet creates the http_get agent
func NewHTTPGet() *HTTPGet {
	return &HTTPGet{}
}

func (a *HTTPGet) Name() string { return "http_get" }

func (a *HTTPGet) Execute(ctx context.Context, inv ports.Invocation) (interface{}, error) {
	url, ok := inv.Inputs["url"].(string)
	if !ok || url == "" {
		return nil, errors.New("url input is required")
	}

	if inv.Tools == nil || !inv.Tools.Has("data_fetcher") {
		return nil, errors.New("data_fetcher tool not configured")
	}

	raw, err := inv.Tools.Call(ctx, "data_fetcher", map[string]interface{}{"url": url})
	if err != nil {
		return nil, err
	}

	resp, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid fetcher response of type %T", raw)
	}

	text, _ := resp["text"].(string)
	return map[string]interface{}{
		"status":  resp["status"],
		"length":  len(text),
		"headers": resp["headers"],
	}, nil
}
