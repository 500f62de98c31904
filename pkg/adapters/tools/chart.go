package tools

import (
	"context"
	"fmt"
	"net/url"
)

const defaultChartBaseURL = "https://example.com/chart"

// ChartGenerator turns data points into a chart descriptor
type ChartGenerator struct{}

// NewChartGenerator creates the chart_generator tool
func NewChartGenerator() *ChartGenerator {
	return &ChartGenerator{}
}

func (t *ChartGenerator) Name() string { return "chart_generator" }

// Call expects a "data" argument; config may set "base_url" and "type"
func (t *ChartGenerator) Call(ctx context.Context, args map[string]interface{}, config map[string]interface{}) (interface{}, error) {
	data, ok := args["data"]
	if !ok {
		return nil, fmt.Errorf("data argument is required")
	}

	base := defaultChartBaseURL
	if b, ok := config["base_url"].(string); ok && b != "" {
		base = b
	}
	kind := "line"
	if k, ok := config["type"].(string); ok && k != "" {
		kind = k
	}

	chartURL, err := url.JoinPath(base, kind)
	if err != nil {
		return nil, fmt.Errorf("invalid chart base url: %w", err)
	}

	return map[string]interface{}{
		"chart_url": chartURL,
		"type":      kind,
		"points":    data,
	}, nil
}
