// Package tools provides the built-in tools agents can compose.
//
// Tools:
//   - data_fetcher: performs an HTTP request and returns status, body and headers
//   - chart_generator: builds a chart descriptor from data points
package tools
