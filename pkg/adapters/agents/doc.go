// Package agents provides the built-in agents.
//
// Agents:
//   - echo: returns its inputs
//   - sum: adds the "numbers" input
//   - http_get: fetches a URL through the data_fetcher tool
package agents
