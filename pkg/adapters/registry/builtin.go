package registry

import (
	"net/http"

	"github.com/aescanero/dagrun/pkg/adapters/agents"
	"github.com/aescanero/dagrun/pkg/adapters/tools"
	"github.com/aescanero/dagrun/pkg/ports"
)

// NewBuiltin builds a registry with the built-in agents and tools plus extra agents
func NewBuiltin(httpClient *http.Client, extra ...ports.Agent) (*Registry, error) {
	return NewBuilder().
		WithAgents(agents.NewEcho(), agents.NewSum(), agents.NewHTTPGet()).
		WithAgents(extra...).
		WithTools(tools.NewDataFetcher(httpClient), tools.NewChartGenerator()).
		Build()
}
