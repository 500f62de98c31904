package agents

import (
	"context"

	"github.com/aescanero/dagrun/pkg/ports"
)

// Echo returns its inputs unchanged; non-empty params are added under "params"
type Echo struct{}

// NewEcho creates the echo agent
func NewEcho() *Echo {
	return &Echo{}
}

func (a *Echo) Name() string { return "echo" }

func (a *Echo) Execute(ctx context.Context, inv ports.Invocation) (interface{}, error) {
	output := make(map[string]interface{}, len(inv.Inputs)+1)
	for k, v := range inv.Inputs {
		output[k] = v
	}
	if len(inv.Params) > 0 {
		output["params"] = inv.Params
	}
	return output, nil
}
