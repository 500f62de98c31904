package ports

import "context"

// Invocation carries everything an agent receives for one attempt
type Invocation struct {
	RunID  string
	NodeID string
	// Inputs are the node's resolved inputs. Outputs of tools run before the
	// agent are available under the "tools" key.
	Inputs map[string]interface{}
	Params map[string]interface{}
	Tools  Toolbox
}

// Agent is a named executable capability invoked by a node
type Agent interface {
	Name() string
	Execute(ctx context.Context, inv Invocation) (interface{}, error)
}

// Tool is a named auxiliary capability composed with an agent
type Tool interface {
	Name() string
	Call(ctx context.Context, args map[string]interface{}, config map[string]interface{}) (interface{}, error)
}

// Toolbox exposes the tools a node declared to its agent
type Toolbox interface {
	Has(name string) bool
	Call(ctx context.Context, name string, args map[string]interface{}) (interface{}, error)
}

// Registry resolves agent and tool names
type Registry interface {
	Agent(name string) (Agent, bool)
	Tool(name string) (Tool, bool)
}
