package orchestrator

import (
	"errors"
	"fmt"

	"github.com/aescanero/dagrun/pkg/domain"
	"github.com/go-playground/validator/v10"
)

// Validator validates graph structures
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new graph validator
func NewValidator() *Validator {
	validate := validator.New()
	// Node ids are restricted to what ${node.path} references can name
	_ = validate.RegisterValidation("nodeid", func(fl validator.FieldLevel) bool {
		return domain.NodeIDPattern.MatchString(fl.Field().String())
	})

	return &Validator{
		validate: validate,
	}
}

// Validate checks field constraints, node id uniqueness and edge endpoints.
// Cycles are detected while layering.
func (v *Validator) Validate(spec *domain.GraphSpec) error {
	if spec == nil || len(spec.Nodes) == 0 {
		return &domain.ValidationError{
			Kind:    domain.KindEmptyGraph,
			Message: "graph must have at least one node",
		}
	}

	if err := v.validate.Struct(spec); err != nil {
		return fieldError(err)
	}

	// Check for duplicate node IDs
	nodeIDs := make(map[string]bool, len(spec.Nodes))
	for _, node := range spec.Nodes {
		if nodeIDs[node.ID] {
			return &domain.ValidationError{
				Kind:    domain.KindDuplicateID,
				NodeID:  node.ID,
				Message: fmt.Sprintf("duplicate node ID: %s", node.ID),
			}
		}
		nodeIDs[node.ID] = true
	}

	// Validate edges
	for _, edge := range spec.Edges {
		if !nodeIDs[edge.Source] {
			return &domain.ValidationError{
				Kind:    domain.KindUnknownEdgeEndpoint,
				NodeID:  edge.Target,
				Message: fmt.Sprintf("edge references non-existent source node: %s", edge.Source),
			}
		}
		if !nodeIDs[edge.Target] {
			return &domain.ValidationError{
				Kind:    domain.KindUnknownEdgeEndpoint,
				NodeID:  edge.Source,
				Message: fmt.Sprintf("edge references non-existent target node: %s", edge.Target),
			}
		}
	}

	// Validate input references
	for _, node := range spec.Nodes {
		for name, input := range node.Inputs {
			for _, ref := range input.References() {
				if !nodeIDs[ref.Node] {
					return &domain.ValidationError{
						Kind:    domain.KindUnknownEdgeEndpoint,
						NodeID:  node.ID,
						Message: fmt.Sprintf("input %q references non-existent node: %s", name, ref.Node),
					}
				}
			}
		}
	}

	return nil
}

// fieldError converts the first struct validation failure into a ValidationError
func fieldError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &domain.ValidationError{Kind: domain.KindInvalidSpec, Message: err.Error()}
	}

	fe := fieldErrs[0]
	return &domain.ValidationError{
		Kind:    domain.KindInvalidSpec,
		Message: fmt.Sprintf("field %s failed %q validation", fe.Namespace(), fe.Tag()),
	}
}
