package orchestrator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aescanero/dagrun/pkg/domain"
	"github.com/tidwall/gjson"
)

// ResolveInputs computes the concrete inputs of node from the outputs recorded in rc.
// It only reads rc.
func ResolveInputs(node *domain.NodeSpec, rc *RunContext) (map[string]interface{}, error) {
	resolved := make(map[string]interface{}, len(node.Inputs))

	for name, input := range node.Inputs {
		switch input.Kind() {
		case domain.InputReference:
			value, err := resolveReference(node.ID, name, input.Reference(), rc)
			if err != nil {
				return nil, err
			}
			resolved[name] = value

		case domain.InputTemplate:
			var sb strings.Builder
			for _, part := range input.Parts() {
				if part.Ref == nil {
					sb.WriteString(part.Text)
					continue
				}
				value, err := resolveRaw(node.ID, name, *part.Ref, rc)
				if err != nil {
					return nil, err
				}
				if value.Type == gjson.String {
					sb.WriteString(value.Str)
				} else {
					sb.WriteString(value.Raw)
				}
			}
			resolved[name] = sb.String()

		default:
			resolved[name] = input.Value()
		}
	}

	return resolved, nil
}

// resolveReference returns the referenced value; a reference without a path
// yields the source output unchanged
func resolveReference(nodeID, input string, ref domain.Reference, rc *RunContext) (interface{}, error) {
	e, err := succeededEntry(nodeID, input, ref, rc)
	if err != nil {
		return nil, err
	}
	if ref.Path == "" {
		return e.outcome.Output, nil
	}

	// Plain key/index paths read the output itself so values keep their Go type
	if value, ok := walkPath(e.outcome.Output, ref.Path); ok {
		return value, nil
	}

	value, err := lookupPath(nodeID, input, ref, e)
	if err != nil {
		return nil, err
	}
	return decodeRaw(value.Raw)
}

func resolveRaw(nodeID, input string, ref domain.Reference, rc *RunContext) (gjson.Result, error) {
	e, err := succeededEntry(nodeID, input, ref, rc)
	if err != nil {
		return gjson.Result{}, err
	}

	if ref.Path == "" {
		return gjson.ParseBytes(e.encoded), nil
	}
	return lookupPath(nodeID, input, ref, e)
}

func lookupPath(nodeID, input string, ref domain.Reference, e *entry) (gjson.Result, error) {
	value := gjson.GetBytes(e.encoded, ref.Path)
	if !value.Exists() {
		return gjson.Result{}, &domain.ResolutionError{
			Kind:    domain.KindMissingPath,
			NodeID:  nodeID,
			Input:   input,
			Message: fmt.Sprintf("path %q not found in output of node %s", ref.Path, ref.Node),
		}
	}
	return value, nil
}

// walkPath follows a dotted path of object keys and array indexes through
// decoded maps and slices. It reports false for gjson syntax and for values it
// cannot walk, leaving those to gjson.
func walkPath(v interface{}, path string) (interface{}, bool) {
	if strings.ContainsAny(path, `*?#@|\!=<>%[]{}"`) {
		return nil, false
	}

	for _, key := range strings.Split(path, ".") {
		switch cur := v.(type) {
		case map[string]interface{}:
			next, ok := cur[key]
			if !ok {
				return nil, false
			}
			v = next
		case []interface{}:
			i, err := strconv.Atoi(key)
			if err != nil || strconv.Itoa(i) != key || i < 0 || i >= len(cur) {
				return nil, false
			}
			v = cur[i]
		default:
			return nil, false
		}
	}
	return v, true
}

// maxExactFloat is the largest integer every float64 below it represents exactly
const maxExactFloat = 1 << 53

// decodeRaw decodes a JSON fragment. Numbers become float64 unless they are
// integers too large for float64 to hold exactly, which stay int64.
func decodeRaw(raw string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode referenced value: %w", err)
	}
	return normalizeNumbers(v), nil
}

func normalizeNumbers(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil && (i > maxExactFloat || i < -maxExactFloat) {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]interface{}:
		for k, item := range val {
			val[k] = normalizeNumbers(item)
		}
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeNumbers(item)
		}
	}
	return v
}

func succeededEntry(nodeID, input string, ref domain.Reference, rc *RunContext) (*entry, error) {
	e, ok := rc.lookup(ref.Node)
	if !ok || e.outcome.State != domain.NodeStateSucceeded {
		state := domain.NodeStatePending
		if ok {
			state = e.outcome.State
		}
		return nil, &domain.ResolutionError{
			Kind:    domain.KindUnsatisfiedDependency,
			NodeID:  nodeID,
			Input:   input,
			Message: fmt.Sprintf("referenced node %s is %s", ref.Node, state),
		}
	}
	return e, nil
}
