package domain

import (
	"encoding/json"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// InputKind tells how an input value is obtained
type InputKind int

const (
	InputLiteral InputKind = iota
	InputReference
	InputTemplate
)

func (k InputKind) String() string {
	switch k {
	case InputReference:
		return "reference"
	case InputTemplate:
		return "template"
	default:
		return "literal"
	}
}

// nodeIDChars is the character class of node ids; references can only name such ids
const nodeIDChars = `[a-zA-Z0-9_-]+`

// NodeIDPattern matches a valid node id
var NodeIDPattern = regexp.MustCompile(`^` + nodeIDChars + `$`)

// refPattern matches ${node} and ${node.path}
var refPattern = regexp.MustCompile(`\$\{(` + nodeIDChars + `)(?:\.([^}]+))?\}`)

// Reference points at another node's output, optionally at a path inside it
type Reference struct {
	Node string `json:"$ref"`
	Path string `json:"path,omitempty"`
}

func (r Reference) String() string {
	if r.Path == "" {
		return "${" + r.Node + "}"
	}
	return "${" + r.Node + "." + r.Path + "}"
}

// TemplatePart is either literal text or a reference inside a template string
type TemplatePart struct {
	Text string
	Ref  *Reference
}

// InputValue is a node input: a literal, a reference to another node's
// output, or a template string embedding references
type InputValue struct {
	kind     InputKind
	literal  interface{}
	ref      Reference
	template []TemplatePart
	raw      string
}

// Literal creates a literal input
func Literal(v interface{}) InputValue {
	return InputValue{kind: InputLiteral, literal: v}
}

// Ref creates a reference input
func Ref(node, path string) InputValue {
	return InputValue{kind: InputReference, ref: Reference{Node: node, Path: path}}
}

// Template parses text as a template; text without references stays a literal
func Template(text string) InputValue {
	parts := ParseTemplate(text)
	for _, p := range parts {
		if p.Ref != nil {
			return InputValue{kind: InputTemplate, template: parts, raw: text}
		}
	}
	return Literal(text)
}

// ParseInput classifies a decoded JSON value
func ParseInput(v interface{}) InputValue {
	switch val := v.(type) {
	case string:
		if loc := refPattern.FindStringSubmatchIndex(val); loc != nil && loc[0] == 0 && loc[1] == len(val) {
			ref := Reference{Node: val[loc[2]:loc[3]]}
			if loc[4] >= 0 {
				ref.Path = val[loc[4]:loc[5]]
			}
			return InputValue{kind: InputReference, ref: ref}
		}
		return Template(val)
	case map[string]interface{}:
		if ref, ok := referenceObject(val); ok {
			return InputValue{kind: InputReference, ref: ref}
		}
	}
	return Literal(v)
}

// referenceObject recognizes {"$ref": "node", "path": "a.b"}
func referenceObject(m map[string]interface{}) (Reference, bool) {
	node, ok := m["$ref"].(string)
	if !ok || node == "" {
		return Reference{}, false
	}
	ref := Reference{Node: node}
	for k, v := range m {
		switch k {
		case "$ref":
		case "path":
			path, ok := v.(string)
			if !ok {
				return Reference{}, false
			}
			ref.Path = path
		default:
			return Reference{}, false
		}
	}
	return ref, true
}

// ParseTemplate splits text into literal and reference parts
func ParseTemplate(text string) []TemplatePart {
	var parts []TemplatePart
	last := 0
	for _, loc := range refPattern.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > last {
			parts = append(parts, TemplatePart{Text: text[last:loc[0]]})
		}
		ref := &Reference{Node: text[loc[2]:loc[3]]}
		if loc[4] >= 0 {
			ref.Path = text[loc[4]:loc[5]]
		}
		parts = append(parts, TemplatePart{Ref: ref})
		last = loc[1]
	}
	if last < len(text) {
		parts = append(parts, TemplatePart{Text: text[last:]})
	}
	return parts
}

// Kind returns how the value is obtained
func (v InputValue) Kind() InputKind { return v.kind }

// Value returns the literal value
func (v InputValue) Value() interface{} { return v.literal }

// Reference returns the referenced output of a reference input
func (v InputValue) Reference() Reference { return v.ref }

// Parts returns the parsed parts of a template input
func (v InputValue) Parts() []TemplatePart { return v.template }

// References lists every node output this input depends on
func (v InputValue) References() []Reference {
	switch v.kind {
	case InputReference:
		return []Reference{v.ref}
	case InputTemplate:
		refs := make([]Reference, 0, len(v.template))
		for _, p := range v.template {
			if p.Ref != nil {
				refs = append(refs, *p.Ref)
			}
		}
		return refs
	default:
		return nil
	}
}

// MarshalJSON encodes the value in the form ParseInput accepts
func (v InputValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case InputReference:
		return json.Marshal(v.ref.String())
	case InputTemplate:
		return json.Marshal(v.raw)
	default:
		return json.Marshal(v.literal)
	}
}

// UnmarshalJSON decodes any JSON value and classifies it
func (v *InputValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode input value: %w", err)
	}
	*v = ParseInput(raw)
	return nil
}

// UnmarshalYAML decodes any YAML value and classifies it
func (v *InputValue) UnmarshalYAML(node *yaml.Node) error {
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode input value: %w", err)
	}
	*v = ParseInput(raw)
	return nil
}
