package recipe

import (
	"fmt"

	"gopkg.in/yaml.v3"

	tterrors "github.com/tasktree-dev/tasktree/pkg/errors"
)

// document is the raw shape of one recipe YAML file, decoded before
// imports are resolved or variables evaluated.
type document struct {
	Imports   []importDecl             `yaml:"imports,omitempty"`
	Default   string                   `yaml:"default,omitempty"`
	Runners   map[string]*yaml.Node    `yaml:"runners,omitempty"`
	Variables []namedVariable          `yaml:"variables,omitempty"`
	Tasks     map[string]*yaml.Node    `yaml:"tasks,omitempty"`

	taskOrder []string
}

type importDecl struct {
	File  string `yaml:"file"`
	As    string `yaml:"as"`
	RunIn string `yaml:"run_in,omitempty"`
}

type namedVariable struct {
	Name string
	Decl VariableDecl
}

var topLevelKeys = map[string]struct{}{
	"imports": {}, "default": {}, "runners": {}, "variables": {}, "tasks": {},
}

// UnmarshalYAML decodes the top-level document, rejecting unknown keys
// (§6 "Unknown keys at the top level are a validation error") and
// preserving task declaration order -- yaml.v3 decodes a mapping into
// a Go map without guaranteeing order, so tasks are decoded from the
// raw node sequence instead of a struct field, the same way the
// teacher reaches for *yaml.Node when a plain struct tag can't express
// the shape it needs (Step's inline per-kind fields).
func (d *document) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return &yamlShapeError{"recipe document must be a mapping"}
	}

	for i := 0; i < len(value.Content); i += 2 {
		key := value.Content[i].Value
		if _, ok := topLevelKeys[key]; !ok {
			return tterrors.NewValidationError("UnknownTopLevelKey", key, fmt.Sprintf("unknown top-level key %q", key), tterrors.Location{Line: value.Content[i].Line}, nil)
		}
	}

	type shape struct {
		Imports []importDecl          `yaml:"imports,omitempty"`
		Default string                `yaml:"default,omitempty"`
		Runners map[string]*yaml.Node `yaml:"runners,omitempty"`
	}
	var s shape
	if err := value.Decode(&s); err != nil {
		return err
	}
	d.Imports = s.Imports
	d.Default = s.Default
	d.Runners = s.Runners

	for i := 0; i < len(value.Content); i += 2 {
		key := value.Content[i].Value
		valNode := value.Content[i+1]

		switch key {
		case "variables":
			vars, err := decodeVariablesNode(valNode)
			if err != nil {
				return err
			}
			d.Variables = vars
		case "tasks":
			tasks, order, err := decodeTasksNode(valNode)
			if err != nil {
				return err
			}
			d.Tasks = tasks
			d.taskOrder = order
		}
	}

	return nil
}

func decodeVariablesNode(node *yaml.Node) ([]namedVariable, error) {
	if node.Kind != yaml.MappingNode {
		return nil, &yamlShapeError{"variables must be a mapping"}
	}
	out := make([]namedVariable, 0, len(node.Content)/2)
	for i := 0; i < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var decl VariableDecl
		if err := node.Content[i+1].Decode(&decl); err != nil {
			return nil, err
		}
		decl.Name = name
		out = append(out, namedVariable{Name: name, Decl: decl})
	}
	return out, nil
}

func decodeTasksNode(node *yaml.Node) (map[string]*yaml.Node, []string, error) {
	if node.Kind != yaml.MappingNode {
		return nil, nil, &yamlShapeError{"tasks must be a mapping"}
	}
	tasks := make(map[string]*yaml.Node, len(node.Content)/2)
	order := make([]string, 0, len(node.Content)/2)
	for i := 0; i < len(node.Content); i += 2 {
		name := node.Content[i].Value
		tasks[name] = node.Content[i+1]
		order = append(order, name)
	}
	return tasks, order, nil
}

// rawTask is the plain-decodable shape of a task entry; deps get their
// own decoder since their per-entry shape varies.
type rawTask struct {
	Description string          `yaml:"description,omitempty"`
	Inputs      []rawIOEntry    `yaml:"inputs,omitempty"`
	Outputs     []rawIOEntry    `yaml:"outputs,omitempty"`
	WorkingDir  string          `yaml:"working_dir,omitempty"`
	Runner      string          `yaml:"runner,omitempty"`
	PinRunner   bool            `yaml:"pin_runner,omitempty"`
	Args        []rawArgSpec    `yaml:"args,omitempty"`
	Cmd         string          `yaml:"cmd,omitempty"`
	Private     bool            `yaml:"private,omitempty"`
	TaskOutput  string          `yaml:"task_output,omitempty"`
	Deps        yaml.Node       `yaml:"deps,omitempty"`
}

type rawIOEntry struct {
	Name string
	Glob string
}

// UnmarshalYAML lets an IOEntry be either a bare glob string or a
// {name, glob} mapping.
func (e *rawIOEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		e.Glob = value.Value
		return nil
	}
	var shape struct {
		Name string `yaml:"name"`
		Glob string `yaml:"glob"`
	}
	if err := value.Decode(&shape); err != nil {
		return err
	}
	e.Name = shape.Name
	e.Glob = shape.Glob
	return nil
}

type rawArgSpec struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type,omitempty"`
	Default *string  `yaml:"default,omitempty"`
	Choices []string `yaml:"choices,omitempty"`
	Min     *float64 `yaml:"min,omitempty"`
	Max     *float64 `yaml:"max,omitempty"`
}

func decodeTask(name string, node *yaml.Node) (*Task, error) {
	var raw rawTask
	if err := node.Decode(&raw); err != nil {
		return nil, err
	}

	deps, err := decodeDepInvocations(nonEmptyNode(&raw.Deps))
	if err != nil {
		return nil, err
	}

	t := &Task{
		Name:        name,
		Description: raw.Description,
		Deps:        deps,
		WorkingDir:  raw.WorkingDir,
		Runner:      raw.Runner,
		PinRunner:   raw.PinRunner,
		Cmd:         raw.Cmd,
		Private:     raw.Private,
		TaskOutput:  TaskOutputMode(raw.TaskOutput),
		SourceLine:  node.Line,
	}
	if t.TaskOutput == "" {
		t.TaskOutput = TaskOutputAll
	}

	for _, io := range raw.Inputs {
		t.Inputs = append(t.Inputs, IOEntry{Name: io.Name, Glob: io.Glob})
	}
	for _, io := range raw.Outputs {
		t.Outputs = append(t.Outputs, IOEntry{Name: io.Name, Glob: io.Glob})
	}

	for _, a := range raw.Args {
		spec, err := newArgSpec(a)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", name, err)
		}
		t.Args = append(t.Args, spec)
	}

	return t, nil
}

func nonEmptyNode(n *yaml.Node) *yaml.Node {
	if n == nil || n.Kind == 0 {
		return nil
	}
	return n
}
