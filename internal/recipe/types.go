package recipe

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// TaskOutputMode controls how a task's stdout/stderr is surfaced.
type TaskOutputMode string

const (
	TaskOutputAll   TaskOutputMode = "all"
	TaskOutputOut   TaskOutputMode = "out"
	TaskOutputErr   TaskOutputMode = "err"
	TaskOutputOnErr TaskOutputMode = "on-err"
	TaskOutputNone  TaskOutputMode = "none"
)

// ArgType is the closed set of argument value kinds, re-expressed as a
// sum type rather than the dynamically-typed dictionary the original
// source uses (spec.md §9, "Dynamic typing -> tagged variants").
type ArgType string

const (
	ArgTypeStr      ArgType = "str"
	ArgTypeInt      ArgType = "int"
	ArgTypeFloat    ArgType = "float"
	ArgTypeBool     ArgType = "bool"
	ArgTypePath     ArgType = "path"
	ArgTypeDateTime ArgType = "datetime"
	ArgTypeIP       ArgType = "ip"
	ArgTypeIPv4     ArgType = "ipv4"
	ArgTypeIPv6     ArgType = "ipv6"
	ArgTypeEmail    ArgType = "email"
	ArgTypeHostname ArgType = "hostname"
)

// Recipe is the fully resolved, immutable top-level declaration. It is
// constructed once per invocation by the loader and never mutated
// afterwards, the same ownership discipline the teacher's engine.Node
// applies by borrowing from, rather than copying, a *config.Step.
type Recipe struct {
	Tasks       *OrderedMap[*Task]
	Runners     map[string]*Runner
	Variables   *OrderedMap[string]
	RecipeDir   string
	ProjectRoot string
	Default     string // name of the recipe-level default runner, if any
}

// Task is a single named unit of work.
type Task struct {
	Name        string
	Description string
	Deps        []DepInvocation
	Inputs      []IOEntry
	Outputs     []IOEntry
	WorkingDir  string
	Runner      string
	PinRunner   bool
	Args        []*ArgSpec
	Cmd         string
	Private     bool
	TaskOutput  TaskOutputMode

	// RunIn is the runner override applied at the import site this
	// task arrived through (empty for tasks declared directly in the
	// top-level recipe).
	RunIn string

	// SourceFile/SourceLine locate the task in its origin document,
	// populated during loading for error Location context.
	SourceFile string
	SourceLine int
}

// IOEntry is either an anonymous (glob only) or named input/output.
type IOEntry struct {
	Name string
	Glob string
}

// ArgSpec describes one formal argument of a task.
type ArgSpec struct {
	Name     string
	Exported bool // leading '$' in the declared name
	Type     ArgType
	TypeSet  bool // true if `type` was explicit in YAML
	Default  *string
	Choices  []string
	Min      *float64
	Max      *float64
}

// DepMode distinguishes how a DepInvocation binds the callee's
// arguments.
type DepMode string

const (
	DepDefaults   DepMode = "defaults"
	DepPositional DepMode = "positional"
	DepNamed      DepMode = "named"
)

// DepInvocation references another task and how to bind its args.
type DepInvocation struct {
	TaskName   string
	Mode       DepMode
	Positional []string          // template strings, Mode == DepPositional
	Named      map[string]string // template strings, Mode == DepNamed
}

// RunnerKind discriminates the two Runner shapes.
type RunnerKind string

const (
	RunnerShell     RunnerKind = "shell"
	RunnerContainer RunnerKind = "container"
)

// Runner is a named execution context, either a local shell or a
// container built from a Dockerfile.
type Runner struct {
	Name      string
	Kind      RunnerKind
	Shell     *ShellRunner
	Container *ContainerRunner
}

// ShellRunner runs commands through a local shell.
type ShellRunner struct {
	Shell    string `yaml:"shell"`
	Preamble string `yaml:"preamble,omitempty"`
}

// ContainerRunner runs commands inside a container built on demand.
type ContainerRunner struct {
	Dockerfile string            `yaml:"dockerfile"`
	Context    string            `yaml:"context,omitempty"`
	Volumes    []string          `yaml:"volumes,omitempty"`
	Ports      map[string]string `yaml:"ports,omitempty"`
	BuildArgs  map[string]string `yaml:"build_args,omitempty"`
	Env        map[string]string `yaml:"env,omitempty"`
	WorkingDir string            `yaml:"working_dir,omitempty"`
	RunAsRoot  bool              `yaml:"run_as_root,omitempty"`
}

// VariableDeclKind discriminates the five variable declaration shapes.
type VariableDeclKind string

const (
	VarLiteral  VariableDeclKind = "literal"
	VarFromEnv  VariableDeclKind = "env"
	VarFromFile VariableDeclKind = "read"
	VarFromEval VariableDeclKind = "eval"
	VarTemplate VariableDeclKind = "template"
)

// VariableDecl is one entry of the recipe's `variables` map, before
// resolution.
type VariableDecl struct {
	Name string
	Kind VariableDeclKind

	Literal string // VarLiteral: stringified YAML scalar

	EnvName    string // VarFromEnv
	EnvDefault *string

	ReadPath string // VarFromFile

	EvalCommand string // VarFromEval

	Template string // VarTemplate
}

// UnmarshalYAML decodes a variable declaration, discriminating on
// shape the same way Step.UnmarshalYAML discriminates on its `type`
// field: a bare scalar is a literal-or-template string, a mapping
// picks one of env/read/eval by which key is present.
func (v *VariableDecl) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		raw := value.Value
		if strings.Contains(raw, "{{") {
			v.Kind = VarTemplate
			v.Template = raw
		} else {
			v.Kind = VarLiteral
			v.Literal = raw
		}
		return nil
	case yaml.MappingNode:
		var shape struct {
			Env     string  `yaml:"env"`
			Default *string `yaml:"default"`
			Read    string  `yaml:"read"`
			Eval    string  `yaml:"eval"`
		}
		if err := value.Decode(&shape); err != nil {
			return err
		}
		switch {
		case shape.Env != "":
			v.Kind = VarFromEnv
			v.EnvName = shape.Env
			v.EnvDefault = shape.Default
		case shape.Read != "":
			v.Kind = VarFromFile
			v.ReadPath = shape.Read
		case shape.Eval != "":
			v.Kind = VarFromEval
			v.EvalCommand = shape.Eval
		default:
			return &yamlShapeError{"variable declaration must set one of env, read, or eval"}
		}
		return nil
	default:
		return &yamlShapeError{"variable declaration must be a scalar or a mapping"}
	}
}

type yamlShapeError struct{ msg string }

func (e *yamlShapeError) Error() string { return e.msg }

// decodeDepInvocations parses a `deps` sequence node into
// DepInvocations, since each entry's shape depends on what the single
// key's value looks like -- not expressible as a plain struct tag the
// way Step's inline fields are.
func decodeDepInvocations(node *yaml.Node) ([]DepInvocation, error) {
	if node == nil {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, &yamlShapeError{"deps must be a sequence"}
	}

	deps := make([]DepInvocation, 0, len(node.Content))
	for _, entry := range node.Content {
		dep, err := decodeSingleDep(entry)
		if err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

func decodeSingleDep(entry *yaml.Node) (DepInvocation, error) {
	switch entry.Kind {
	case yaml.ScalarNode:
		return DepInvocation{TaskName: entry.Value, Mode: DepDefaults}, nil
	case yaml.MappingNode:
		if len(entry.Content) != 2 {
			return DepInvocation{}, &yamlShapeError{"deps entry must have exactly one task name key"}
		}
		nameNode, valueNode := entry.Content[0], entry.Content[1]
		taskName := nameNode.Value

		switch valueNode.Kind {
		case yaml.SequenceNode:
			if len(valueNode.Content) == 0 {
				return DepInvocation{}, &yamlShapeError{"positional deps entry must not be empty"}
			}
			positional := make([]string, 0, len(valueNode.Content))
			for _, p := range valueNode.Content {
				positional = append(positional, p.Value)
			}
			return DepInvocation{TaskName: taskName, Mode: DepPositional, Positional: positional}, nil
		case yaml.MappingNode:
			named := make(map[string]string, len(valueNode.Content)/2)
			for i := 0; i < len(valueNode.Content); i += 2 {
				k := valueNode.Content[i].Value
				v := valueNode.Content[i+1].Value
				named[k] = v
			}
			return DepInvocation{TaskName: taskName, Mode: DepNamed, Named: named}, nil
		case yaml.ScalarNode:
			if valueNode.Tag == "!!null" {
				return DepInvocation{TaskName: taskName, Mode: DepDefaults}, nil
			}
			return DepInvocation{}, &yamlShapeError{"deps entry value must be a sequence or mapping"}
		default:
			return DepInvocation{}, &yamlShapeError{"unsupported deps entry shape"}
		}
	default:
		return DepInvocation{}, &yamlShapeError{"deps entry must be a scalar or single-key mapping"}
	}
}

// decodeRunner discriminates a runners map entry into Shell or
// Container shape, the same hasYAMLKey-driven idiom
// CopyStep.UnmarshalYAML uses to distinguish explicit-false from
// absent fields, generalized here to distinguish runner kinds by
// which keys are present.
func decodeRunner(name string, node *yaml.Node) (*Runner, error) {
	if node.Kind != yaml.MappingNode {
		return nil, &yamlShapeError{"runner " + name + " must be a mapping"}
	}
	if hasYAMLKey(node, "dockerfile") {
		var c ContainerRunner
		if err := node.Decode(&c); err != nil {
			return nil, err
		}
		return &Runner{Name: name, Kind: RunnerContainer, Container: &c}, nil
	}

	var s ShellRunner
	if err := node.Decode(&s); err != nil {
		return nil, err
	}
	return &Runner{Name: name, Kind: RunnerShell, Shell: &s}, nil
}

func hasYAMLKey(node *yaml.Node, key string) bool {
	if node == nil || node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i < len(node.Content); i += 2 {
		if strings.EqualFold(node.Content[i].Value, key) {
			return true
		}
	}
	return false
}
