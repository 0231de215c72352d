package recipe

import (
	"fmt"
	"math"
	"strings"

	tterrors "github.com/tasktree-dev/tasktree/pkg/errors"
)

// newArgSpec normalises a raw YAML arg entry into an ArgSpec,
// performing the type inference and mutual-exclusion/consistency
// checks spec.md §3 requires.
func newArgSpec(raw rawArgSpec) (*ArgSpec, error) {
	name := raw.Name
	exported := strings.HasPrefix(name, "$")
	if exported {
		name = strings.TrimPrefix(name, "$")
	}

	spec := &ArgSpec{
		Name:     name,
		Exported: exported,
		Default:  raw.Default,
		Choices:  raw.Choices,
		Min:      raw.Min,
		Max:      raw.Max,
	}

	if exported {
		if raw.Type != "" {
			return nil, tterrors.NewValidationError("InvalidArgSpec", name, "exported args (leading $) may not declare a type", tterrors.Location{}, nil)
		}
		spec.Type = ArgTypeStr
		return spec, nil
	}

	if raw.Choices != nil && (raw.Min != nil || raw.Max != nil) {
		return nil, tterrors.NewValidationError("InvalidArgSpec", name, "choices and min/max are mutually exclusive", tterrors.Location{}, nil)
	}

	if raw.Type != "" {
		spec.Type = ArgType(raw.Type)
		spec.TypeSet = true
	} else {
		inferred, err := inferArgType(raw)
		if err != nil {
			return nil, err
		}
		spec.Type = inferred
	}

	if raw.Default != nil && len(raw.Choices) > 0 {
		found := false
		for _, c := range raw.Choices {
			if c == *raw.Default {
				found = true
				break
			}
		}
		if !found {
			return nil, tterrors.NewValidationError("InvalidArgSpec", name, fmt.Sprintf("default %q is not among choices", *raw.Default), tterrors.Location{}, nil)
		}
	}

	if raw.Default != nil && (raw.Min != nil || raw.Max != nil) {
		val, err := parseNumeric(spec.Type, *raw.Default)
		if err == nil {
			if raw.Min != nil && val < *raw.Min {
				return nil, tterrors.NewValidationError("InvalidArgSpec", name, "default is below min", tterrors.Location{}, nil)
			}
			if raw.Max != nil && val > *raw.Max {
				return nil, tterrors.NewValidationError("InvalidArgSpec", name, "default is above max", tterrors.Location{}, nil)
			}
		}
	}

	return spec, nil
}

// inferArgType implements the precedence order from spec.md §3: infer
// from default, then min, then max, then the first choices element,
// requiring agreement among every source that is present.
func inferArgType(raw rawArgSpec) (ArgType, error) {
	var candidate ArgType
	have := false

	consider := func(t ArgType) error {
		if !have {
			candidate = t
			have = true
			return nil
		}
		if candidate != t {
			return tterrors.NewValidationError("InvalidArgSpec", raw.Name, "type cannot be inferred: default/min/max/choices disagree", tterrors.Location{}, nil)
		}
		return nil
	}

	if raw.Default != nil {
		if err := consider(guessScalarType(*raw.Default)); err != nil {
			return "", err
		}
	}
	if raw.Min != nil || raw.Max != nil {
		minMaxType := ArgTypeInt
		if (raw.Min != nil && !isWholeNumber(*raw.Min)) || (raw.Max != nil && !isWholeNumber(*raw.Max)) {
			minMaxType = ArgTypeFloat
		}
		if err := consider(minMaxType); err != nil {
			return "", err
		}
	}
	if len(raw.Choices) > 0 {
		if err := consider(guessScalarType(raw.Choices[0])); err != nil {
			return "", err
		}
	}

	if !have {
		return ArgTypeStr, nil
	}
	return candidate, nil
}

// guessScalarType makes a best-effort type guess from a string's
// shape, used only to drive inference -- it never determines the
// final bound-value validation, which always revalidates against the
// declared (or inferred) ArgType.
func guessScalarType(s string) ArgType {
	switch s {
	case "true", "false":
		return ArgTypeBool
	}
	if looksLikeInt(s) {
		return ArgTypeInt
	}
	if looksLikeFloat(s) {
		return ArgTypeFloat
	}
	return ArgTypeStr
}

func looksLikeInt(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if c == '-' && i == 0 {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// isWholeNumber is looksLikeInt's counterpart for min/max, which YAML
// has already parsed into a float64 rather than left as a string.
func isWholeNumber(f float64) bool {
	return f == math.Trunc(f)
}

func looksLikeFloat(s string) bool {
	if s == "" {
		return false
	}
	dot := false
	for i, c := range s {
		if c == '-' && i == 0 {
			continue
		}
		if c == '.' && !dot {
			dot = true
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return dot
}

func parseNumeric(t ArgType, s string) (float64, error) {
	if t != ArgTypeInt && t != ArgTypeFloat {
		return 0, fmt.Errorf("not a numeric type")
	}
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	return f, err
}
