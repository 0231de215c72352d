// Package tmpl implements the template substitution engine: a pure
// function from (template string, scope) to resolved string, with six
// prefixes and the strict var -> dep -> self -> arg/env/tt pass order
// spec.md §4.2 and §9 mandate.
package tmpl

// SelfEntry is one of a task's own named-or-anonymous input/output
// entries, already resolved to a concrete string (its glob, after the
// var pass), available for self.inputs.<n> / self.outputs.<n>
// back-reference.
type SelfEntry struct {
	Name  string // empty for anonymous entries
	Value string
}

// Scope is everything a single Resolve call needs. Callers fill in
// only the fields relevant to what they're resolving -- the Recipe
// Loader's variable-definition pass only ever populates Var/Env/Tt,
// per spec.md §4.1's "No arg, dep, or self available" rule for
// variable declarations.
type Scope struct {
	Task string // current task name, for error context

	Var map[string]string
	Env map[string]string
	Tt  map[string]string

	Dep map[string]map[string]string // taskname -> output name -> value

	SelfInputs  []SelfEntry
	SelfOutputs []SelfEntry

	Arg map[string]string
}
