// Package csvperm compiles declarative CSV permission tables into a fast
// runtime lookup from (permission name, user type) to a decision function.
//
// The pipeline is Parse -> Merge -> BuildTable. Each cell of a table is first
// captured as an UnresolvedEvaluator, then resolved to an Evaluator by an
// ordered chain of resolvers. The resulting Table is immutable and safe for
// concurrent use.
package csvperm

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PermName is a string key uniquely identifying one permission independent
// of user type.
type PermName string

// UserType is the category a user belongs to; one table column per type.
type UserType string

// Evaluator decides whether a user holds a permission, optionally against a
// target object. A nil obj means a global (no-object) check. Evaluators are
// pure and safe to invoke concurrently.
type Evaluator func(user, obj any) (bool, error)

// UnresolvedEvaluator is the parsed but not yet resolved form of one
// (permission, user type) cell.
//
// Source records which table produced the cell and is used only for
// diagnostics; Equal ignores it.
type UnresolvedEvaluator struct {
	App        string   // owning namespace (Django app label in the original format)
	Entity     string   // canonical lower-case entity name; "" when the permission has no entity
	IsGlobal   bool     // whether the permission is global rather than object-scoped
	Permission PermName // resolved permission name
	Action     string   // action column value
	UserType   UserType // column the cell belongs to
	Name       string   // raw cell text (the access specification string)
	Source     string   // provenance, diagnostics only
}

// Equal reports whether two unresolved evaluators describe the same cell,
// ignoring provenance.
func (u UnresolvedEvaluator) Equal(other UnresolvedEvaluator) bool {
	u.Source = ""
	other.Source = ""
	return u == other
}

// ResolvePermNameFunc computes a permission name from its parts. Entity is
// empty for permissions without an entity.
type ResolvePermNameFunc func(app, entity, action string, isGlobal bool) PermName

// DefaultPermName names permissions "{app}.{action}_{entity}", or
// "{app}.{action}" when there is no entity.
func DefaultPermName(app, entity, action string, isGlobal bool) PermName {
	if entity == "" {
		return PermName(fmt.Sprintf("%s.%s", app, action))
	}
	return PermName(fmt.Sprintf("%s.%s_%s", app, action, entity))
}

// Resolver converts an unresolved cell into an executable Evaluator.
//
// A resolver returns (nil, nil) to defer to the next resolver in the chain,
// a non-nil Evaluator to claim the cell, or an error to abort the build.
type Resolver interface {
	ResolveEvaluator(entry UnresolvedEvaluator) (Evaluator, error)
}

// ResolverFunc adapts an ordinary function to the Resolver interface.
type ResolverFunc func(entry UnresolvedEvaluator) (Evaluator, error)

// ResolveEvaluator implements Resolver.
func (f ResolverFunc) ResolveEvaluator(entry UnresolvedEvaluator) (Evaluator, error) {
	return f(entry)
}

// Chain is an ordered list of resolvers tried first-match-wins. ID must
// uniquely identify the composition; it participates in registry cache keys.
type Chain struct {
	ID        string
	Resolvers []Resolver
}

// RulesProvider supplies the externally owned rule implementations referenced
// by "own" and "custom" cells. It replaces the original's dynamic
// import-by-name with explicit registration.
type RulesProvider interface {
	// Rule returns the decision function registered under name for the
	// given app namespace, or ok=false when none exists.
	Rule(app, name string) (Evaluator, bool)
}

// RulesMap is an in-memory RulesProvider keyed by app then rule name.
type RulesMap map[string]map[string]Evaluator

// Rule implements RulesProvider.
func (m RulesMap) Rule(app, name string) (Evaluator, bool) {
	rule, ok := m[app][name]
	return rule, ok
}

// EntityCatalog validates and canonicalizes entity names. When a table row
// references an entity the catalog does not know, the build fails.
type EntityCatalog interface {
	// EntityName returns the canonical lower-case name of an entity declared
	// in the given app, or ok=false when the entity (or the app) is unknown.
	EntityName(app, entity string) (string, bool)
}

// WarnFunc receives non-fatal diagnostics emitted while resolving a table,
// such as references to unregistered rule implementations.
type WarnFunc func(format string, args ...any)

// Source is one tabular permission input. Identity must be stable and unique
// across the sources of a deployment; it feeds registry cache keys and
// conflict diagnostics.
type Source interface {
	Identity() string
	Open() (io.ReadCloser, error)
}

// FileSource reads a permission table from a CSV file on disk.
type FileSource string

// Identity returns the cleaned file path.
func (f FileSource) Identity() string {
	return filepath.Clean(string(f))
}

// Open opens the underlying file.
func (f FileSource) Open() (io.ReadCloser, error) {
	return os.Open(string(f))
}
