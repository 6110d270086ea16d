package csvperm

import (
	"fmt"
	"sort"

	apperrors "github.com/AllianceSoftware/csvpermissions-go/errors"
)

// Table is the compiled lookup from (permission, user type) to Evaluator.
// It is immutable after BuildTable returns and safe for concurrent use.
type Table struct {
	evaluators map[PermName]map[UserType]Evaluator
	isGlobal   map[PermName]bool
	userTypes  map[UserType]struct{}
	typeOrder  []UserType
}

// Evaluator returns the decision function for a (permission, user type)
// cell, or ok=false when that exact cell was never populated.
func (t *Table) Evaluator(perm PermName, userType UserType) (Evaluator, bool) {
	ev, ok := t.evaluators[perm][userType]
	return ev, ok
}

// IsGlobal reports a permission's global flag; ok=false when the permission
// is unknown.
func (t *Table) IsGlobal(perm PermName) (bool, bool) {
	isGlobal, ok := t.isGlobal[perm]
	return isGlobal, ok
}

// HasPerm reports whether any source defined the permission.
func (t *Table) HasPerm(perm PermName) bool {
	_, ok := t.isGlobal[perm]
	return ok
}

// HasUserType reports whether any source declared the user type column.
func (t *Table) HasUserType(userType UserType) bool {
	_, ok := t.userTypes[userType]
	return ok
}

// Perms returns all known permission names, sorted.
func (t *Table) Perms() []PermName {
	perms := make([]PermName, 0, len(t.isGlobal))
	for perm := range t.isGlobal {
		perms = append(perms, perm)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}

// UserTypes returns all known user types in order of first appearance.
func (t *Table) UserTypes() []UserType {
	return append([]UserType(nil), t.typeOrder...)
}

// BuildTable resolves every merged cell through the chain and assembles the
// lookup table. The first resolver returning a non-nil evaluator claims the
// cell; resolver errors and unclaimed cells fail the build, wrapped with the
// permission, user type and raw cell text.
func BuildTable(merged *MergeResult, chain Chain) (*Table, error) {
	if len(chain.Resolvers) == 0 {
		return nil, apperrors.New(apperrors.CodeConfigChainMissing, "no evaluator resolvers configured")
	}

	table := &Table{
		evaluators: make(map[PermName]map[UserType]Evaluator),
		isGlobal:   make(map[PermName]bool),
		userTypes:  make(map[UserType]struct{}),
		typeOrder:  append([]UserType(nil), merged.UserTypes...),
	}
	for _, userType := range merged.UserTypes {
		table.userTypes[userType] = struct{}{}
	}

	for _, perm := range sortedPerms(merged.IsGlobal) {
		table.isGlobal[perm] = merged.IsGlobal[perm]
		table.evaluators[perm] = make(map[UserType]Evaluator)

		cells := merged.Entries[perm]
		for _, userType := range merged.UserTypes {
			entry, ok := cells[userType]
			if !ok {
				continue
			}
			evaluator, err := resolveEntry(entry, chain)
			if err != nil {
				return nil, err
			}
			table.evaluators[perm][userType] = evaluator
		}
	}
	return table, nil
}

func resolveEntry(entry UnresolvedEvaluator, chain Chain) (Evaluator, error) {
	for _, resolver := range chain.Resolvers {
		evaluator, err := resolver.ResolveEvaluator(entry)
		if err != nil {
			return nil, apperrors.WrapWithMetadata(apperrors.CodeResolveFailed,
				fmt.Sprintf("resolve %s for user type %s (%q): %v", entry.Permission, entry.UserType, entry.Name, err),
				resolveMetadata(entry), err)
		}
		if evaluator != nil {
			return evaluator, nil
		}
	}
	return nil, apperrors.WithMetadata(apperrors.CodeResolveUnclaimed,
		fmt.Sprintf("could not resolve permission %s for user type %s (%q)", entry.Permission, entry.UserType, entry.Name),
		resolveMetadata(entry))
}

func resolveMetadata(entry UnresolvedEvaluator) map[string]string {
	return map[string]string{
		"permission": string(entry.Permission),
		"user_type":  string(entry.UserType),
		"cell":       entry.Name,
		"source":     entry.Source,
	}
}
