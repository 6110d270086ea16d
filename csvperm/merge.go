package csvperm

import (
	"fmt"
	"sort"

	apperrors "github.com/AllianceSoftware/csvpermissions-go/errors"
)

// MergeResult is the consistent union of several parsed sources, ready for
// evaluator resolution.
type MergeResult struct {
	// IsGlobal maps each permission to its global flag.
	IsGlobal map[PermName]bool
	// Entries maps permission -> user type -> the winning unresolved cell.
	Entries map[PermName]map[UserType]UnresolvedEvaluator
	// UserTypes lists user types in order of first appearance.
	UserTypes []UserType

	// globalSource remembers which source first declared each permission,
	// for conflict diagnostics.
	globalSource map[PermName]string
}

// Merge combines parsed sources in order into one consistent view.
//
// Sources may repeat permissions and cells: identical cell text is
// deduplicated, a non-empty cell beats an empty one regardless of order, and
// two different non-empty cells for the same (permission, user type) are a
// conflict. Disagreement on a permission's global flag is always a conflict.
func Merge(results []*ParseResult) (*MergeResult, error) {
	merged := &MergeResult{
		IsGlobal:     make(map[PermName]bool),
		Entries:      make(map[PermName]map[UserType]UnresolvedEvaluator),
		globalSource: make(map[PermName]string),
	}
	seenTypes := make(map[UserType]struct{})

	for _, result := range results {
		for _, userType := range result.UserTypes {
			if _, ok := seenTypes[userType]; !ok {
				seenTypes[userType] = struct{}{}
				merged.UserTypes = append(merged.UserTypes, userType)
			}
		}

		for _, perm := range sortedPerms(result.IsGlobal) {
			isGlobal := result.IsGlobal[perm]
			if prior, ok := merged.IsGlobal[perm]; ok {
				if prior != isGlobal {
					return nil, conflictGlobal(perm, merged.globalSource[perm], result.Source)
				}
			} else {
				merged.IsGlobal[perm] = isGlobal
				merged.globalSource[perm] = result.Source
			}

			if merged.Entries[perm] == nil {
				merged.Entries[perm] = make(map[UserType]UnresolvedEvaluator)
			}
			cells := result.Entries[perm]
			for _, userType := range result.UserTypes {
				entry, ok := cells[userType]
				if !ok {
					continue
				}
				existing, ok := merged.Entries[perm][userType]
				if !ok {
					merged.Entries[perm][userType] = entry
					continue
				}
				kept, err := mergeCell(existing, entry)
				if err != nil {
					return nil, err
				}
				merged.Entries[perm][userType] = kept
			}
		}
	}
	return merged, nil
}

// mergeCell applies the cell consistency rules to two definitions of the
// same (permission, user type) cell: identical text keeps the first, a
// non-empty value beats an empty one, and two different non-empty values
// conflict.
func mergeCell(first, second UnresolvedEvaluator) (UnresolvedEvaluator, error) {
	switch {
	case first.Name == second.Name:
		return first, nil
	case second.Name == "":
		return first, nil
	case first.Name == "":
		return second, nil
	default:
		return UnresolvedEvaluator{}, apperrors.WithMetadata(apperrors.CodeMergeCellConflict,
			fmt.Sprintf("conflicting access definitions for %s / %s: %q in %s vs %q in %s",
				first.Permission, first.UserType, first.Name, first.Source, second.Name, second.Source),
			map[string]string{
				"permission": string(first.Permission),
				"user_type":  string(first.UserType),
				"sources":    first.Source + ", " + second.Source,
			})
	}
}

func conflictGlobal(perm PermName, firstSource, secondSource string) error {
	return apperrors.WithMetadata(apperrors.CodeMergeGlobalConflict,
		fmt.Sprintf("conflicting Is Global values for %s between %s and %s", perm, firstSource, secondSource),
		map[string]string{
			"permission": string(perm),
			"sources":    firstSource + ", " + secondSource,
		})
}

func sortedPerms(isGlobal map[PermName]bool) []PermName {
	perms := make([]PermName, 0, len(isGlobal))
	for perm := range isGlobal {
		perms = append(perms, perm)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}
