// Package evaluators provides the built-in resolver chain members that turn
// access specification strings ("yes", "no", "all", "own", "custom:...")
// into decision functions.
//
// Each constructor returns a csvperm.ResolverFunc; deployments compose them
// in any order, typically via Default.
package evaluators

import (
	"fmt"
	"log"
	"strings"

	"github.com/AllianceSoftware/csvpermissions-go/csvperm"
	apperrors "github.com/AllianceSoftware/csvpermissions-go/errors"
)

// Default composes the standard chain: the global-consistency validator
// first, then all, yes, no, empty, own, custom and the not-implemented
// fallback. provider supplies "own"/"custom" rule implementations and may be
// nil; warn may be nil for stdlib log.
func Default(provider csvperm.RulesProvider, warn csvperm.WarnFunc) csvperm.Chain {
	return csvperm.Chain{
		ID: "default",
		Resolvers: []csvperm.Resolver{
			ValidateGlobal(),
			All(),
			Yes(),
			No(),
			Empty(),
			Own(provider, warn),
			Custom(provider, warn),
			Fallback(warn),
		},
	}
}

// ValidateGlobal never resolves a cell; it validates that permissions
// without an entity are global and defers otherwise.
func ValidateGlobal() csvperm.ResolverFunc {
	return func(entry csvperm.UnresolvedEvaluator) (csvperm.Evaluator, error) {
		if entry.Entity == "" && !entry.IsGlobal {
			return nil, apperrors.New(apperrors.CodeResolveEntityRequired,
				"permissions without an entity must be global")
		}
		return nil, nil
	}
}

func evaluateAll(user, obj any) (bool, error) {
	if obj == nil {
		return false, apperrors.New(apperrors.CodeScopeObjectRequired,
			"'all' cannot be used as a global permission")
	}
	return true, nil
}

// All resolves the cell text "all": permission granted on any object.
// Rejects global permissions at resolve time.
func All() csvperm.ResolverFunc {
	return func(entry csvperm.UnresolvedEvaluator) (csvperm.Evaluator, error) {
		if entry.Name != "all" {
			return nil, nil
		}
		if entry.IsGlobal {
			return nil, apperrors.New(apperrors.CodeResolveScopeMismatch,
				"'all' cannot be used as a global permission")
		}
		return evaluateAll, nil
	}
}

func evaluateYes(user, obj any) (bool, error) {
	if obj != nil {
		return false, apperrors.New(apperrors.CodeScopeObjectForbidden,
			"'yes' cannot be used as an object-level permission")
	}
	return true, nil
}

// Yes resolves the cell text "yes": permission granted globally.
// Rejects object-scoped permissions at resolve time.
func Yes() csvperm.ResolverFunc {
	return func(entry csvperm.UnresolvedEvaluator) (csvperm.Evaluator, error) {
		if entry.Name != "yes" {
			return nil, nil
		}
		if !entry.IsGlobal {
			return nil, apperrors.New(apperrors.CodeResolveScopeMismatch,
				"'yes' cannot be used as an object-level permission")
		}
		return evaluateYes, nil
	}
}

func evaluateNo(user, obj any) (bool, error) {
	return false, nil
}

// No resolves the cell text "no": permission always denied.
func No() csvperm.ResolverFunc {
	return func(entry csvperm.UnresolvedEvaluator) (csvperm.Evaluator, error) {
		if entry.Name != "no" {
			return nil, nil
		}
		return evaluateNo, nil
	}
}

// Empty resolves the empty cell: permission always denied.
func Empty() csvperm.ResolverFunc {
	return func(entry csvperm.UnresolvedEvaluator) (csvperm.Evaluator, error) {
		if entry.Name != "" {
			return nil, nil
		}
		return evaluateNo, nil
	}
}

// Own resolves "own" and "own:<label>" cells: the permission is scoped to
// objects the user owns, as decided by a rule registered with the provider
// under "<entity>_own" or "<entity>_own_<label>".
//
// A missing implementation warns at resolve time and produces an evaluator
// that fails only when invoked, so a deployment can boot with gaps.
func Own(provider csvperm.RulesProvider, warn csvperm.WarnFunc) csvperm.ResolverFunc {
	return func(entry csvperm.UnresolvedEvaluator) (csvperm.Evaluator, error) {
		if entry.Name != "own" && !strings.HasPrefix(entry.Name, "own:") {
			return nil, nil
		}
		if entry.IsGlobal {
			return nil, apperrors.New(apperrors.CodeResolveScopeMismatch,
				"'own' cannot be used as a global permission")
		}

		functionName := entry.Entity + "_own"
		if strings.HasPrefix(entry.Name, "own:") {
			label := strings.TrimSpace(strings.TrimPrefix(entry.Name, "own:"))
			if label == "" {
				return nil, apperrors.New(apperrors.CodeResolveMissingFunction,
					"no function name specified for 'own:'; remove ':' or specify a function to call")
			}
			functionName = entry.Entity + "_own_" + label
		}

		rule, ok := lookupRule(provider, entry.App, functionName)
		if !ok {
			message := fmt.Sprintf("no implementation of %s registered for %s", functionName, entry.App)
			warnf(warn, "%s", message)
			return notImplemented(message), nil
		}
		return func(user, obj any) (bool, error) {
			if obj == nil {
				return false, apperrors.New(apperrors.CodeScopeObjectRequired,
					"'own' cannot be used as a global permission")
			}
			return rule(user, obj)
		}, nil
	}
}

// Custom resolves "custom:<name>" cells by looking up name directly with the
// provider. Scope handling is left entirely to the custom rule. Missing
// implementations defer failure to invocation, as with Own.
func Custom(provider csvperm.RulesProvider, warn csvperm.WarnFunc) csvperm.ResolverFunc {
	return func(entry csvperm.UnresolvedEvaluator) (csvperm.Evaluator, error) {
		if !strings.HasPrefix(entry.Name, "custom:") {
			return nil, nil
		}
		functionName := strings.TrimSpace(strings.TrimPrefix(entry.Name, "custom:"))
		if functionName == "" {
			return nil, apperrors.New(apperrors.CodeResolveMissingFunction,
				"no custom function name specified")
		}

		rule, ok := lookupRule(provider, entry.App, functionName)
		if !ok {
			message := fmt.Sprintf("no implementation of %s registered for %s", functionName, entry.App)
			warnf(warn, "%s", message)
			return notImplemented(message), nil
		}
		return rule, nil
	}
}

// Fallback claims any cell, warns at resolve time and produces an evaluator
// that fails when invoked. Placed last it guarantees unrecognized access
// specifications are never silently ignored.
func Fallback(warn csvperm.WarnFunc) csvperm.ResolverFunc {
	return func(entry csvperm.UnresolvedEvaluator) (csvperm.Evaluator, error) {
		message := fmt.Sprintf("%q not implemented for %s", entry.Name, entry.Permission)
		warnf(warn, "%s", message)
		return notImplemented(message), nil
	}
}

// notImplemented builds an evaluator that fails with the given message
// whenever it is invoked.
func notImplemented(message string) csvperm.Evaluator {
	return func(user, obj any) (bool, error) {
		return false, apperrors.New(apperrors.CodeRuleNotImplemented, message)
	}
}

func lookupRule(provider csvperm.RulesProvider, app, name string) (csvperm.Evaluator, bool) {
	if provider == nil {
		return nil, false
	}
	return provider.Rule(app, name)
}

func warnf(warn csvperm.WarnFunc, format string, args ...any) {
	if warn == nil {
		log.Printf(format, args...)
		return
	}
	warn(format, args...)
}
