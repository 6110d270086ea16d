// Package errors provides structured error handling for permission
// table compilation and evaluation.
package errors

import (
	"strings"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Table format errors (build time)
	CodeTableInvalidHeader        Code = "TABLE_INVALID_HEADER"
	CodeTableDuplicateUserType    Code = "TABLE_DUPLICATE_USER_TYPE"
	CodeTableUnnamedColumnCell    Code = "TABLE_UNNAMED_COLUMN_CELL"
	CodeTableIncompleteLine       Code = "TABLE_INCOMPLETE_LINE"
	CodeTableInvalidGlobalFlag    Code = "TABLE_INVALID_GLOBAL_FLAG"
	CodeTableActionGlobalMismatch Code = "TABLE_ACTION_GLOBAL_MISMATCH"
	CodeTableUnknownEntity        Code = "TABLE_UNKNOWN_ENTITY"
	CodeTableEmpty                Code = "TABLE_EMPTY"
	CodeTableRead                 Code = "TABLE_READ_FAILED"

	// Multi-source merge conflicts (build time)
	CodeMergeGlobalConflict Code = "MERGE_GLOBAL_CONFLICT"
	CodeMergeCellConflict   Code = "MERGE_CELL_CONFLICT"

	// Evaluator resolution errors (build time)
	CodeResolveFailed          Code = "RESOLVE_FAILED"
	CodeResolveUnclaimed       Code = "RESOLVE_UNCLAIMED"
	CodeResolveScopeMismatch   Code = "RESOLVE_SCOPE_MISMATCH"
	CodeResolveMissingFunction Code = "RESOLVE_MISSING_FUNCTION"
	CodeResolveEntityRequired  Code = "RESOLVE_ENTITY_REQUIRED"

	// Scope errors (check time)
	CodeScopeObjectRequired  Code = "SCOPE_OBJECT_REQUIRED"
	CodeScopeObjectForbidden Code = "SCOPE_OBJECT_FORBIDDEN"

	// Lookup errors (check time, strict mode)
	CodeLookupUnknownPermission Code = "LOOKUP_UNKNOWN_PERMISSION"
	CodeLookupUnknownUserType   Code = "LOOKUP_UNKNOWN_USER_TYPE"

	// Deferred failure: a rule referenced by the table has no registered
	// implementation and was actually invoked.
	CodeRuleNotImplemented Code = "RULE_NOT_IMPLEMENTED"

	// Configuration errors
	CodeConfigPathsMissing Code = "CONFIG_PATHS_MISSING"
	CodeConfigChainMissing Code = "CONFIG_CHAIN_MISSING"
)

// GRPCCode maps domain codes to gRPC status codes for hosts that surface
// authorization failures over gRPC.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - malformed tables, merge conflicts, bad configuration
	case CodeTableInvalidHeader,
		CodeTableDuplicateUserType,
		CodeTableUnnamedColumnCell,
		CodeTableIncompleteLine,
		CodeTableInvalidGlobalFlag,
		CodeTableActionGlobalMismatch,
		CodeTableUnknownEntity,
		CodeTableEmpty,
		CodeMergeGlobalConflict,
		CodeMergeCellConflict,
		CodeResolveFailed,
		CodeResolveUnclaimed,
		CodeResolveScopeMismatch,
		CodeResolveMissingFunction,
		CodeResolveEntityRequired,
		CodeConfigPathsMissing,
		CodeConfigChainMissing:
		return codes.InvalidArgument

	// FailedPrecondition - decision invoked with the wrong object scope
	case CodeScopeObjectRequired,
		CodeScopeObjectForbidden:
		return codes.FailedPrecondition

	// NotFound - strict-mode lookups of unknown permissions or user types
	case CodeLookupUnknownPermission,
		CodeLookupUnknownUserType:
		return codes.NotFound

	case CodeRuleNotImplemented:
		return codes.Unimplemented

	default:
		return codes.Internal
	}
}

// Taxonomy helpers. Codes are grouped by prefix so callers can branch on the
// class of failure without enumerating individual codes.

// IsFormat reports whether err is a table format error.
func IsFormat(err error) bool { return hasPrefix(err, "TABLE_") }

// IsConflict reports whether err is a multi-source merge conflict.
func IsConflict(err error) bool { return hasPrefix(err, "MERGE_") }

// IsResolution reports whether err is an evaluator resolution failure.
func IsResolution(err error) bool { return hasPrefix(err, "RESOLVE_") }

// IsScope reports whether err is a check-time object scope violation.
func IsScope(err error) bool { return hasPrefix(err, "SCOPE_") }

// IsLookup reports whether err is a strict-mode unknown permission or
// unknown user type error.
func IsLookup(err error) bool { return hasPrefix(err, "LOOKUP_") }

// IsNotImplemented reports whether err is a deferred missing-rule failure.
func IsNotImplemented(err error) bool { return GetCode(err) == CodeRuleNotImplemented }

func hasPrefix(err error, prefix string) bool {
	return strings.HasPrefix(string(GetCode(err)), prefix)
}
