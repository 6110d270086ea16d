// Package backend is the public entry point of the permission system: it
// compiles the configured tables once and answers per-request permission
// checks for the host identity framework.
package backend

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AllianceSoftware/csvpermissions-go/csvperm"
	apperrors "github.com/AllianceSoftware/csvpermissions-go/errors"
	"github.com/AllianceSoftware/csvpermissions-go/registry"
)

const tracerName = "github.com/AllianceSoftware/csvpermissions-go/backend"

// UserTypeFunc extracts the user type from the host's user value. ok=false
// means the user has no resolvable type (for example anonymous users) and
// every check returns false.
type UserTypeFunc func(user any) (csvperm.UserType, bool)

// DefaultUserType reads the user type from a UserType() string method and
// treats an empty result as no type.
func DefaultUserType(user any) (csvperm.UserType, bool) {
	typed, ok := user.(interface{ UserType() string })
	if !ok {
		return "", false
	}
	userType := typed.UserType()
	if userType == "" {
		return "", false
	}
	return csvperm.UserType(userType), true
}

// Options configure a Backend.
type Options struct {
	// Sources are the ordered permission tables. Required.
	Sources []csvperm.Source
	// Chain is the resolver chain, typically evaluators.Default. Required.
	Chain csvperm.Chain
	// Strict makes checks against unknown permissions or user types fail
	// with a lookup error instead of returning false.
	Strict bool
	// PermName overrides permission naming. NamerID must identify it when
	// set; the default namer has ID "default".
	PermName csvperm.ResolvePermNameFunc
	NamerID  string
	// UserType overrides user type extraction; nil means DefaultUserType.
	UserType UserTypeFunc
	// Catalog validates entity names during parsing. Optional.
	Catalog csvperm.EntityCatalog
	// Registry shares table builds across backends; nil means the
	// process-wide registry.
	Registry *registry.Registry
}

// Backend answers permission checks against a compiled table.
type Backend struct {
	table    *csvperm.Table
	strict   bool
	userType UserTypeFunc
	tracer   trace.Tracer
}

// New builds or fetches the compiled table for the given options.
func New(ctx context.Context, opts Options) (*Backend, error) {
	if len(opts.Sources) == 0 {
		return nil, apperrors.New(apperrors.CodeConfigPathsMissing, "no permission table sources configured")
	}
	if len(opts.Chain.Resolvers) == 0 {
		return nil, apperrors.New(apperrors.CodeConfigChainMissing, "no evaluator resolvers configured")
	}

	namer := opts.PermName
	namerID := opts.NamerID
	if namer == nil {
		namer = csvperm.DefaultPermName
		namerID = "default"
	}
	userType := opts.UserType
	if userType == nil {
		userType = DefaultUserType
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.Shared()
	}

	identities := make([]string, len(opts.Sources))
	for i, src := range opts.Sources {
		identities[i] = src.Identity()
	}
	key := registry.Key{Sources: identities, ChainID: opts.Chain.ID, NamerID: namerID}

	table, err := reg.GetOrBuild(ctx, key, func(context.Context) (*csvperm.Table, error) {
		return build(opts.Sources, csvperm.ParseOptions{PermName: namer, Catalog: opts.Catalog}, opts.Chain)
	})
	if err != nil {
		return nil, err
	}

	return &Backend{
		table:    table,
		strict:   opts.Strict,
		userType: userType,
		tracer:   otel.Tracer(tracerName),
	}, nil
}

func build(sources []csvperm.Source, parseOpts csvperm.ParseOptions, chain csvperm.Chain) (*csvperm.Table, error) {
	results := make([]*csvperm.ParseResult, len(sources))
	for i, src := range sources {
		result, err := csvperm.Parse(src, parseOpts)
		if err != nil {
			return nil, err
		}
		results[i] = result
	}
	merged, err := csvperm.Merge(results)
	if err != nil {
		return nil, err
	}
	return csvperm.BuildTable(merged, chain)
}

// HasPerm reports whether user holds perm, optionally against obj (nil for
// global checks).
//
// A nil user or one without a resolvable type is denied outright. Unknown
// permissions and unknown user types are denied in non-strict mode and fail
// with a lookup error in strict mode. A cell that no source populated is
// denied in both modes.
func (b *Backend) HasPerm(ctx context.Context, user any, perm csvperm.PermName, obj any) (allowed bool, err error) {
	_, span := b.tracer.Start(ctx, "csvperm.HasPerm", trace.WithAttributes(
		attribute.String("csvperm.permission", string(perm)),
	))
	defer func() {
		span.SetAttributes(attribute.Bool("csvperm.allowed", allowed))
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	if user == nil {
		return false, nil
	}
	userType, ok := b.userType(user)
	if !ok {
		return false, nil
	}
	span.SetAttributes(attribute.String("csvperm.user_type", string(userType)))

	if !b.table.HasPerm(perm) {
		if b.strict {
			return false, apperrors.WithMetadata(apperrors.CodeLookupUnknownPermission,
				"permission "+string(perm)+" is not known",
				map[string]string{"permission": string(perm)})
		}
		return false, nil
	}
	if !b.table.HasUserType(userType) {
		if b.strict {
			return false, apperrors.WithMetadata(apperrors.CodeLookupUnknownUserType,
				"user type "+string(userType)+" is not known",
				map[string]string{"user_type": string(userType)})
		}
		return false, nil
	}

	evaluator, ok := b.table.Evaluator(perm, userType)
	if !ok {
		// permission and user type are both known but no source populated
		// this cell; defer to other authorization mechanisms
		return false, nil
	}
	return evaluator(user, obj)
}

// IsGlobalPerm reports whether perm is global. Unknown permissions fail with
// a lookup error regardless of strict mode.
func (b *Backend) IsGlobalPerm(perm csvperm.PermName) (bool, error) {
	isGlobal, ok := b.table.IsGlobal(perm)
	if !ok {
		return false, apperrors.WithMetadata(apperrors.CodeLookupUnknownPermission,
			"permission "+string(perm)+" is not known",
			map[string]string{"permission": string(perm)})
	}
	return isGlobal, nil
}

// Table exposes the compiled lookup table, mainly for diagnostics tooling.
func (b *Backend) Table() *csvperm.Table {
	return b.table
}
