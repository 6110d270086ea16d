// Package permlint validates permission table CSVs the way a deployment
// would compile them, so broken tables fail in CI instead of at boot.
package permlint

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/AllianceSoftware/csvpermissions-go/csvperm"
	"github.com/AllianceSoftware/csvpermissions-go/evaluators"
	"github.com/AllianceSoftware/csvpermissions-go/telemetry"
)

// Config holds permlint command configuration.
type Config struct {
	Paths []string
	Quiet bool
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses flags into a Config. Positional arguments and the
// -paths flag both name table files; CSV_PERMISSIONS_PATHS is the fallback.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	var cfg Config
	paths := fs.String("paths", "", "comma-separated permission table files")
	fs.BoolVar(&cfg.Quiet, "quiet", false, "suppress per-cell warnings")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.Paths = splitPaths(*paths)
	cfg.Paths = append(cfg.Paths, fs.Args()...)
	if len(cfg.Paths) == 0 && lookup != nil {
		if value, ok := lookup("CSV_PERMISSIONS_PATHS"); ok {
			cfg.Paths = splitPaths(value)
		}
	}
	if len(cfg.Paths) == 0 {
		return Config{}, fmt.Errorf("no permission table files given")
	}
	return cfg, nil
}

// Run compiles the configured tables with the default resolver chain and an
// empty rules provider, writing a summary to out. Unregistered own/custom
// rules surface as warnings, not failures.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	shutdown, err := telemetry.Setup(ctx, "permlint")
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer shutdown(ctx)

	warnings := 0
	warn := func(format string, args ...any) {
		warnings++
		if !cfg.Quiet {
			fmt.Fprintf(out, "warning: "+format+"\n", args...)
		}
	}

	results := make([]*csvperm.ParseResult, len(cfg.Paths))
	for i, path := range cfg.Paths {
		result, err := csvperm.Parse(csvperm.FileSource(path), csvperm.ParseOptions{})
		if err != nil {
			return err
		}
		results[i] = result
	}
	merged, err := csvperm.Merge(results)
	if err != nil {
		return err
	}
	table, err := csvperm.BuildTable(merged, evaluators.Default(nil, warn))
	if err != nil {
		return err
	}

	perms := table.Perms()
	userTypes := table.UserTypes()
	fmt.Fprintf(out, "%d permissions, %d user types, %d warnings\n", len(perms), len(userTypes), warnings)
	for _, perm := range perms {
		isGlobal, _ := table.IsGlobal(perm)
		scope := "object"
		if isGlobal {
			scope = "global"
		}
		fmt.Fprintf(out, "%s\t%s\n", perm, scope)
	}
	return nil
}

func splitPaths(value string) []string {
	var paths []string
	for _, path := range strings.Split(value, ",") {
		if path = strings.TrimSpace(path); path != "" {
			paths = append(paths, path)
		}
	}
	return paths
}
