// Package testkit provides permission table sources for tests.
package testkit

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AllianceSoftware/csvpermissions-go/csvperm"
)

// StringSource is an in-memory permission table with an explicit identity.
type StringSource struct {
	Name string
	Data string
}

// Identity implements csvperm.Source.
func (s StringSource) Identity() string { return s.Name }

// Open implements csvperm.Source.
func (s StringSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(dedent(s.Data))), nil
}

// CSV returns an in-memory source named name with the given contents.
// Leading whitespace on each line is stripped so tests can indent tables.
func CSV(name, data string) csvperm.Source {
	return StringSource{Name: name, Data: data}
}

// CSVFile writes data to a temp file and returns it as a file source.
func CSVFile(t *testing.T, data string) csvperm.Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), "permissions.csv")
	if err := os.WriteFile(path, []byte(dedent(data)), 0o600); err != nil {
		t.Fatalf("write permission table: %v", err)
	}
	return csvperm.FileSource(path)
}

func dedent(data string) string {
	lines := strings.Split(strings.TrimSpace(data), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}
