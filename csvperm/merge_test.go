package csvperm_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/AllianceSoftware/csvpermissions-go/csvperm"
	apperrors "github.com/AllianceSoftware/csvpermissions-go/errors"
	"github.com/AllianceSoftware/csvpermissions-go/internal/testkit"
)

func parseAll(t *testing.T, sources ...csvperm.Source) []*csvperm.ParseResult {
	t.Helper()
	results := make([]*csvperm.ParseResult, len(sources))
	for i, src := range sources {
		result, err := csvperm.Parse(src, csvperm.ParseOptions{})
		if err != nil {
			t.Fatalf("parse %s: %v", src.Identity(), err)
		}
		results[i] = result
	}
	return results
}

func TestMergeDuplicateSourceIsNotAConflict(t *testing.T) {
	data := `
		Model, App, Action, Is Global, TypeA
		Widget, app1, detail, no, all
	`
	a := testkit.CSV("a.csv", data)

	single, err := csvperm.Merge(parseAll(t, a))
	if err != nil {
		t.Fatalf("merge single: %v", err)
	}
	doubled, err := csvperm.Merge(parseAll(t, a, a))
	if err != nil {
		t.Fatalf("merge doubled: %v", err)
	}

	if !reflect.DeepEqual(single.IsGlobal, doubled.IsGlobal) {
		t.Fatalf("is global differs: %v vs %v", single.IsGlobal, doubled.IsGlobal)
	}
	if !reflect.DeepEqual(single.Entries, doubled.Entries) {
		t.Fatalf("entries differ: %v vs %v", single.Entries, doubled.Entries)
	}
	if !reflect.DeepEqual(single.UserTypes, doubled.UserTypes) {
		t.Fatalf("user types differ: %v vs %v", single.UserTypes, doubled.UserTypes)
	}
}

func TestMergeGlobalFlagConflict(t *testing.T) {
	a := testkit.CSV("a.csv", `
		Model, App, Action, Is Global, TypeA
		Widget, app1, approve, no, all
	`)
	b := testkit.CSV("b.csv", `
		Model, App, Action, Is Global, TypeA
		Widget, app1, approve, yes, yes
	`)

	_, err := csvperm.Merge(parseAll(t, a, b))
	if !apperrors.IsCode(err, apperrors.CodeMergeGlobalConflict) {
		t.Fatalf("expected global conflict, got %v", err)
	}
	if !apperrors.IsConflict(err) {
		t.Fatalf("expected conflict class, got %v", err)
	}
	sources := apperrors.GetMetadata(err)["sources"]
	if !strings.Contains(sources, "a.csv") || !strings.Contains(sources, "b.csv") {
		t.Fatalf("conflict should name both sources, got %q", sources)
	}
}

func TestMergeCellRules(t *testing.T) {
	header := "Model, App, Action, Is Global, TypeA\n"

	tests := []struct {
		name     string
		cellA    string
		cellB    string
		want     string
		wantSrc  string
		conflict bool
	}{
		{name: "identical cells keep first", cellA: "all", cellB: "all", want: "all", wantSrc: "a.csv"},
		{name: "later empty does not erase", cellA: "all", cellB: "", want: "all", wantSrc: "a.csv"},
		{name: "later value fills earlier empty", cellA: "", cellB: "all", want: "all", wantSrc: "b.csv"},
		{name: "different values conflict", cellA: "all", cellB: "own", conflict: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := testkit.CSV("a.csv", header+"Widget, app1, detail, no, "+tc.cellA)
			b := testkit.CSV("b.csv", header+"Widget, app1, detail, no, "+tc.cellB)

			merged, err := csvperm.Merge(parseAll(t, a, b))
			if tc.conflict {
				if !apperrors.IsCode(err, apperrors.CodeMergeCellConflict) {
					t.Fatalf("expected cell conflict, got %v", err)
				}
				meta := apperrors.GetMetadata(err)
				if meta["permission"] != "app1.detail_widget" || meta["user_type"] != "TypeA" {
					t.Fatalf("conflict metadata = %v", meta)
				}
				return
			}
			if err != nil {
				t.Fatalf("merge: %v", err)
			}
			entry := merged.Entries["app1.detail_widget"]["TypeA"]
			if entry.Name != tc.want || entry.Source != tc.wantSrc {
				t.Fatalf("kept cell %q from %s, want %q from %s", entry.Name, entry.Source, tc.want, tc.wantSrc)
			}
		})
	}
}

func TestMergeUnionsUserTypesAndPermissions(t *testing.T) {
	a := testkit.CSV("a.csv", `
		Model, App, Action, Is Global, TypeA
		Widget, app1, detail, no, all
	`)
	b := testkit.CSV("b.csv", `
		Model, App, Action, Is Global, TypeB
		Gadget, app1, list, yes, yes
	`)

	merged, err := csvperm.Merge(parseAll(t, a, b))
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !reflect.DeepEqual(merged.UserTypes, []csvperm.UserType{"TypeA", "TypeB"}) {
		t.Fatalf("user types = %v", merged.UserTypes)
	}
	if len(merged.IsGlobal) != 2 {
		t.Fatalf("permissions = %v", merged.IsGlobal)
	}
}

func TestParseDuplicateRowsWithinSource(t *testing.T) {
	// duplicate rows inside one source follow the same cell rules as a
	// multi-source merge
	src := testkit.CSV("perms.csv", `
		Model, App, Action, Is Global, TypeA, TypeB
		Widget, app1, detail, no, all,
		Widget, app1, detail, no, , own
	`)
	result, err := csvperm.Parse(src, csvperm.ParseOptions{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := result.Entries["app1.detail_widget"]["TypeA"].Name; got != "all" {
		t.Fatalf("TypeA cell = %q, want all", got)
	}
	if got := result.Entries["app1.detail_widget"]["TypeB"].Name; got != "own" {
		t.Fatalf("TypeB cell = %q, want own", got)
	}

	src = testkit.CSV("perms.csv", `
		Model, App, Action, Is Global, TypeA
		Widget, app1, detail, no, all
		Widget, app1, detail, no, own
	`)
	_, err = csvperm.Parse(src, csvperm.ParseOptions{})
	if !apperrors.IsCode(err, apperrors.CodeMergeCellConflict) {
		t.Fatalf("expected cell conflict, got %v", err)
	}
}
