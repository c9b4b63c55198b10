package db

import (
	"reflect"
	"strings"
	"testing"
)

func TestBuildInterestFilterSpecificsOnly(t *testing.T) {
	filter, next := BuildInterestFilter([]string{"43231500", "81112200"}, 1)

	if filter.MatchNone {
		t.Fatal("expected a usable clause, got MatchNone")
	}
	if filter.Clause != "(classification_codes && $1)" {
		t.Errorf("unexpected clause: %s", filter.Clause)
	}
	if next != 2 {
		t.Errorf("expected next arg index 2, got %d", next)
	}
	if len(filter.Args) != 1 {
		t.Fatalf("expected 1 arg, got %d", len(filter.Args))
	}

	expanded, ok := filter.Args[0].([]string)
	if !ok {
		t.Fatalf("expected []string arg, got %T", filter.Args[0])
	}
	want := []string{"43231500", "V1.43231500", "81112200", "V1.81112200"}
	if !reflect.DeepEqual(expanded, want) {
		t.Errorf("expanded set = %v, want %v", expanded, want)
	}
}

func TestBuildInterestFilterSpecificsStripVendorPrefix(t *testing.T) {
	filter, _ := BuildInterestFilter([]string{"V1.43231500"}, 1)

	expanded := filter.Args[0].([]string)
	want := []string{"43231500", "V1.43231500"}
	if !reflect.DeepEqual(expanded, want) {
		t.Errorf("expanded set = %v, want %v", expanded, want)
	}
}

func TestBuildInterestFilterFamilies(t *testing.T) {
	filter, next := BuildInterestFilter([]string{"72100000"}, 3)

	if filter.MatchNone {
		t.Fatal("expected a usable clause, got MatchNone")
	}
	if !strings.Contains(filter.Clause, "unnest(classification_codes)") {
		t.Errorf("family clause missing array unnest: %s", filter.Clause)
	}
	if !strings.Contains(filter.Clause, `regexp_replace(code, '^V1\.', '')`) {
		t.Errorf("family clause missing vendor prefix strip: %s", filter.Clause)
	}
	if !strings.Contains(filter.Clause, "$3") {
		t.Errorf("family clause should use the provided arg index: %s", filter.Clause)
	}
	if next != 4 {
		t.Errorf("expected next arg index 4, got %d", next)
	}
	if got := filter.Args[0]; got != "7210" {
		t.Errorf("family arg = %v, want 7210", got)
	}
}

func TestBuildInterestFilterMixedIsDisjunction(t *testing.T) {
	filter, next := BuildInterestFilter([]string{"43231500", "72100000", "80100000"}, 1)

	if !strings.HasPrefix(filter.Clause, "(") || !strings.HasSuffix(filter.Clause, ")") {
		t.Errorf("clause must be parenthesized: %s", filter.Clause)
	}
	if strings.Count(filter.Clause, " OR ") != 2 {
		t.Errorf("expected two OR joins (overlap + 2 families): %s", filter.Clause)
	}
	if next != 4 {
		t.Errorf("expected next arg index 4, got %d", next)
	}
	if len(filter.Args) != 3 {
		t.Errorf("expected 3 args, got %d", len(filter.Args))
	}
}

func TestBuildInterestFilterEmptyMatchesNone(t *testing.T) {
	filter, next := BuildInterestFilter(nil, 5)

	if !filter.MatchNone {
		t.Fatal("empty declared set must be MatchNone, not match-all")
	}
	if filter.Clause != "" || len(filter.Args) != 0 {
		t.Errorf("MatchNone filter should carry no SQL, got %q / %v", filter.Clause, filter.Args)
	}
	if next != 5 {
		t.Errorf("arg index must not advance on MatchNone, got %d", next)
	}
}

func TestSanitizeStringSlice(t *testing.T) {
	got := sanitizeStringSlice([]string{" 43231500 ", "", "  ", "72100000"})
	want := []string{"43231500", "72100000"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sanitizeStringSlice = %v, want %v", got, want)
	}
}
