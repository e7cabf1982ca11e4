package oid

import (
	"testing"
)

func TestFromSemantic_Deterministic(t *testing.T) {
	a := FromSemantic("strata/entity/v1", "data/raw.csv")
	b := FromSemantic("strata/entity/v1", "data/raw.csv")
	if a != b {
		t.Errorf("same domain and id produced different OIDs: %s vs %s", a, b)
	}
}

func TestFromSemantic_DomainSeparation(t *testing.T) {
	a := FromSemantic("strata/entity/v1", "x")
	b := FromSemantic("strata/plan/v1", "x")
	if a == b {
		t.Error("different domains produced the same OID")
	}
}

func TestFromSemantic_SeparatorBoundary(t *testing.T) {
	// "ab"+"c" and "a"+"bc" must not collide across the domain/id boundary.
	a := FromSemantic("ab", "c")
	b := FromSemantic("a", "bc")
	if a == b {
		t.Error("domain/id boundary ambiguity: distinct inputs collided")
	}
}

func TestParse_RoundTrip(t *testing.T) {
	o := FromSemantic("strata/catalog/v1", "root")
	parsed, err := Parse(o.String())
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", o.String(), err)
	}
	if parsed != o {
		t.Errorf("round trip changed identifier: %s vs %s", parsed, o)
	}
}

func TestParse_Malformed(t *testing.T) {
	cases := []string{"", "zz", "0123", "G123456789012345678901234567890123456789012345678901234567890123"}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Errorf("Parse(%q) should have failed", c)
		}
	}
}

func TestRandom_Distinct(t *testing.T) {
	seen := make(map[OID]bool)
	for i := 0; i < 100; i++ {
		o := Random()
		if o.IsEmpty() {
			t.Fatal("Random returned the empty identifier")
		}
		if seen[o] {
			t.Fatal("Random returned a duplicate identifier")
		}
		seen[o] = true
	}
}

func TestIsEmpty(t *testing.T) {
	var zero OID
	if !zero.IsEmpty() {
		t.Error("zero value should be empty")
	}
	if Random().IsEmpty() {
		t.Error("random identifier should not be empty")
	}
}

func TestLess_TotalOrder(t *testing.T) {
	a := FromSemantic("strata/test/v1", "a")
	b := FromSemantic("strata/test/v1", "b")
	if Less(a, a) {
		t.Error("Less must be irreflexive")
	}
	if Less(a, b) == Less(b, a) {
		t.Error("Less must order distinct identifiers one way")
	}
}
