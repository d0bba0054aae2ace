package heuristic

import (
	"context"
	"strings"
	"testing"
)

func TestDecomposeBulletList(t *testing.T) {
	d := New()
	specs, err := d.Decompose(context.Background(), `Ship the release:
- tag the commit
- build artifacts
- publish the changelog`, nil)
	if err != nil {
		t.Fatalf("decompose: %v", err)
	}
	if len(specs) != 3 {
		t.Fatalf("expected 3 specs, got %d", len(specs))
	}
	if specs[0].Name != "tag the commit" {
		t.Errorf("unexpected first step %q", specs[0].Name)
	}
	if len(specs[0].Dependencies) != 0 {
		t.Errorf("first step must have no deps, got %v", specs[0].Dependencies)
	}
	for i := 1; i < len(specs); i++ {
		if len(specs[i].Dependencies) != 1 || specs[i].Dependencies[0] != i-1 {
			t.Errorf("step %d: expected dep on %d, got %v", i, i-1, specs[i].Dependencies)
		}
	}
}

func TestDecomposeNumberedList(t *testing.T) {
	d := New()
	specs, err := d.Decompose(context.Background(), "1. write tests\n2) fix bugs", nil)
	if err != nil {
		t.Fatalf("decompose: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
	if specs[0].Name != "write tests" || specs[1].Name != "fix bugs" {
		t.Errorf("unexpected names: %q, %q", specs[0].Name, specs[1].Name)
	}
}

func TestDecomposeSentences(t *testing.T) {
	d := New()
	specs, err := d.Decompose(context.Background(), "Collect the data. Clean it up. Produce the report.", nil)
	if err != nil {
		t.Fatalf("decompose: %v", err)
	}
	if len(specs) != 3 {
		t.Fatalf("expected 3 specs, got %d", len(specs))
	}
	if specs[1].Name != "Clean it up" {
		t.Errorf("unexpected second step %q", specs[1].Name)
	}
}

func TestDecomposeDigitLeadingProseIsNotABullet(t *testing.T) {
	d := New()
	specs, err := d.Decompose(context.Background(), "3 items need buying", nil)
	if err != nil {
		t.Fatalf("decompose: %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("expected single spec, got %d", len(specs))
	}
	if specs[0].Name != "3 items need buying" {
		t.Errorf("unexpected name %q", specs[0].Name)
	}
}

func TestDecomposeSingleStep(t *testing.T) {
	d := New()
	specs, err := d.Decompose(context.Background(), "just do the thing", nil)
	if err != nil {
		t.Fatalf("decompose: %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("expected 1 spec, got %d", len(specs))
	}
	if len(specs[0].Dependencies) != 0 {
		t.Errorf("single step must have no deps, got %v", specs[0].Dependencies)
	}
}

func TestStepNameTruncation(t *testing.T) {
	long := strings.Repeat("word ", 30) // 150 chars
	name := stepName(strings.TrimSpace(long))
	if len(name) > maxNameLen {
		t.Fatalf("name too long: %d chars", len(name))
	}
	if strings.HasSuffix(name, " ") {
		t.Error("name must not end with a space")
	}
}
