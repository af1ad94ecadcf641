package checksum

import "testing"

func TestSum_Deterministic(t *testing.T) {
	a := Sum([]byte("# Hello\n"))
	b := SumString("# Hello\n")
	if a != b {
		t.Fatalf("Sum and SumString disagree: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64 hex chars", len(a))
	}
	if Sum([]byte("# Hello")) == a {
		t.Error("different input produced the same digest")
	}
}
