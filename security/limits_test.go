package security

import "testing"

func TestDefaultLimitsAreEnforceable(t *testing.T) {
	def := DefaultLimits()
	if def.MaxDecompressedSize <= 0 || def.MaxStreamLength <= 0 || def.MaxStringLength <= 0 {
		t.Fatalf("size limits must be positive: %+v", def)
	}
	if def.MaxIndirectDepth <= 0 || def.MaxXRefDepth <= 0 || def.MaxXObjectDepth <= 0 {
		t.Fatalf("depth limits must be positive: %+v", def)
	}
	if def.MaxDecodeTime <= 0 || def.MaxParseTime <= 0 {
		t.Fatalf("time limits must be positive: %+v", def)
	}
	if def.MaxStreamLength > def.MaxDecompressedSize {
		t.Fatal("raw stream cap should not exceed the decoded cap")
	}
}

func TestNormalizedFillsOnlyZeroFields(t *testing.T) {
	l := Limits{MaxIndirectDepth: 3, MaxDecompressedSize: 1024}.Normalized()

	if l.MaxIndirectDepth != 3 {
		t.Fatalf("explicit depth overwritten: %d", l.MaxIndirectDepth)
	}
	if l.MaxDecompressedSize != 1024 {
		t.Fatalf("explicit size overwritten: %d", l.MaxDecompressedSize)
	}

	def := DefaultLimits()
	if l.MaxXRefDepth != def.MaxXRefDepth {
		t.Fatalf("zero field not defaulted: got %d, want %d", l.MaxXRefDepth, def.MaxXRefDepth)
	}
	if l.MaxParseTime != def.MaxParseTime {
		t.Fatalf("zero duration not defaulted: got %v, want %v", l.MaxParseTime, def.MaxParseTime)
	}
}

func TestNormalizedReplacesNegativeValues(t *testing.T) {
	l := Limits{MaxArraySize: -1}.Normalized()
	if l.MaxArraySize != DefaultLimits().MaxArraySize {
		t.Fatalf("negative limit kept: %d", l.MaxArraySize)
	}
}
