package domain

import (
	"strings"
	"testing"
)

func TestUsable(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", false},
		{"below threshold", strings.Repeat("x", 50), false},
		{"just below", strings.Repeat("x", 99), false},
		{"at threshold", strings.Repeat("x", 100), true},
		{"well above", strings.Repeat("x", 5000), true},
	}
	for _, tt := range tests {
		r := DeviceRecord{ExtractedText: tt.text}
		if got := r.Usable(); got != tt.want {
			t.Errorf("%s: Usable() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestValidateMeta(t *testing.T) {
	ok := DeviceMeta{SubmissionID: "K251406", DeviceName: "CardioScan AI"}
	if err := ValidateMeta(ok); err != nil {
		t.Fatalf("valid meta rejected: %v", err)
	}
	if err := ValidateMeta(DeviceMeta{DeviceName: "x"}); err == nil {
		t.Error("expected error for empty submission id")
	}
	if err := ValidateMeta(DeviceMeta{SubmissionID: "K251406"}); err == nil {
		t.Error("expected error for empty device name")
	}
}
