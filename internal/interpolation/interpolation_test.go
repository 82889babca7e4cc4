package interpolation

import (
	"errors"
	"slices"
	"testing"
)

func TestDirectives(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"no directives", nil},
		{"You have %d credits", []string{"%d"}},
		{"%s owes %.2f (100%%)", []string{"%s", "%.2f"}},
		{"%-5s|%03d", []string{"%-5s", "%03d"}},
		{"50%% off", nil},
	}
	for _, tt := range tests {
		if got := Directives(tt.text); !slices.Equal(got, tt.want) {
			t.Errorf("Directives(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestVerify(t *testing.T) {
	if err := Verify("You have %d credits", "Tienes %d créditos"); err != nil {
		t.Errorf("matching directives: %v", err)
	}
	if err := Verify("plain", "einfach 100%%"); err != nil {
		t.Errorf("escaped percent: %v", err)
	}

	err := Verify("%s has %d", "%d has %s")
	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("reordered directives: got %v, want *MismatchError", err)
	}
	if !slices.Equal(mismatch.Source, []string{"%s", "%d"}) {
		t.Errorf("Source = %v", mismatch.Source)
	}

	if err := Verify("%d left", "left"); err == nil {
		t.Error("dropped directive was accepted")
	}
}
