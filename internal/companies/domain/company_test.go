package domain

import (
	"testing"

	"leadmachine_backend/platform/apperr"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		cur     Status
		next    Status
		wantErr bool
	}{
		{"new to enriching", StatusNew, StatusEnriching, false},
		{"enriching to enriched", StatusEnriching, StatusEnriched, false},
		{"enriching to no email", StatusEnriching, StatusNoEmail, false},
		{"enriched to scored", StatusEnriched, StatusScored, false},
		{"no email retry", StatusNoEmail, StatusNew, false},
		{"new straight to scored", StatusNew, StatusScored, true},
		{"scored is terminal", StatusScored, StatusNew, true},
		{"enriched back to new", StatusEnriched, StatusNew, true},
		{"skip enriching", StatusNew, StatusEnriched, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Transition(tt.cur, tt.next)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Transition(%s, %s) error = %v, wantErr %v", tt.cur, tt.next, err, tt.wantErr)
			}
			if err != nil && !apperr.Is(err, apperr.KindInvalidTransition) {
				t.Errorf("expected InvalidTransition kind, got %v", apperr.GetKind(err))
			}
		})
	}
}

func TestTransitionUnknownStatus(t *testing.T) {
	err := Transition(StatusNew, Status("BOGUS"))
	if err == nil {
		t.Fatal("expected error for unknown status")
	}
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected Validation kind, got %v", apperr.GetKind(err))
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(StatusScored) {
		t.Error("SCORED should be terminal")
	}
	for _, s := range []Status{StatusNew, StatusEnriching, StatusEnriched, StatusNoEmail} {
		if IsTerminal(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
