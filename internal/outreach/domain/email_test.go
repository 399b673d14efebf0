package domain

import "testing"

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"claim for sending", StatusScheduled, StatusSending, false},
		{"cancel pending", StatusScheduled, StatusCancelled, false},
		{"delivery succeeds", StatusSending, StatusSent, false},
		{"delivery bounces", StatusSending, StatusBounced, false},
		{"late bounce", StatusSent, StatusBounced, false},
		{"cannot cancel mid-send", StatusSending, StatusCancelled, true},
		{"cannot cancel after send", StatusSent, StatusCancelled, true},
		{"cannot skip claim", StatusScheduled, StatusSent, true},
		{"cancelled is terminal", StatusCancelled, StatusSending, true},
		{"bounced is terminal", StatusBounced, StatusScheduled, true},
		{"unknown target", StatusScheduled, Status("DRAFT"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Transition(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("Transition(%s, %s) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []Status{StatusCancelled, StatusBounced} {
		if !IsTerminal(s) {
			t.Errorf("%s should be terminal", s)
		}
	}
	if IsTerminal(StatusSent) {
		t.Error("SENT should still allow a late bounce")
	}
}

func TestIsFinalStep(t *testing.T) {
	if (Email{Step: 3}).IsFinalStep(4) {
		t.Error("step 3 of 4 is not final")
	}
	if !(Email{Step: 4}).IsFinalStep(4) {
		t.Error("step 4 of 4 is final")
	}
}
