package schedule

import (
	"testing"
	"time"
)

func amsterdam(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

func newCalendar(t *testing.T) *Calendar {
	t.Helper()
	cal, err := New("Europe/Amsterdam", 9, 17)
	if err != nil {
		t.Fatal(err)
	}
	return cal
}

func TestInWindow(t *testing.T) {
	cal := newCalendar(t)
	loc := amsterdam(t)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		// 2025-06-02 is a Monday.
		{"monday morning", time.Date(2025, 6, 2, 9, 0, 0, 0, loc), true},
		{"monday last hour", time.Date(2025, 6, 2, 16, 59, 0, 0, loc), true},
		{"monday at close", time.Date(2025, 6, 2, 17, 0, 0, 0, loc), false},
		{"monday before open", time.Date(2025, 6, 2, 8, 59, 0, 0, loc), false},
		{"saturday", time.Date(2025, 6, 7, 11, 0, 0, 0, loc), false},
		{"sunday", time.Date(2025, 6, 8, 11, 0, 0, 0, loc), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cal.InWindow(tt.at); got != tt.want {
				t.Errorf("InWindow(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestSnapForward(t *testing.T) {
	cal := newCalendar(t)
	loc := amsterdam(t)

	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{
			"inside window stays put",
			time.Date(2025, 6, 2, 14, 30, 0, 0, loc),
			time.Date(2025, 6, 2, 14, 30, 0, 0, loc),
		},
		{
			"early morning snaps to same-day open",
			time.Date(2025, 6, 2, 6, 15, 0, 0, loc),
			time.Date(2025, 6, 2, 9, 0, 0, 0, loc),
		},
		{
			"evening snaps to next day",
			time.Date(2025, 6, 2, 19, 0, 0, 0, loc),
			time.Date(2025, 6, 3, 9, 0, 0, 0, loc),
		},
		{
			"friday evening snaps to monday",
			time.Date(2025, 6, 6, 18, 0, 0, 0, loc),
			time.Date(2025, 6, 9, 9, 0, 0, 0, loc),
		},
		{
			"saturday snaps to monday",
			time.Date(2025, 6, 7, 12, 0, 0, 0, loc),
			time.Date(2025, 6, 9, 9, 0, 0, 0, loc),
		},
		{
			"sunday snaps to monday",
			time.Date(2025, 6, 8, 8, 0, 0, 0, loc),
			time.Date(2025, 6, 9, 9, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cal.SnapForward(tt.at)
			if !got.Equal(tt.want) {
				t.Errorf("SnapForward(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestSnapForwardConvertsUTC(t *testing.T) {
	cal := newCalendar(t)
	loc := amsterdam(t)

	// 07:30 UTC in June is 09:30 in Amsterdam, inside the window.
	at := time.Date(2025, 6, 2, 7, 30, 0, 0, time.UTC)
	got := cal.SnapForward(at)
	want := time.Date(2025, 6, 2, 9, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("SnapForward(%v) = %v, want %v", at, got, want)
	}
}

func TestPlanSequence(t *testing.T) {
	cal := newCalendar(t)
	loc := amsterdam(t)

	// Tuesday 10:00; offsets {0,3,7,14}.
	base := time.Date(2025, 6, 3, 10, 0, 0, 0, loc)
	plan := cal.PlanSequence(base, []int{0, 3, 7, 14})
	if len(plan) != 4 {
		t.Fatalf("planned %d sends, want 4", len(plan))
	}

	want := []time.Time{
		time.Date(2025, 6, 3, 10, 0, 0, 0, loc),  // Tuesday
		time.Date(2025, 6, 6, 10, 0, 0, 0, loc),  // Friday
		time.Date(2025, 6, 10, 10, 0, 0, 0, loc), // Tuesday
		time.Date(2025, 6, 17, 10, 0, 0, 0, loc), // Tuesday
	}
	for i := range want {
		if !plan[i].Equal(want[i]) {
			t.Errorf("step %d scheduled at %v, want %v", i+1, plan[i], want[i])
		}
	}

	// Offsets that land on a weekend move to Monday 09:00.
	saturdayBase := time.Date(2025, 6, 4, 10, 0, 0, 0, loc) // Wednesday
	weekendPlan := cal.PlanSequence(saturdayBase, []int{3})  // Saturday
	wantMonday := time.Date(2025, 6, 9, 9, 0, 0, 0, loc)
	if !weekendPlan[0].Equal(wantMonday) {
		t.Errorf("weekend offset scheduled at %v, want %v", weekendPlan[0], wantMonday)
	}

	for i := 1; i < len(plan); i++ {
		if !plan[i].After(plan[i-1]) {
			t.Errorf("plan not strictly increasing at step %d", i+1)
		}
	}
}

func TestNewRejectsBadWindow(t *testing.T) {
	if _, err := New("Europe/Amsterdam", 17, 9); err == nil {
		t.Error("expected inverted window to be rejected")
	}
	if _, err := New("Mars/Olympus", 9, 17); err == nil {
		t.Error("expected unknown timezone to be rejected")
	}
}
