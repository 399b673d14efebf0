package scoring

import (
	"os"
	"path/filepath"
	"testing"
)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func TestSizeBands(t *testing.T) {
	s := New(DefaultWeights())

	tests := []struct {
		name      string
		employees *int
		want      int // points out of 30
	}{
		{"unknown", nil, 12},
		{"micro", intPtr(5), 18},
		{"sweet spot low", intPtr(11), 30},
		{"sweet spot high", intPtr(50), 30},
		{"mid", intPtr(200), 24},
		{"large", intPtr(500), 15},
		{"enterprise", intPtr(5000), 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, breakdown := s.Score(Input{EmployeeCount: tt.employees})
			if breakdown.CompanySize != tt.want {
				t.Errorf("company size points = %d, want %d", breakdown.CompanySize, tt.want)
			}
		})
	}
}

func TestIndustryMatching(t *testing.T) {
	s := New(DefaultWeights())

	tests := []struct {
		name     string
		industry *string
		want     int // points out of 25
	}{
		{"target", strPtr("SaaS"), 25},
		{"target phrase", strPtr("Information Technology & Services"), 25},
		{"target hyphenated", strPtr("E-commerce platform"), 25},
		{"related", strPtr("Marketing Agency"), 15},
		{"unrelated", strPtr("Agriculture"), 0},
		{"unknown", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, breakdown := s.Score(Input{Industry: tt.industry})
			if breakdown.Industry != tt.want {
				t.Errorf("industry points = %d, want %d", breakdown.Industry, tt.want)
			}
		})
	}
}

func TestGrowthCaps(t *testing.T) {
	s := New(DefaultWeights())

	tests := []struct {
		name      string
		vacancies int
		funding   bool
		want      int // points out of 20
	}{
		{"no signal", 0, false, 0},
		{"few vacancies", 5, false, 4},
		{"vacancy cap", 30, false, 16},
		{"funding only", 0, true, 8},
		{"cap plus funding", 30, true, 20},
		{"moderate plus funding", 10, true, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, breakdown := s.Score(Input{OpenVacancies: tt.vacancies, HasFunding: tt.funding})
			if breakdown.Growth != tt.want {
				t.Errorf("growth points = %d, want %d", breakdown.Growth, tt.want)
			}
		})
	}
}

func TestActivityCaps(t *testing.T) {
	s := New(DefaultWeights())

	tests := []struct {
		name     string
		linkedin bool
		posts    int
		want     int // points out of 15
	}{
		{"nothing", false, 0, 0},
		{"page only", true, 0, 3},
		{"posts only", false, 4, 3},
		{"post cap", false, 40, 12},
		{"page and cap", true, 40, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, breakdown := s.Score(Input{HasLinkedIn: tt.linkedin, RecentPosts: tt.posts})
			if breakdown.Activity != tt.want {
				t.Errorf("activity points = %d, want %d", breakdown.Activity, tt.want)
			}
		})
	}
}

func TestLocationTiers(t *testing.T) {
	s := New(DefaultWeights())

	tests := []struct {
		name     string
		location *string
		want     int // points out of 10
	}{
		{"randstad", strPtr("Amsterdam, Netherlands"), 10},
		{"randstad multiword", strPtr("Den Haag"), 10},
		{"dutch", strPtr("Eindhoven, NL"), 7},
		{"dutch code only", strPtr("Zwolle NL"), 7},
		{"eu", strPtr("Berlin, Germany"), 5},
		{"short code not hidden in word", strPtr("Helsinki, Finland"), 5},
		{"other", strPtr("New York, USA"), 2},
		{"unknown", nil, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, breakdown := s.Score(Input{Location: tt.location})
			if breakdown.Location != tt.want {
				t.Errorf("location points = %d, want %d", breakdown.Location, tt.want)
			}
		})
	}
}

func TestScoreIsDeterministicAndBounded(t *testing.T) {
	s := New(DefaultWeights())
	in := Input{
		EmployeeCount: intPtr(25),
		Industry:      strPtr("SaaS"),
		OpenVacancies: 30,
		HasFunding:    true,
		HasLinkedIn:   true,
		RecentPosts:   40,
		Location:      strPtr("Utrecht"),
	}

	total, breakdown := s.Score(in)
	if total != 100 {
		t.Errorf("best-case total = %d, want 100", total)
	}
	if breakdown.Total() != total {
		t.Errorf("breakdown total %d does not match score %d", breakdown.Total(), total)
	}

	for i := 0; i < 10; i++ {
		again, _ := s.Score(in)
		if again != total {
			t.Fatalf("score changed between runs: %d then %d", total, again)
		}
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	content := []byte("maxPoints:\n  companySize: 20\n  industry: 20\n  growth: 20\n  activity: 20\n  location: 20\ntargetIndustries:\n  - horeca\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	weights, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if weights.MaxPoints.CompanySize != 20 {
		t.Errorf("company size cap = %d, want 20", weights.MaxPoints.CompanySize)
	}
	if len(weights.TargetIndustries) != 1 || weights.TargetIndustries[0] != "horeca" {
		t.Errorf("target industries not overridden: %v", weights.TargetIndustries)
	}
	// Keys absent from the file keep their defaults.
	if len(weights.RandstadCities) == 0 {
		t.Error("randstad cities should fall back to defaults")
	}
}

func TestLoadRejectsOverweightModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	content := []byte("maxPoints:\n  companySize: 60\n  industry: 60\n  growth: 20\n  activity: 15\n  location: 10\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected caps summing over 100 to be rejected")
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	weights, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if weights.MaxPoints.CompanySize != 30 {
		t.Errorf("default company size cap = %d, want 30", weights.MaxPoints.CompanySize)
	}
}
