package scoring

import (
	"strings"

	"leadmachine_backend/internal/leads/domain"
)

// Input is the firmographic snapshot a score is computed from. All fields
// come from the lead's company; missing values score conservatively.
type Input struct {
	EmployeeCount *int
	Industry      *string
	OpenVacancies int
	HasFunding    bool
	HasLinkedIn   bool
	RecentPosts   int
	Location      *string
}

// Scorer computes deterministic scores from a weights model. The same input
// always produces the same breakdown.
type Scorer struct {
	weights Weights
}

// New creates a scorer from a weights model.
func New(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score computes the total score and its per-factor breakdown.
func (s *Scorer) Score(in Input) (int, domain.ScoreBreakdown) {
	breakdown := domain.ScoreBreakdown{
		CompanySize: points(s.sizePct(in.EmployeeCount), s.weights.MaxPoints.CompanySize),
		Industry:    points(s.industryPct(in.Industry), s.weights.MaxPoints.Industry),
		Growth:      points(s.growthPct(in.OpenVacancies, in.HasFunding), s.weights.MaxPoints.Growth),
		Activity:    points(s.activityPct(in.HasLinkedIn, in.RecentPosts), s.weights.MaxPoints.Activity),
		Location:    points(s.locationPct(in.Location), s.weights.MaxPoints.Location),
	}
	return breakdown.Total(), breakdown
}

// points converts a 0-100 percentage to factor points, truncating toward zero
// so a factor can never exceed its cap.
func points(pct, maxPoints int) int {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct * maxPoints / 100
}

// sizePct favors the 11-50 employee sweet spot. Unknown sizes take a
// conservative middle value.
func (s *Scorer) sizePct(employeeCount *int) int {
	if employeeCount == nil {
		return 40
	}
	switch n := *employeeCount; {
	case n <= 0:
		return 40
	case n <= 10:
		return 60
	case n <= 50:
		return 100
	case n <= 200:
		return 80
	case n <= 500:
		return 50
	default:
		return 20
	}
}

// industryPct gives full credit for target industries, partial credit for
// related ones, and nothing otherwise.
func (s *Scorer) industryPct(industry *string) int {
	if industry == nil {
		return 0
	}
	switch {
	case matchesAny(*industry, s.weights.TargetIndustries):
		return 100
	case matchesAny(*industry, s.weights.RelatedIndustries):
		return 60
	default:
		return 0
	}
}

// growthPct reads open vacancies as a hiring signal (4% each, capped at 80%)
// with a 40% funding bonus, capped at 100% overall.
func (s *Scorer) growthPct(openVacancies int, hasFunding bool) int {
	pct := openVacancies * 4
	if pct > 80 {
		pct = 80
	}
	if hasFunding {
		pct += 40
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// activityPct rewards an online presence: 20% for having a LinkedIn page plus
// 5% per recent post, posts capped at 80%.
func (s *Scorer) activityPct(hasLinkedIn bool, recentPosts int) int {
	pct := 0
	if hasLinkedIn {
		pct = 20
	}
	postPct := recentPosts * 5
	if postPct > 80 {
		postPct = 80
	}
	pct += postPct
	if pct > 100 {
		pct = 100
	}
	return pct
}

// locationPct prefers the Randstad, then the rest of the Netherlands, then
// the EU. Unknown locations score as "other".
func (s *Scorer) locationPct(location *string) int {
	if location == nil {
		return 20
	}
	loc := *location
	switch {
	case matchesAny(loc, s.weights.RandstadCities):
		return 100
	case matchesAny(loc, s.weights.DutchMarkers):
		return 70
	case matchesAny(loc, s.weights.EUCountries):
		return 50
	default:
		return 20
	}
}

// matchesAny matches markers against the value's word tokens. Single-token
// markers must match a whole token so short codes like "nl" cannot hide
// inside unrelated words; markers spanning several tokens ("den haag",
// "e-commerce") match as substrings.
func matchesAny(value string, markers []string) bool {
	lowered := strings.ToLower(value)
	tokens := tokenize(lowered)

	for _, marker := range markers {
		marker = strings.ToLower(marker)
		if strings.ContainsFunc(marker, isTokenBoundary) {
			if strings.Contains(lowered, marker) {
				return true
			}
			continue
		}
		for _, token := range tokens {
			if token == marker {
				return true
			}
		}
	}
	return false
}

func isTokenBoundary(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, isTokenBoundary)
}
