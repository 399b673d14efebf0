// Package scoring computes lead scores from company firmographics.
package scoring

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MaxPoints caps each scoring factor. The caps must sum to at most 100 so the
// total score stays on a 0-100 scale.
type MaxPoints struct {
	CompanySize int `yaml:"companySize"`
	Industry    int `yaml:"industry"`
	Growth      int `yaml:"growth"`
	Activity    int `yaml:"activity"`
	Location    int `yaml:"location"`
}

// Weights is the tunable scoring model. Operators override the defaults with
// a YAML file; a missing file means the compiled-in defaults apply.
type Weights struct {
	MaxPoints         MaxPoints `yaml:"maxPoints"`
	TargetIndustries  []string  `yaml:"targetIndustries"`
	RelatedIndustries []string  `yaml:"relatedIndustries"`
	RandstadCities    []string  `yaml:"randstadCities"`
	DutchMarkers      []string  `yaml:"dutchMarkers"`
	EUCountries       []string  `yaml:"euCountries"`
}

// DefaultWeights returns the compiled-in scoring model.
func DefaultWeights() Weights {
	return Weights{
		MaxPoints: MaxPoints{
			CompanySize: 30,
			Industry:    25,
			Growth:      20,
			Activity:    15,
			Location:    10,
		},
		TargetIndustries: []string{
			"software", "saas", "it services", "information technology",
			"fintech", "e-commerce",
		},
		RelatedIndustries: []string{
			"consulting", "marketing", "telecommunications", "media",
			"logistics",
		},
		RandstadCities: []string{
			"amsterdam", "rotterdam", "den haag", "the hague", "utrecht",
			"haarlem", "leiden", "delft", "almere", "amersfoort", "zoetermeer",
		},
		DutchMarkers: []string{
			"netherlands", "nederland", "holland", "nl",
			"eindhoven", "groningen", "tilburg", "breda", "nijmegen",
			"apeldoorn", "arnhem", "enschede", "zwolle", "maastricht",
		},
		EUCountries: []string{
			"belgium", "germany", "france", "spain", "italy", "portugal",
			"austria", "poland", "denmark", "sweden", "finland", "ireland",
			"luxembourg", "czech", "hungary", "romania", "greece", "croatia",
			"slovakia", "slovenia", "bulgaria", "estonia", "latvia",
			"lithuania", "cyprus", "malta",
		},
	}
}

// Load reads a weights file and overlays it on the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Weights, error) {
	weights := DefaultWeights()
	if path == "" {
		return weights, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, fmt.Errorf("read scoring weights file: %w", err)
	}
	if err := yaml.Unmarshal(data, &weights); err != nil {
		return Weights{}, fmt.Errorf("parse scoring weights file: %w", err)
	}
	if err := weights.Validate(); err != nil {
		return Weights{}, err
	}
	return weights, nil
}

// Validate checks the weights are usable as a 0-100 scoring model.
func (w Weights) Validate() error {
	caps := []int{
		w.MaxPoints.CompanySize, w.MaxPoints.Industry, w.MaxPoints.Growth,
		w.MaxPoints.Activity, w.MaxPoints.Location,
	}
	total := 0
	for _, c := range caps {
		if c < 0 {
			return fmt.Errorf("scoring weights: factor cap must not be negative, got %d", c)
		}
		total += c
	}
	if total > 100 {
		return fmt.Errorf("scoring weights: factor caps sum to %d, must not exceed 100", total)
	}
	return nil
}
