package fingerprint

import (
	"testing"
	"time"
)

func TestOpenCollapsesWithinWindow(t *testing.T) {
	base := time.Date(2025, 6, 2, 10, 30, 5, 0, time.UTC)

	first := Open("203.0.113.7", base)
	second := Open("203.0.113.7", base.Add(40*time.Second))
	if first != second {
		t.Error("opens 40s apart in one minute bucket should share a fingerprint")
	}

	third := Open("203.0.113.7", base.Add(2*time.Minute))
	if first == third {
		t.Error("opens in different buckets should differ")
	}

	other := Open("198.51.100.9", base)
	if first == other {
		t.Error("different IPs should differ")
	}
}

func TestClickDistinguishesURLs(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 30, 5, 0, time.UTC)

	a := Click("203.0.113.7", at, "https://example.com/pricing")
	b := Click("203.0.113.7", at, "https://example.com/about")
	if a == b {
		t.Error("clicks on different URLs should differ")
	}

	again := Click("203.0.113.7", at.Add(30*time.Second), "https://example.com/pricing")
	if a != again {
		t.Error("repeat click within the window should collapse")
	}
}
