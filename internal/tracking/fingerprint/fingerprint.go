// Package fingerprint derives dedup keys for tracking events.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// bucket is the dedup window: repeated signals from the same client inside
// one window collapse into a single event.
const bucket = time.Minute

// Open fingerprints an open signal by client IP and time bucket, so mail
// clients that fetch the pixel repeatedly count once per window.
func Open(ip string, at time.Time) string {
	return digest(ip, at, "")
}

// Click fingerprints a click signal; the target URL participates so clicks
// on different links in one email stay distinct.
func Click(ip string, at time.Time, url string) string {
	return digest(ip, at, url)
}

func digest(ip string, at time.Time, url string) string {
	window := at.UTC().Truncate(bucket).Unix()

	h := sha256.New()
	h.Write([]byte(ip))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(window, 10)))
	if url != "" {
		h.Write([]byte{0})
		h.Write([]byte(url))
	}
	return hex.EncodeToString(h.Sum(nil))
}
