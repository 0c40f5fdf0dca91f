package parser

import (
	"strconv"
	"time"
)

// timestampLayouts lists, in try-order, every textual timestamp shape the
// regex parser's patterns may capture. All but the Apache layout carry no
// zone information; time.Parse resolves those against UTC, matching the
// original Rust source's chrono::NaiveDateTime::timestamp() behavior (which
// computes epoch seconds from the naive components with no timezone law
// applied) — see DESIGN.md for the Open Question this preserves.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999Z", // ISO 8601 with fractional seconds
	"2006-01-02T15:04:05Z",           // ISO 8601 simple
	"2006-01-02 15:04:05.999999999",  // SQL timestamp with fractional
	"2006-01-02 15:04:05",            // SQL timestamp
	"2006/01/02 15:04:05",            // alternative format
	"02/Jan/2006:15:04:05 -0700",     // Apache/access-log format
}

// parseTimestamp tries every known layout in order, then falls back to
// interpreting the string as a bare Unix epoch second count.
func parseTimestamp(s string) (uint64, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return uint64(t.Unix()), true
		}
	}

	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, true
	}

	return 0, false
}
