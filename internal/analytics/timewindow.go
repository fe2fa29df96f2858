package analytics

import "strings"

// TimeWindow is a resolved query horizon in hours plus the token it came from.
type TimeWindow struct {
	Token string
	Hours int
}

var timeRangeHours = map[string]int{
	"1h":  1,
	"24h": 24,
	"7d":  168,
	"30d": 720,
}

// ResolveTimeRange maps a symbolic range token to an hour count. Unknown
// tokens resolve to defaultHours; the function is total.
func ResolveTimeRange(token string, defaultHours int) TimeWindow {
	if hours, ok := timeRangeHours[token]; ok {
		return TimeWindow{Token: token, Hours: hours}
	}
	if defaultHours <= 0 {
		defaultHours = 24
	}
	return TimeWindow{Token: token, Hours: defaultHours}
}

// ResolveInvestigationFilter maps the time-window-investigation filter phrases
// ("is in the last N complete days") to an hour count.
func ResolveInvestigationFilter(filter string, defaultHours int) TimeWindow {
	switch {
	case strings.Contains(filter, "last 1 complete day"):
		return TimeWindow{Token: filter, Hours: 24}
	case strings.Contains(filter, "last 7 complete days"):
		return TimeWindow{Token: filter, Hours: 168}
	case strings.Contains(filter, "last 30 complete days"):
		return TimeWindow{Token: filter, Hours: 720}
	}
	if defaultHours <= 0 {
		defaultHours = 24
	}
	return TimeWindow{Token: filter, Hours: defaultHours}
}
