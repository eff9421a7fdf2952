package util

import "time"

// NowUTC returns the current time truncated to seconds, which is what gets persisted.
func NowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
