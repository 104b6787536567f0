package utils

import "time"

// Timestamp is the probe response clock: UTC, second precision.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
