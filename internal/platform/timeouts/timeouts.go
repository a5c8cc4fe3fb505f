// Package timeouts collects the durations shared by statusfrag commands.
package timeouts

import "time"

// TelemetryShutdown bounds the span flush when a command exits.
const TelemetryShutdown = 5 * time.Second

// Wait caps how long a command round waits for its fragment loads before
// rendering. Loads themselves carry no timeout.
const Wait = 30 * time.Second

// MinRefresh is the smallest accepted refresh interval.
const MinRefresh = time.Second
