// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package mono provides a monotonic clock, for use by code that wants to
// measure elapsed time without being disrupted by wall-clock adjustments
// and without paying for a time.Time's timezone and monotonic-reading
// bookkeeping on every call.
package mono

import (
	"encoding/json"
	"time"
)

// processStart anchors Time values: a Time is nanoseconds elapsed since
// this package was initialized, measured via time.Time's own monotonic
// reading so NTP adjustments don't affect it.
var processStart = time.Now()

// Time is a point in monotonic time. The zero Time is not "the start of
// the process"; it is the sentinel for "unset", matching how a zero
// time.Time unmarshals.
type Time int64

// Now returns the current monotonic time.
func Now() Time {
	return Time(time.Since(processStart))
}

// Since returns the elapsed duration since t.
func Since(t Time) time.Duration {
	return time.Duration(Now() - t)
}

// IsZero reports whether t is the unset sentinel value.
func (t Time) IsZero() bool {
	return t == 0
}

// String renders t as a wall-clock timestamp, for logging.
func (t Time) String() string {
	if t.IsZero() {
		return time.Time{}.Format(time.RFC3339Nano)
	}
	return processStart.Add(time.Duration(t)).Format(time.RFC3339Nano)
}

// MarshalJSON encodes t the same way a time.Time derived from it would.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return json.Marshal(time.Time{})
	}
	return json.Marshal(processStart.Add(time.Duration(t)))
}

// UnmarshalJSON decodes a time.Time-shaped value into t, mapping the zero
// wall-clock time back to the zero Time.
func (t *Time) UnmarshalJSON(b []byte) error {
	var wall time.Time
	if err := json.Unmarshal(b, &wall); err != nil {
		return err
	}
	if wall.IsZero() {
		*t = 0
		return nil
	}
	*t = Time(wall.Sub(processStart))
	return nil
}
