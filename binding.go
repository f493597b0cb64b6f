// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package natlab

import "net/netip"

// binding is one row of a per-external-address translation table: a
// mapping from an (internal address, internal port) pair to an external
// port, plus the most recently seen remote endpoint and the time the
// binding was last used for liveness and reuse decisions.
//
// A table is a flat slice of bindings rather than a map, because eviction
// needs to find the least-recently-used row by linear scan regardless of
// representation, and a slice lets removal be a cheap swap with the last
// element instead of a map delete.
type binding struct {
	internalAddr netip.Addr
	internalPort uint16

	externalPort uint16

	// remoteAddr and remotePort are the most recent destination this
	// binding's internal host sent to, used to enforce address/port
	// dependent mapping and filtering.
	remoteAddr netip.Addr
	remotePort uint16

	lastUsed int64
}

// expired reports whether b has been idle for at least timeout time units
// as of now.
func (b *binding) expired(now, timeout int64) bool {
	return now-b.lastUsed >= timeout
}

// table is the set of live bindings for a single external address.
type table struct {
	rows []binding
}

// removeAt deletes the row at index i by swapping in the last row and
// truncating, matching the reference implementation's use of
// Vec::swap_remove: eviction doesn't need to preserve row order, and this
// avoids an O(n) shift on every removal.
func (t *table) removeAt(i int) {
	last := len(t.rows) - 1
	t.rows[i] = t.rows[last]
	t.rows = t.rows[:last]
}
