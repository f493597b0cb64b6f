// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package natlab

import "net/netip"

// Kind classifies what a Router did with a packet.
type Kind int

const (
	// Translated means the outbound packet was forwarded to the Internet
	// with its source rewritten per an existing or newly created binding.
	Translated Kind = iota

	// Hairpinned means the packet stayed on the internal network: either
	// it was addressed directly to another internal host (no translation
	// involved), or it was looped back via one of the router's own
	// external addresses. Either way it never reached the Internet.
	Hairpinned

	// Dropped means the packet was filtered and produced no output.
	Dropped

	// NoCapacity means a new binding was required but every table is
	// full of live entries and none could be evicted.
	NoCapacity
)

func (k Kind) String() string {
	switch k {
	case Translated:
		return "Translated"
	case Hairpinned:
		return "Hairpinned"
	case Dropped:
		return "Dropped"
	case NoCapacity:
		return "NoCapacity"
	default:
		return "Kind(?)"
	}
}

// Outcome reports what a Router did with a single packet handed to
// SendFromInternal. (ReceiveFromExternal reports its result as an
// internal address, port and match flag instead.)
type Outcome struct {
	Kind Kind

	// Src and Dst are the rewritten source and destination of the
	// packet as it would appear leaving the router. Both are the zero
	// value when Kind is Dropped or NoCapacity.
	Src netip.AddrPort
	Dst netip.AddrPort
}

func dropped() Outcome { return Outcome{Kind: Dropped} }

func noCapacity() Outcome { return Outcome{Kind: NoCapacity} }
