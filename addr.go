// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package natlab

import (
	"encoding/binary"
	"net/netip"

	"go4.org/netipx"
)

// addrToUint32 returns the big-endian uint32 encoding of an IPv4 address.
// Callers must check a.Is4() first; the range and address-pool arithmetic
// throughout this package only makes sense over a contiguous numeric
// address space, the same way the reference implementation this package
// is modeled on worked directly over u32 addresses.
func addrToUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

// uint32ToAddr is the inverse of addrToUint32.
func uint32ToAddr(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}

// AddrRange is an inclusive, contiguous range of IPv4 addresses.
type AddrRange struct {
	From, To netip.Addr
}

// netipx converts r to the equivalent go4.org/netipx range, which backs
// valid and Contains. go4.org/netipx is the teacher's own choice for IP
// range arithmetic, used elsewhere for prefix/range interconversion; this
// package only needs validity and membership, not its prefix-splitting
// machinery, but there's no reason to hand-roll what it already provides.
func (r AddrRange) netipx() netipx.IPRange {
	return netipx.IPRangeFrom(r.From, r.To)
}

// valid reports whether r is a well-formed, non-empty IPv4 range.
func (r AddrRange) valid() bool {
	return r.From.Is4() && r.To.Is4() && r.netipx().IsValid() && addrToUint32(r.From) <= addrToUint32(r.To)
}

// size returns the number of addresses in r. r must be valid.
func (r AddrRange) size() uint32 {
	return addrToUint32(r.To) - addrToUint32(r.From) + 1
}

// Contains reports whether a falls within r.
func (r AddrRange) Contains(a netip.Addr) bool {
	if !a.Is4() || !r.valid() {
		return false
	}
	return r.netipx().Contains(a)
}

// PortRange is an inclusive range of ports.
type PortRange struct {
	From, To uint16
}

func (r PortRange) valid() bool {
	return r.From <= r.To
}

// size returns the number of ports in r. r must be valid.
func (r PortRange) size() int {
	return int(r.To) - int(r.From) + 1
}
