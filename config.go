// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package natlab

import (
	"fmt"
	"net/netip"

	"tailscale.dev/natlab/types/logger"
)

// MaxExternalAddresses is the largest number of external addresses a
// Router may be configured with.
const MaxExternalAddresses = 64

// Config is the immutable configuration a Router is built from. All
// fields except Logf and Source are required.
type Config struct {
	// ExternalAddresses are the NAT's public addresses, 1 to
	// MaxExternalAddresses of them. Their slice index is the canonical
	// handle used throughout this package (for example, IP pooling pairs
	// an internal host with an index into this slice, not an address
	// value).
	ExternalAddresses []netip.Addr

	// InternalAddressRange is the inclusive range of addresses
	// AssignInternalAddress draws from.
	InternalAddressRange AddrRange

	// ExternalDynamicPortRange is the inclusive range of ports the
	// router may freely assign when it can't, or chooses not to,
	// preserve the internal source port.
	ExternalDynamicPortRange PortRange

	// MappingTimeout is how long, in the caller's own time units, a
	// binding may go unused before it is considered expired.
	MappingTimeout int64

	// Flags selects the emulated device's behavior. See the Flags type.
	Flags Flags

	// Seed initializes the router's default PRNG. Ignored if Source is
	// set.
	Seed uint64

	// Source, if non-nil, overrides the PRNG the router draws from
	// instead of the default xorshift64* generator seeded from Seed.
	// Tests that need an exactly predictable draw sequence should set
	// this to NewStepSource(0, 1) or similar.
	Source Source

	// Logf, if non-nil, receives one line per internal address assigned
	// and per intra-LAN, dropped or hairpinned outbound packet. Translated
	// packets, inbound packets and binding creation, expiry, eviction and
	// destruction are not logged. It has no effect on behavior.
	Logf logger.Logf
}

func (c Config) validate() error {
	if len(c.ExternalAddresses) == 0 {
		return fmt.Errorf("ExternalAddresses must not be empty")
	}
	if len(c.ExternalAddresses) > MaxExternalAddresses {
		return fmt.Errorf("ExternalAddresses has %d entries, max is %d", len(c.ExternalAddresses), MaxExternalAddresses)
	}
	for i, a := range c.ExternalAddresses {
		if !a.Is4() {
			return fmt.Errorf("ExternalAddresses[%d] = %v is not an IPv4 address", i, a)
		}
	}
	if !c.InternalAddressRange.valid() {
		return fmt.Errorf("InternalAddressRange %v is empty or not IPv4", c.InternalAddressRange)
	}
	if !c.ExternalDynamicPortRange.valid() {
		return fmt.Errorf("ExternalDynamicPortRange %v is empty", c.ExternalDynamicPortRange)
	}
	if c.MappingTimeout < 0 {
		return fmt.Errorf("MappingTimeout must not be negative")
	}
	return nil
}
