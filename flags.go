// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package natlab

import (
	"fmt"
	"strings"
)

// Flags is a 32-bit word of independently toggleable NAT/firewall
// behaviors, modeled after the behaviors enumerated in RFC 4787. A Flags
// value of zero describes the most permissive NAT this package can emulate
// (EasyNAT); setting more bits makes the emulated device progressively
// harder to traverse.
//
// The bit positions are part of this package's wire-level contract with
// other implementations of the same emulator and must not be renumbered.
type Flags uint32

const (
	// IPPoolingBehaviorArbitrary gives new bindings an "Arbitrary" IP
	// pooling behavior: any external address may be chosen, ignoring the
	// address an internal host was previously paired with. Unset, pooling
	// is "Paired": a given internal host always lands on the same
	// external address.
	IPPoolingBehaviorArbitrary Flags = 1 << 0

	// AddressDependentMapping requires a new binding whenever a packet's
	// destination address differs from a binding's remembered remote
	// address.
	AddressDependentMapping Flags = 1 << 1

	// PortDependentMapping requires a new binding whenever a packet's
	// destination port differs from a binding's remembered remote port.
	PortDependentMapping Flags = 1 << 2

	// AddressDependentFiltering drops inbound packets whose source
	// address doesn't match a binding's remembered remote address.
	AddressDependentFiltering Flags = 1 << 3

	// PortDependentFiltering drops inbound packets whose source port
	// doesn't match a binding's remembered remote port.
	PortDependentFiltering Flags = 1 << 4

	// NoHairpinning drops internal-to-internal traffic addressed via one
	// of the NAT's own external addresses, instead of looping it back.
	NoHairpinning Flags = 1 << 5

	// InternalAddressAndPortHairpinning makes a hairpinned packet keep
	// the sender's original internal source address and port, instead of
	// the rewritten external ones. Has no effect if NoHairpinning is set.
	InternalAddressAndPortHairpinning Flags = 1 << 6

	// OutboundRefreshBehaviorFalse stops outbound traffic from refreshing
	// a binding's idle timeout.
	OutboundRefreshBehaviorFalse Flags = 1 << 7

	// InboundRefreshBehaviorFalse stops inbound traffic from refreshing a
	// binding's idle timeout.
	InboundRefreshBehaviorFalse Flags = 1 << 8

	// FilteredInboundDestroysMapping tears down every binding sharing an
	// external port as soon as an inbound packet addressed to that port
	// is filtered out.
	FilteredInboundDestroysMapping Flags = 1 << 9

	// NoPortPreservation always assigns a random external port instead of
	// trying to reuse the internal source port.
	NoPortPreservation Flags = 1 << 10

	// NoPortParity stops the low bit (odd/even) of a randomly assigned
	// external port from being forced to match the internal source
	// port's low bit. See RFC 4787 REQ-4.
	NoPortParity Flags = 1 << 11

	// PortPreservationOverride guarantees port preservation by evicting
	// whatever binding currently holds the wanted external port. Has no
	// effect if NoPortPreservation is set.
	PortPreservationOverride Flags = 1 << 12

	// PortPreservationOverload guarantees port preservation by letting
	// more than one binding share the same external port. Has no effect
	// if NoPortPreservation is set. Checked before
	// PortPreservationOverride when both are set.
	PortPreservationOverload Flags = 1 << 13
)

var flagNames = []struct {
	bit  Flags
	name string
}{
	{IPPoolingBehaviorArbitrary, "IPPoolingBehaviorArbitrary"},
	{AddressDependentMapping, "AddressDependentMapping"},
	{PortDependentMapping, "PortDependentMapping"},
	{AddressDependentFiltering, "AddressDependentFiltering"},
	{PortDependentFiltering, "PortDependentFiltering"},
	{NoHairpinning, "NoHairpinning"},
	{InternalAddressAndPortHairpinning, "InternalAddressAndPortHairpinning"},
	{OutboundRefreshBehaviorFalse, "OutboundRefreshBehaviorFalse"},
	{InboundRefreshBehaviorFalse, "InboundRefreshBehaviorFalse"},
	{FilteredInboundDestroysMapping, "FilteredInboundDestroysMapping"},
	{NoPortPreservation, "NoPortPreservation"},
	{NoPortParity, "NoPortParity"},
	{PortPreservationOverride, "PortPreservationOverride"},
	{PortPreservationOverload, "PortPreservationOverload"},
}

// Predefined flag combinations for common NAT and firewall personalities.
// Listed from most to least permissive.
const (
	// EasyNAT performs address translation only; it prefers to preserve
	// source ports and falls back to a random port on collision.
	EasyNAT Flags = 0

	// StatefulFirewall is a NAT that guarantees port preservation by
	// evicting collisions. Paired with an internal address range equal to
	// the external address, this emulates a plain stateful firewall
	// rather than an address translator.
	StatefulFirewall Flags = PortPreservationOverride

	// FullConeNAT never attempts port preservation.
	FullConeNAT Flags = NoPortPreservation

	// SymmetricNAT requires an exact destination match to reuse a
	// binding, both for outbound mapping and inbound filtering, and never
	// preserves ports.
	SymmetricNAT Flags = AddressDependentMapping |
		PortDependentMapping |
		AddressDependentFiltering |
		PortDependentFiltering |
		NoPortPreservation |
		PortPreservationOverride

	// HardNAT is a SymmetricNAT that also pools external addresses
	// arbitrarily, never refreshes on inbound traffic, and ignores port
	// parity.
	HardNAT Flags = SymmetricNAT |
		IPPoolingBehaviorArbitrary |
		InboundRefreshBehaviorFalse |
		NoPortParity

	// MisbehavingNAT is a HardNAT that also hairpins with the sender's
	// original internal identity, never refreshes on outbound traffic,
	// and destroys mappings hit by filtered inbound packets.
	MisbehavingNAT Flags = HardNAT |
		InternalAddressAndPortHairpinning |
		OutboundRefreshBehaviorFalse |
		FilteredInboundDestroysMapping
)

// Has reports whether all bits set in bit are also set in f.
func (f Flags) Has(bit Flags) bool {
	return f&bit == bit
}

// String renders f as a comma-joined list of set flag names, or "EasyNAT"
// if f is zero.
func (f Flags) String() string {
	if f == 0 {
		return "EasyNAT"
	}
	var names []string
	for _, fn := range flagNames {
		if f.Has(fn.bit) {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, ",")
}

// presetNames maps the names of the predefined flag combinations to their
// values, for use by ParseFlag/ParseFlags.
var presetNames = map[string]Flags{
	"EasyNAT":          EasyNAT,
	"StatefulFirewall": StatefulFirewall,
	"FullConeNAT":      FullConeNAT,
	"SymmetricNAT":     SymmetricNAT,
	"HardNAT":          HardNAT,
	"MisbehavingNAT":   MisbehavingNAT,
}

// ParseFlag looks up a single flag or preset combination by name, for
// building a Flags value out of a human-edited scenario description.
func ParseFlag(name string) (Flags, error) {
	if f, ok := presetNames[name]; ok {
		return f, nil
	}
	for _, fn := range flagNames {
		if fn.name == name {
			return fn.bit, nil
		}
	}
	return 0, fmt.Errorf("natlab: unknown flag or preset %q", name)
}

// ParseFlags ORs together the flags and presets named in names.
func ParseFlags(names []string) (Flags, error) {
	var f Flags
	for _, name := range names {
		bit, err := ParseFlag(name)
		if err != nil {
			return 0, err
		}
		f |= bit
	}
	return f, nil
}
