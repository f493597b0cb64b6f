// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package natlab is an in-memory, deterministic emulator of a NAT and/or
// stateful packet-filtering firewall.
//
// It holds no sockets and does no I/O: callers feed it logical packet
// headers (addresses, ports, a caller-supplied monotonic timestamp) one at
// a time, and it decides whether each packet is dropped, forwarded to the
// "external" network with rewritten source fields, or hairpinned back to
// the "internal" network with both source and destination fields
// rewritten. It exists to let networking code under test — hole punching,
// rendezvous, firewall traversal — exercise the RFC 4787 behavioral matrix
// without a real NAT anywhere nearby.
//
// A Router's behavior is governed entirely by its Flags: fourteen
// independently toggleable bits selecting address pooling, mapping and
// filtering dependence, hairpinning, refresh, and port preservation
// behaviors. See the Flags documentation and the predefined combinations
// (EasyNAT, FullConeNAT, SymmetricNAT, HardNAT, MisbehavingNAT,
// StatefulFirewall) for common real-world NAT personalities.
package natlab
