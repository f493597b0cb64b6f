// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package natlab

import (
	"fmt"
	"math/rand"
	"net/netip"

	"tailscale.dev/natlab/types/logger"
)

// Router is an emulated NAT/firewall device. It holds one binding table
// per configured external address and a registry of internal hosts it
// has assigned addresses to. A Router is not safe for concurrent use; all
// entry points must be serialized by the caller.
type Router struct {
	cfg    Config
	logf   logger.Logf
	rand   *rand.Rand
	tables []table // one per cfg.ExternalAddresses entry

	// pairing records, for each internal address this Router has
	// assigned, the external-address index it is paired with under
	// Paired IP pooling. Presence in this map is also the registry's
	// ACL check: an internal address absent from pairing may not send.
	pairing map[netip.Addr]int

	maxTableSize int

	// exact stashes the result of an exact-reuse match found during the
	// most recent stepA call, since stepA's own return values are
	// reserved for the weaker preferred-reuse candidate.
	exact exactReuse
}

// NewRouter validates cfg and constructs a Router from it. It returns an
// error if cfg is malformed; this is the only Router operation that
// reports an error, since the packet-handling methods represent their
// failure modes in their results (an Outcome, or a false match flag).
func NewRouter(cfg Config) (*Router, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("natlab: invalid config: %w", err)
	}
	src := cfg.Source
	if src == nil {
		src = NewXorshiftSource(cfg.Seed)
	}
	logf := cfg.Logf
	if logf == nil {
		logf = logger.Discard
	}
	r := &Router{
		cfg:          cfg,
		logf:         logf,
		rand:         rand.New(src),
		tables:       make([]table, len(cfg.ExternalAddresses)),
		pairing:      make(map[netip.Addr]int),
		maxTableSize: cfg.ExternalDynamicPortRange.size() * 2 / 5,
	}
	return r, nil
}

// externalIndex returns the index of a within cfg.ExternalAddresses, and
// whether a is one of them.
func (r *Router) externalIndex(a netip.Addr) (int, bool) {
	for i, e := range r.cfg.ExternalAddresses {
		if e == a {
			return i, true
		}
	}
	return 0, false
}

// AssignInternalAddress draws a fresh, previously unused internal address
// from the configured internal address range, pairs it with a uniformly
// random external-address index, and registers it. It panics if the
// internal address range is exhausted, which a well-formed simulation
// should never hit.
func (r *Router) AssignInternalAddress() netip.Addr {
	base := addrToUint32(r.cfg.InternalAddressRange.From)
	n := r.cfg.InternalAddressRange.size()
	if uint32(len(r.pairing)) >= n {
		panic("natlab: internal address range exhausted")
	}
	var addr netip.Addr
	for {
		addr = uint32ToAddr(base + uint32(r.rand.Int63n(int64(n))))
		if _, ok := r.pairing[addr]; !ok {
			break
		}
	}
	extIdx := r.rand.Intn(len(r.cfg.ExternalAddresses))
	r.pairing[addr] = extIdx
	r.logf("natlab: assigned internal address %v paired with external[%d]=%v", addr, extIdx, r.cfg.ExternalAddresses[extIdx])
	return addr
}

// SendFromInternal routes one outbound packet originating inside the
// network. now is the caller's monotonic clock value; the router never
// reads a clock of its own.
func (r *Router) SendFromInternal(srcAddr netip.Addr, srcPort uint16, dstAddr netip.Addr, dstPort uint16, now int64) Outcome {
	src := netip.AddrPortFrom(srcAddr, srcPort)
	dst := netip.AddrPortFrom(dstAddr, dstPort)

	if r.cfg.InternalAddressRange.Contains(dstAddr) {
		r.logf("natlab: %v -> %v is intra-LAN, passing through", src, dst)
		return Outcome{Kind: Hairpinned, Src: src, Dst: dst}
	}

	if _, isExternal := r.externalIndex(dstAddr); isExternal && r.cfg.Flags.Has(NoHairpinning) {
		r.logf("natlab: %v -> %v dropped, NoHairpinning and dst is one of our own addresses", src, dst)
		return dropped()
	}

	if _, registered := r.pairing[srcAddr]; !registered {
		r.logf("natlab: %v -> %v dropped, %v is not a registered internal address", src, dst, srcAddr)
		return dropped()
	}

	extIdx, extPort, ok := r.resolveBinding(srcAddr, srcPort, dstAddr, dstPort, now)
	if !ok {
		return noCapacity()
	}
	extAddr := r.cfg.ExternalAddresses[extIdx]
	return r.hairpinRemap(srcAddr, srcPort, extAddr, extPort, dstAddr, dstPort, now)
}

// ReceiveFromExternal routes one inbound packet arriving from the
// Internet. bypassFilter skips the address/port dependent filtering
// checks; it is set internally by hairpin remap and should otherwise
// always be false.
func (r *Router) ReceiveFromExternal(srcAddr netip.Addr, srcPort uint16, dstAddr netip.Addr, dstPort uint16, bypassFilter bool, now int64) (netip.Addr, uint16, bool) {
	extIdx, ok := r.externalIndex(dstAddr)
	if !ok {
		return netip.Addr{}, 0, false
	}
	return r.receiveOnTable(extIdx, srcAddr, srcPort, dstPort, bypassFilter, now)
}
