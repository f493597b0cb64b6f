// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package natlab

import "net/netip"

// resolveBinding implements binding resolution: find an existing binding
// to reuse, or select an external address and port and create one. It
// returns the chosen external-address index and port, and false if no
// table had room and none could be evicted (which should not happen
// given the configured table-size bound, but is reported rather than
// panicking).
func (r *Router) resolveBinding(srcAddr netip.Addr, srcPort uint16, dstAddr netip.Addr, dstPort uint16, now int64) (extIdx int, extPort uint16, ok bool) {
	preferredIdx, preferredPort, havePreferred := r.stepA(srcAddr, srcPort, dstAddr, dstPort, now)
	if exactIdx, exactPort, exact := r.lastExactReuse(); exact {
		return exactIdx, exactPort, true
	}

	if havePreferred {
		// stepA already updated the matching row's remote endpoint and
		// timestamp in place; Step D says to use it verbatim, which means
		// skipping Step E's insert, not adding a second row for it.
		return preferredIdx, preferredPort, true
	}

	pref, pairingApplies := r.pairedIndex(srcAddr)
	idx, port, ok := r.selectExternal(srcPort, pref, pairingApplies)
	if !ok {
		return 0, 0, false
	}
	r.insertBinding(idx, port, srcAddr, srcPort, dstAddr, dstPort, now)
	return idx, port, true
}

// exactReuse carries the result of an exact-match row found during
// Step A back out through resolveBinding without a second parameter
// list; stepA both mutates the matching row in place (timestamp
// refresh) and reports it here so resolveBinding can short-circuit
// Steps B-E.
type exactReuse struct {
	idx   int
	port  uint16
	found bool
}

// stepA walks every external table in index order looking for a row to
// reuse. It evicts expired rows as it goes and, if a table reaches its
// capacity bound, evicts that table's oldest live row. It returns the
// most recently observed preferred-reuse candidate, if any; if an exact
// match is found, the row is refreshed in place and the match is stashed
// for resolveBinding via r.exact.
func (r *Router) stepA(srcAddr netip.Addr, srcPort uint16, dstAddr netip.Addr, dstPort uint16, now int64) (prefIdx int, prefPort uint16, havePreferred bool) {
	r.exact = exactReuse{}

	addressDependent := r.cfg.Flags.Has(AddressDependentMapping)
	portDependent := r.cfg.Flags.Has(PortDependentMapping)

	for ti := range r.tables {
		t := &r.tables[ti]

		oldestIdx := -1
		var oldestTime int64

		i := 0
		for i < len(t.rows) {
			b := &t.rows[i]
			if b.expired(now, r.cfg.MappingTimeout) {
				t.removeAt(i)
				continue
			}
			if oldestIdx == -1 || b.lastUsed < oldestTime {
				oldestIdx = i
				oldestTime = b.lastUsed
			}

			if b.internalAddr == srcAddr && b.internalPort == srcPort {
				if b.remoteAddr == dstAddr && b.remotePort == dstPort {
					if !r.cfg.Flags.Has(OutboundRefreshBehaviorFalse) {
						b.lastUsed = now
					}
					r.exact = exactReuse{idx: ti, port: b.externalPort, found: true}
					return prefIdx, prefPort, havePreferred
				}
				addrOK := !addressDependent || b.remoteAddr == dstAddr
				portOK := !portDependent || b.remotePort == dstPort
				if addrOK && portOK {
					b.remoteAddr = dstAddr
					b.remotePort = dstPort
					if !r.cfg.Flags.Has(OutboundRefreshBehaviorFalse) {
						b.lastUsed = now
					}
					prefIdx, prefPort, havePreferred = ti, b.externalPort, true
				}
			}
			i++
		}

		if len(t.rows) >= r.maxTableSize && oldestIdx != -1 {
			t.removeAt(oldestIdx)
		}
	}
	return prefIdx, prefPort, havePreferred
}

func (r *Router) lastExactReuse() (int, uint16, bool) {
	return r.exact.idx, r.exact.port, r.exact.found
}

// pairedIndex reports the external-address index srcAddr is paired with,
// and whether that pairing is mandatory: it is when srcAddr is registered
// and IPPoolingBehaviorArbitrary is unset, and otherwise pairedIndex
// returns (0, false).
func (r *Router) pairedIndex(srcAddr netip.Addr) (idx int, mandatory bool) {
	idx, ok := r.pairing[srcAddr]
	if !ok {
		return 0, false
	}
	if r.cfg.Flags.Has(IPPoolingBehaviorArbitrary) {
		return 0, false
	}
	return idx, true
}

// selectExternal implements Steps B and C: choosing the external address
// and port for a newly created binding.
func (r *Router) selectExternal(srcPort uint16, pref int, pairingApplies bool) (idx int, port uint16, ok bool) {
	if !r.cfg.Flags.Has(NoPortPreservation) {
		perm := r.addressPermutation(pref, pairingApplies)
		for _, candidate := range perm {
			if !r.tablePortInUse(candidate, srcPort) {
				return candidate, srcPort, true
			}
		}
		switch {
		case r.cfg.Flags.Has(PortPreservationOverload):
			return perm[0], srcPort, true
		case r.cfg.Flags.Has(PortPreservationOverride):
			r.evictPort(perm[0], srcPort)
			return perm[0], srcPort, true
		}
	}
	return r.randPort(srcPort, pref, pairingApplies)
}

// addressPermutation returns the set of external-address indices
// eligible for a new binding, in the order they should be tried. When
// pairing is mandatory it is the single-element sequence [pref];
// otherwise it's a uniformly random permutation of every index, built
// with a Fisher-Yates shuffle worked from the end of the slice.
func (r *Router) addressPermutation(pref int, pairingApplies bool) []int {
	if pairingApplies {
		return []int{pref}
	}
	n := len(r.cfg.ExternalAddresses)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := r.rand.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// tablePortInUse reports whether table idx has a live row advertising
// port as its external_port.
func (r *Router) tablePortInUse(idx int, port uint16) bool {
	for i := range r.tables[idx].rows {
		if r.tables[idx].rows[i].externalPort == port {
			return true
		}
	}
	return false
}

// evictPort removes every row in table idx advertising port as its
// external_port, used by PORT_PRESERVATION_OVERRIDE to force preservation
// by displacing whoever currently holds the port.
func (r *Router) evictPort(idx int, port uint16) {
	t := &r.tables[idx]
	i := 0
	for i < len(t.rows) {
		if t.rows[i].externalPort == port {
			t.removeAt(i)
			continue
		}
		i++
	}
}

// randPort draws a fresh, currently-unused (index, port) pair: a
// pairing-respecting external-address index and a uniformly random port
// from the configured dynamic range, with port parity enforced unless
// NoPortParity is set. The per-table size bound guarantees this
// terminates.
func (r *Router) randPort(srcPort uint16, pref int, pairingApplies bool) (idx int, port uint16, ok bool) {
	lo := int(r.cfg.ExternalDynamicPortRange.From)
	n := r.cfg.ExternalDynamicPortRange.size()
	for {
		if pairingApplies {
			idx = pref
		} else {
			idx = r.rand.Intn(len(r.cfg.ExternalAddresses))
		}
		p := lo + int(r.rand.Uint64()%uint64(n))
		if !r.cfg.Flags.Has(NoPortParity) {
			p = (p &^ 1) | (int(srcPort) & 1)
		}
		port = uint16(p)
		if !r.tablePortInUse(idx, port) {
			return idx, port, true
		}
	}
}

// insertBinding appends a new row to table idx, Step E of binding
// resolution.
func (r *Router) insertBinding(idx int, port uint16, srcAddr netip.Addr, srcPort uint16, dstAddr netip.Addr, dstPort uint16, now int64) {
	r.tables[idx].rows = append(r.tables[idx].rows, binding{
		internalAddr: srcAddr,
		internalPort: srcPort,
		externalPort: port,
		remoteAddr:   dstAddr,
		remotePort:   dstPort,
		lastUsed:     now,
	})
}

// receiveOnTable implements receive_from_external's scan of a single
// external address's table, once the destination address has already
// been resolved to a table index.
func (r *Router) receiveOnTable(idx int, srcAddr netip.Addr, srcPort, dstPort uint16, bypassFilter bool, now int64) (netip.Addr, uint16, bool) {
	t := &r.tables[idx]
	addressFiltered := r.cfg.Flags.Has(AddressDependentFiltering)
	portFiltered := r.cfg.Flags.Has(PortDependentFiltering)
	destroyOnFilter := r.cfg.Flags.Has(FilteredInboundDestroysMapping)

	destroyPort := false
	var matchedAddr netip.Addr
	var matchedPort uint16
	matched := false

	i := 0
	for i < len(t.rows) {
		b := &t.rows[i]
		if b.expired(now, r.cfg.MappingTimeout) {
			t.removeAt(i)
			continue
		}
		if b.externalPort == dstPort {
			addrOK := !addressFiltered || b.remoteAddr == srcAddr
			portOK := !portFiltered || b.remotePort == srcPort
			if bypassFilter || (addrOK && portOK) {
				if !r.cfg.Flags.Has(InboundRefreshBehaviorFalse) {
					b.lastUsed = now
				}
				matchedAddr, matchedPort = b.internalAddr, b.internalPort
				matched = true
				break
			}
			if destroyOnFilter {
				destroyPort = true
			}
		}
		i++
	}

	if matched {
		return matchedAddr, matchedPort, true
	}
	if destroyPort {
		r.evictPort(idx, dstPort)
	}
	return netip.Addr{}, 0, false
}
