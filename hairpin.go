// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package natlab

import "net/netip"

// hairpinRemap is Step 4.3: given the external source a binding
// resolution chose, decide whether the packet is actually destined for
// one of the router's own external addresses (a hairpin) and rewrite
// accordingly, or else hand it to the Internet unchanged from here on.
func (r *Router) hairpinRemap(srcAddr netip.Addr, srcPort uint16, extAddr netip.Addr, extPort uint16, dstAddr netip.Addr, dstPort uint16, now int64) Outcome {
	intDstAddr, intDstPort, hit := r.ReceiveFromExternal(extAddr, extPort, dstAddr, dstPort, true, now)

	if hit {
		srcOut := netip.AddrPortFrom(extAddr, extPort)
		if r.cfg.Flags.Has(InternalAddressAndPortHairpinning) {
			srcOut = netip.AddrPortFrom(srcAddr, srcPort)
		}
		dstOut := netip.AddrPortFrom(intDstAddr, intDstPort)
		r.logf("natlab: hairpin %v -> %v", srcOut, dstOut)
		return Outcome{Kind: Hairpinned, Src: srcOut, Dst: dstOut}
	}

	if _, isExternal := r.externalIndex(dstAddr); isExternal {
		r.logf("natlab: %v:%d -> %v dropped, destination is our own address with no matching binding", extAddr, extPort, dstAddr)
		return dropped()
	}

	return Outcome{
		Kind: Translated,
		Src:  netip.AddrPortFrom(extAddr, extPort),
		Dst:  netip.AddrPortFrom(dstAddr, dstPort),
	}
}
