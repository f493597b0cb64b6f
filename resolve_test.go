// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package natlab

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

// TestScenarioSymmetricNAT covers scenario 3: two sends from the same
// internal endpoint to distinct destination ports get distinct external
// ports, and an inbound packet whose source port doesn't match the
// second binding's remembered remote is filtered.
func TestScenarioSymmetricNAT(t *testing.T) {
	c := qt.New(t)
	r, err := NewRouter(easyNATConfig(SymmetricNAT))
	c.Assert(err, qt.IsNil)
	inAddr := r.AssignInternalAddress()

	out1 := r.SendFromInternal(inAddr, 17, addrN(22222), 80, 100)
	c.Assert(out1.Kind, qt.Equals, Translated)
	out2 := r.SendFromInternal(inAddr, 17, addrN(22222), 17, 200)
	c.Assert(out2.Kind, qt.Equals, Translated)

	c.Assert(out2.Src.Port() != out1.Src.Port(), qt.IsTrue)

	// The second binding's remembered remote is (22222, 17); a packet
	// claiming to be from (22222, 80) — the first session's remote —
	// must not match it.
	_, _, ok := r.ReceiveFromExternal(addrN(22222), 80, addrN(11111), out2.Src.Port(), false, 300)
	c.Assert(ok, qt.IsFalse)

	// But the legitimate reply to the second session does match.
	gotAddr, gotPort, ok := r.ReceiveFromExternal(addrN(22222), 17, addrN(11111), out2.Src.Port(), false, 300)
	c.Assert(ok, qt.IsTrue)
	c.Assert(gotAddr, qt.Equals, inAddr)
	c.Assert(gotPort, qt.Equals, uint16(17))
}

// TestScenarioHardNATSuppressesInboundRefresh covers the refresh half of
// scenario 4: with INBOUND_REFRESH_BEHAVIOR_FALSE set, an inbound packet
// just before the original deadline matches but does not defer expiry,
// so a second inbound just after that deadline sees the binding as
// expired, measured from the *original* last-used time.
func TestScenarioHardNATSuppressesInboundRefresh(t *testing.T) {
	c := qt.New(t)
	cfg := easyNATConfig(HardNAT)
	r, err := NewRouter(cfg)
	c.Assert(err, qt.IsNil)
	inAddr := r.AssignInternalAddress()

	out := r.SendFromInternal(inAddr, 17, addrN(22222), 80, 1000)
	c.Assert(out.Kind, qt.Equals, Translated)
	extAddr, extPort := out.Src.Addr(), out.Src.Port()

	_, _, ok := r.ReceiveFromExternal(addrN(22222), 80, extAddr, extPort, false, 1000+cfg.MappingTimeout-1)
	c.Assert(ok, qt.IsTrue)

	_, _, ok = r.ReceiveFromExternal(addrN(22222), 80, extAddr, extPort, false, 1000+cfg.MappingTimeout+1)
	c.Assert(ok, qt.IsFalse)
}

// TestScenarioMisbehavingNATDestroysOnFilteredInbound covers scenario 5:
// a wrong-port inbound destroys the binding outright, so a subsequent
// correct-port inbound also misses.
func TestScenarioMisbehavingNATDestroysOnFilteredInbound(t *testing.T) {
	c := qt.New(t)
	r, err := NewRouter(easyNATConfig(MisbehavingNAT))
	c.Assert(err, qt.IsNil)
	inAddr := r.AssignInternalAddress()

	out := r.SendFromInternal(inAddr, 17, addrN(22222), 80, 100)
	c.Assert(out.Kind, qt.Equals, Translated)
	extAddr, extPort := out.Src.Addr(), out.Src.Port()

	_, _, ok := r.ReceiveFromExternal(addrN(22222), 81, extAddr, extPort, false, 200)
	c.Assert(ok, qt.IsFalse)

	_, _, ok = r.ReceiveFromExternal(addrN(22222), 80, extAddr, extPort, false, 300)
	c.Assert(ok, qt.IsFalse)
}

// TestPortUniqueness is P1: outside of PORT_PRESERVATION_OVERLOAD, no two
// live bindings in the same table ever share an external port.
func TestPortUniqueness(t *testing.T) {
	c := qt.New(t)
	r, err := NewRouter(easyNATConfig(SymmetricNAT))
	c.Assert(err, qt.IsNil)
	inAddr := r.AssignInternalAddress()

	seen := map[uint16]bool{}
	for i := 0; i < 20; i++ {
		out := r.SendFromInternal(inAddr, 17, addrN(22222), uint16(1000+i), int64(100+i))
		c.Assert(out.Kind, qt.Equals, Translated)
		c.Assert(seen[out.Src.Port()], qt.IsFalse)
		seen[out.Src.Port()] = true
	}
}

// TestEndpointIndependentMapping is P4: with neither dependence bit set,
// sends to distinct destinations from the same internal endpoint reuse
// the same external tuple.
func TestEndpointIndependentMapping(t *testing.T) {
	c := qt.New(t)
	r, err := NewRouter(easyNATConfig(EasyNAT))
	c.Assert(err, qt.IsNil)
	inAddr := r.AssignInternalAddress()

	out1 := r.SendFromInternal(inAddr, 17, addrN(22222), 80, 100)
	out2 := r.SendFromInternal(inAddr, 17, addrN(33333), 443, 200)
	c.Assert(out1.Src, qt.Equals, out2.Src)

	// The second send must reuse the row the first one created, not add
	// a second live row for the same external port (P1).
	c.Assert(len(r.tables[0].rows), qt.Equals, 1)
}

// TestPortPreservationOnIdle is P6: absent any collision, the external
// port equals the internal source port.
func TestPortPreservationOnIdle(t *testing.T) {
	c := qt.New(t)
	r, err := NewRouter(easyNATConfig(EasyNAT))
	c.Assert(err, qt.IsNil)
	inAddr := r.AssignInternalAddress()

	out := r.SendFromInternal(inAddr, 54321, addrN(22222), 80, 100)
	c.Assert(out.Src.Port(), qt.Equals, uint16(54321))
}

// TestPortParityPreservation is P7: with parity preservation on and port
// preservation off, the randomly assigned port's low bit matches the
// internal source port's low bit.
func TestPortParityPreservation(t *testing.T) {
	c := qt.New(t)
	r, err := NewRouter(easyNATConfig(FullConeNAT))
	c.Assert(err, qt.IsNil)
	inAddr := r.AssignInternalAddress()

	for i, srcPort := range []uint16{17, 18, 54321, 54322} {
		out := r.SendFromInternal(inAddr, srcPort, addrN(22222), uint16(100+i), int64(100+i))
		c.Assert(out.Src.Port()%2, qt.Equals, srcPort%2)
	}
}
