// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package natlab

import (
	"net/netip"
	"testing"

	qt "github.com/frankban/quicktest"
)

func validConfig() Config {
	return easyNATConfig(EasyNAT)
}

func TestConfigValidateOK(t *testing.T) {
	c := qt.New(t)
	c.Assert(validConfig().validate(), qt.IsNil)
}

func TestConfigValidateRejectsEmptyExternalAddresses(t *testing.T) {
	c := qt.New(t)
	cfg := validConfig()
	cfg.ExternalAddresses = nil
	c.Assert(cfg.validate(), qt.IsNotNil)
}

func TestConfigValidateRejectsTooManyExternalAddresses(t *testing.T) {
	c := qt.New(t)
	cfg := validConfig()
	addrs := make([]netip.Addr, MaxExternalAddresses+1)
	for i := range addrs {
		addrs[i] = addrN(uint32(i + 1))
	}
	cfg.ExternalAddresses = addrs
	c.Assert(cfg.validate(), qt.IsNotNil)
}

func TestConfigValidateRejectsEmptyPortRange(t *testing.T) {
	c := qt.New(t)
	cfg := validConfig()
	cfg.ExternalDynamicPortRange = PortRange{From: 500, To: 100}
	c.Assert(cfg.validate(), qt.IsNotNil)
}

func TestConfigValidateRejectsInvertedAddressRange(t *testing.T) {
	c := qt.New(t)
	cfg := validConfig()
	cfg.InternalAddressRange = AddrRange{From: addrN(99999), To: addrN(90000)}
	c.Assert(cfg.validate(), qt.IsNotNil)
}

func TestNewRouterRejectsInvalidConfig(t *testing.T) {
	c := qt.New(t)
	cfg := validConfig()
	cfg.ExternalAddresses = nil
	_, err := NewRouter(cfg)
	c.Assert(err, qt.IsNotNil)
}
