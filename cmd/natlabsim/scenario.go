// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"

	"github.com/tailscale/hujson"
	"tailscale.dev/natlab"
)

// scenario is the on-disk (hujson, so comments and trailing commas are
// allowed) description of a router to build and a sequence of packets to
// replay against it.
type scenario struct {
	ExternalAddresses        []string `json:"externalAddresses"`
	InternalAddressRangeFrom string   `json:"internalAddressRangeFrom"`
	InternalAddressRangeTo   string   `json:"internalAddressRangeTo"`
	ExternalPortRangeFrom    uint16   `json:"externalPortRangeFrom"`
	ExternalPortRangeTo      uint16   `json:"externalPortRangeTo"`
	MappingTimeout           int64    `json:"mappingTimeout"`
	Seed                     uint64   `json:"seed"`
	Flags                    []string `json:"flags"`
	FirewallType             string   `json:"firewallType,omitempty"`
	Steps                    []step   `json:"steps"`
}

// firewallTypes maps the scenario file's firewallType string to the
// corresponding natlab.FirewallType, mirroring natlab.ParseFlags.
var firewallTypes = map[string]natlab.FirewallType{
	"AddressAndPortDependentFirewall": natlab.AddressAndPortDependentFirewall,
	"AddressDependentFirewall":        natlab.AddressDependentFirewall,
	"EndpointIndependentFirewall":     natlab.EndpointIndependentFirewall,
}

// step is one replayed packet. Direction is either "send" (internal to
// external) or "receive" (external to internal).
type step struct {
	At           int64  `json:"at"`
	Direction    string `json:"direction"`
	InternalAddr string `json:"internalAddr,omitempty"`
	SrcAddr      string `json:"srcAddr"`
	SrcPort      uint16 `json:"srcPort"`
	DstAddr      string `json:"dstAddr"`
	DstPort      uint16 `json:"dstPort"`
	BypassFilter bool   `json:"bypassFilter,omitempty"`
}

func loadScenario(path string) (*scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	std, err := hujson.Standardize(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing hujson: %w", err)
	}
	var s scenario
	if err := json.Unmarshal(std, &s); err != nil {
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	return &s, nil
}

func (s *scenario) buildConfig() (natlab.Config, error) {
	var cfg natlab.Config

	for _, a := range s.ExternalAddresses {
		addr, err := netip.ParseAddr(a)
		if err != nil {
			return cfg, fmt.Errorf("externalAddresses: %w", err)
		}
		cfg.ExternalAddresses = append(cfg.ExternalAddresses, addr)
	}

	from, err := netip.ParseAddr(s.InternalAddressRangeFrom)
	if err != nil {
		return cfg, fmt.Errorf("internalAddressRangeFrom: %w", err)
	}
	to, err := netip.ParseAddr(s.InternalAddressRangeTo)
	if err != nil {
		return cfg, fmt.Errorf("internalAddressRangeTo: %w", err)
	}
	cfg.InternalAddressRange = natlab.AddrRange{From: from, To: to}
	cfg.ExternalDynamicPortRange = natlab.PortRange{From: s.ExternalPortRangeFrom, To: s.ExternalPortRangeTo}
	cfg.MappingTimeout = s.MappingTimeout
	cfg.Seed = s.Seed

	flags, err := natlab.ParseFlags(s.Flags)
	if err != nil {
		return cfg, err
	}
	if s.FirewallType != "" {
		ft, ok := firewallTypes[s.FirewallType]
		if !ok {
			return cfg, fmt.Errorf("firewallType: unknown value %q", s.FirewallType)
		}
		flags |= ft.Filtering()
	}
	cfg.Flags = flags
	return cfg, nil
}
