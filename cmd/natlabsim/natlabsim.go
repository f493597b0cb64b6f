// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Command natlabsim replays a scripted packet sequence through a
// natlab.Router built from a hujson scenario file and prints the
// resulting trace. It is a demonstration and debugging harness for the
// natlab library, not part of the library itself.
package main

import (
	"flag"
	"fmt"
	"net/netip"
	"os"

	"github.com/peterbourgon/ff/v3"
	"go.uber.org/zap"
	"tailscale.dev/natlab"
	"tailscale.dev/natlab/tstime/mono"
)

func main() {
	fs := flag.NewFlagSet("natlabsim", flag.ExitOnError)
	var (
		scenarioPath = fs.String("scenario", "", "path to a hujson scenario file")
		verbose      = fs.Bool("verbose", false, "enable debug-level logging")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("NATLABSIM")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "natlabsim: -scenario is required")
		os.Exit(2)
	}

	zcfg := zap.NewDevelopmentConfig()
	if !*verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zlog, err := zcfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer zlog.Sync()

	start := mono.Now()
	zlog.Info("loading scenario", zap.String("path", *scenarioPath))

	sc, err := loadScenario(*scenarioPath)
	if err != nil {
		zlog.Fatal("load scenario", zap.Error(err))
	}

	cfg, err := sc.buildConfig()
	if err != nil {
		zlog.Fatal("build config", zap.Error(err))
	}
	cfg.Logf = func(format string, args ...any) {
		zlog.Debug(fmt.Sprintf(format, args...))
	}

	router, err := natlab.NewRouter(cfg)
	if err != nil {
		zlog.Fatal("new router", zap.Error(err))
	}
	zlog.Info("router built", zap.Stringer("flags", cfg.Flags), zap.Int("externalAddresses", len(cfg.ExternalAddresses)))

	internalAddrs := map[string]netip.Addr{}
	summary := struct {
		translated, hairpinned, dropped, noCapacity, inboundMatched, inboundMissed int
	}{}

	for i, st := range sc.Steps {
		switch st.Direction {
		case "send":
			var srcAddr netip.Addr
			if st.InternalAddr != "" {
				addr, ok := internalAddrs[st.InternalAddr]
				if !ok {
					addr = router.AssignInternalAddress()
					internalAddrs[st.InternalAddr] = addr
					zlog.Info("assigned internal address", zap.String("name", st.InternalAddr), zap.Stringer("addr", addr))
				}
				srcAddr = addr
			} else {
				addr, err := netip.ParseAddr(st.SrcAddr)
				if err != nil {
					zlog.Fatal("step src addr", zap.Int("step", i), zap.Error(err))
				}
				srcAddr = addr
			}
			dstAddr, err := netip.ParseAddr(st.DstAddr)
			if err != nil {
				zlog.Fatal("step dst addr", zap.Int("step", i), zap.Error(err))
			}
			out := router.SendFromInternal(srcAddr, st.SrcPort, dstAddr, st.DstPort, st.At)
			switch out.Kind {
			case natlab.Translated:
				summary.translated++
			case natlab.Hairpinned:
				summary.hairpinned++
			case natlab.Dropped:
				summary.dropped++
			case natlab.NoCapacity:
				summary.noCapacity++
			}
			zlog.Info("send", zap.Int("step", i), zap.Int64("at", st.At), zap.Stringer("kind", out.Kind), zap.Stringer("src", out.Src), zap.Stringer("dst", out.Dst))

		case "receive":
			srcAddr, err := netip.ParseAddr(st.SrcAddr)
			if err != nil {
				zlog.Fatal("step src addr", zap.Int("step", i), zap.Error(err))
			}
			dstAddr, err := netip.ParseAddr(st.DstAddr)
			if err != nil {
				zlog.Fatal("step dst addr", zap.Int("step", i), zap.Error(err))
			}
			addr, port, ok := router.ReceiveFromExternal(srcAddr, st.SrcPort, dstAddr, st.DstPort, st.BypassFilter, st.At)
			if ok {
				summary.inboundMatched++
			} else {
				summary.inboundMissed++
			}
			zlog.Info("receive", zap.Int("step", i), zap.Int64("at", st.At), zap.Bool("matched", ok), zap.Stringer("internalAddr", addr), zap.Uint16("internalPort", port))

		default:
			zlog.Fatal("unknown step direction", zap.Int("step", i), zap.String("direction", st.Direction))
		}
	}

	zlog.Info("replay complete",
		zap.Duration("elapsed", mono.Since(start)),
		zap.Int("translated", summary.translated),
		zap.Int("hairpinned", summary.hairpinned),
		zap.Int("dropped", summary.dropped),
		zap.Int("noCapacity", summary.noCapacity),
		zap.Int("inboundMatched", summary.inboundMatched),
		zap.Int("inboundMissed", summary.inboundMissed),
	)
}
