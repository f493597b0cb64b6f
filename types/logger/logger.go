// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package logger defines a simple Logf function type, plus some
// helpers for capturing diagnostic output from libraries that take no
// opinion on logging infrastructure.
package logger

// Logf is the basic Printf-like function type used for injecting
// diagnostic logging into a component without tying it to any particular
// logging package.
type Logf func(format string, args ...any)

// Discard is a Logf that drops everything written to it. It's the default
// for any component whose caller hasn't provided a Logf.
func Discard(string, ...any) {}

// WithPrefix returns a Logf that calls logf with prefix prepended to the
// format string. If logf is nil, WithPrefix returns Discard.
func WithPrefix(logf Logf, prefix string) Logf {
	if logf == nil {
		return Discard
	}
	return func(format string, args ...any) {
		logf(prefix+format, args...)
	}
}

