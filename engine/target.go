package engine

import (
	"runtime"
	"strings"

	"github.com/wippyai/wasm-bench/errors"
)

var archNames = map[string]string{
	"amd64":   "x86_64",
	"arm64":   "aarch64",
	"riscv64": "riscv64gc",
	"s390x":   "s390x",
}

var archAliases = map[string]string{
	"x86_64":    "x86_64",
	"amd64":     "x86_64",
	"aarch64":   "aarch64",
	"arm64":     "aarch64",
	"riscv64":   "riscv64gc",
	"riscv64gc": "riscv64gc",
	"s390x":     "s390x",
}

var osTriples = map[string]string{
	"linux":   "unknown-linux-gnu",
	"darwin":  "apple-darwin",
	"windows": "pc-windows-msvc",
	"freebsd": "unknown-freebsd",
}

// HostTriple returns the target triple of the running process.
func HostTriple() string {
	arch, ok := archNames[runtime.GOARCH]
	if !ok {
		arch = runtime.GOARCH
	}
	os, ok := osTriples[runtime.GOOS]
	if !ok {
		os = "unknown-" + runtime.GOOS
	}
	return arch + "-" + os
}

// checkTarget accepts an arch-vendor-os[-env] triple whose architecture and
// OS match the host. Vendor and environment components are not compared.
func checkTarget(triple string) error {
	parts := strings.Split(triple, "-")
	if len(parts) < 2 {
		return errors.Config("malformed target triple %q", triple)
	}
	arch, ok := archAliases[parts[0]]
	if !ok || arch != archAliases[hostArch()] {
		return errors.UnsupportedTarget(triple, HostTriple())
	}
	sys := parts[1]
	if len(parts) > 2 {
		sys = parts[2]
	}
	if sys != runtime.GOOS {
		return errors.UnsupportedTarget(triple, HostTriple())
	}
	return nil
}

// canonicalTriple rewrites the architecture alias of triple to its
// canonical name, so amd64-unknown-linux-gnu becomes x86_64-unknown-linux-gnu.
func canonicalTriple(triple string) string {
	arch, rest, found := strings.Cut(triple, "-")
	canon, ok := archAliases[arch]
	if !ok || !found {
		return triple
	}
	return canon + "-" + rest
}

func hostArch() string {
	if a, ok := archNames[runtime.GOARCH]; ok {
		return a
	}
	return runtime.GOARCH
}
