//go:build !production

package gateways

// testModeCompiled reports whether this binary may honour a test-mode flag.
const testModeCompiled = true
