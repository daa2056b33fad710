//go:build production

package gateways

const testModeCompiled = false
