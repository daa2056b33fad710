//go:build !production

package gateways

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestModeEnabledInDevelopmentBuilds(t *testing.T) {
	assert.True(t, TestModeEnabled(true))
	assert.False(t, TestModeEnabled(false))
}
