package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContains(t *testing.T) {
	list := []string{"Admin", "Support"}
	assert.True(t, Contains("Admin", list))
	assert.False(t, Contains("User", list))
	assert.False(t, Contains("admin", list))
	assert.False(t, Contains("Admin", nil))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Acme Corp", NormalizeName("  Acme   Corp  "))
	assert.Equal(t, "Acme", NormalizeName("Acme"))
	assert.Equal(t, "", NormalizeName("   "))
}
