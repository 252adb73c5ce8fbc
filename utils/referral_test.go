package utils_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redsponsor/redsponsor_backend/utils"
)

func TestGenerateReferralCode_Format(t *testing.T) {
	code, err := utils.GenerateReferralCode(utils.SponsorType)
	require.NoError(t, err)

	parts := strings.SplitN(code, "-", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, "SPN", parts[0])
	assert.Len(t, parts[1], 6)
	for _, r := range parts[1] {
		ok := (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		assert.True(t, ok, "unexpected character %q in %s", r, code)
	}
}

func TestGenerateMemberReferralCode_Prefix(t *testing.T) {
	code, err := utils.GenerateMemberReferralCode()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(code, "MBR-"), code)
}

func TestGenerateReferralCode_NoImmediateCollisions(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := utils.GenerateMemberReferralCode()
		require.NoError(t, err)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}
