package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveJobIDDeterministic(t *testing.T) {
	a := DeriveJobID("primary", "push-42")
	b := DeriveJobID("primary", "push-42")
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "job_"))
	assert.Len(t, a, len("job_")+32)
}

func TestDeriveJobIDDistinguishesInputs(t *testing.T) {
	base := DeriveJobID("primary", "push-42")
	assert.NotEqual(t, base, DeriveJobID("replica-2", "push-42"))
	assert.NotEqual(t, base, DeriveJobID("primary", "push-43"))
	// the separator keeps (ab, c) and (a, bc) apart
	assert.NotEqual(t, DeriveJobID("ab", "c"), DeriveJobID("a", "bc"))
}

func TestGenerateSecureID(t *testing.T) {
	id, err := GenerateSecureID("req", 16)
	require.NoError(t, err)
	assert.True(t, ValidateIDFormat(id, "req"))

	other, err := GenerateSecureID("req", 16)
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestValidateIDFormat(t *testing.T) {
	assert.True(t, ValidateIDFormat("job_abc123", "job"))
	assert.False(t, ValidateIDFormat("job_", "job"))
	assert.False(t, ValidateIDFormat("jobabc", "job"))
	assert.False(t, ValidateIDFormat("req_abc", "job"))
}
