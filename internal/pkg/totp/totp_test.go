package totp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rfcSecret is the ASCII seed "12345678901234567890" from RFC 6238 Appendix B,
// Base32-encoded. The expected codes are the last six digits of the published
// 8-digit SHA1 reference values.
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

var rfcVectors = []struct {
	unix int64
	code string
}{
	{59, "287082"},
	{1111111109, "081804"},
	{1111111111, "050471"},
	{1234567890, "005924"},
	{2000000000, "279037"},
	{20000000000, "353130"},
}

func TestCodeAt_RFC6238Vectors(t *testing.T) {
	for _, v := range rfcVectors {
		code, err := CodeAt(rfcSecret, time.Unix(v.unix, 0))
		require.NoError(t, err)
		assert.Equal(t, v.code, code, "t=%d", v.unix)
	}
}

func TestValidate_AcceptsCurrentStep(t *testing.T) {
	at := time.Unix(1111111109, 0)
	ok, err := Validate(rfcSecret, "081804", at, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidate_AcceptsAdjacentSteps(t *testing.T) {
	// 1111111109 and 1111111111 land in adjacent 30s steps; with skew=1
	// either code is accepted at the other's time.
	ok, err := Validate(rfcSecret, "050471", time.Unix(1111111109, 0), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Validate(rfcSecret, "081804", time.Unix(1111111111, 0), 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidate_RejectsOutsideSkewWindow(t *testing.T) {
	// The code for t=59 is far outside the ±1 window around t=1234567890.
	ok, err := Validate(rfcSecret, "287082", time.Unix(1234567890, 0), 1)
	require.NoError(t, err)
	assert.False(t, ok)

	// With skew=0 even the adjacent step's code is rejected.
	ok, err = Validate(rfcSecret, "050471", time.Unix(1111111109, 0), 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidate_RejectsMalformedCodes(t *testing.T) {
	at := time.Unix(59, 0)
	for _, code := range []string{"", "28708", "2870822", "28708a", " 287082x"} {
		ok, err := Validate(rfcSecret, code, at, 1)
		require.NoError(t, err)
		assert.False(t, ok, "code %q", code)
	}
}

func TestValidate_InvalidSecret(t *testing.T) {
	_, err := Validate("not a secret!", "123456", time.Now(), 1)
	assert.Error(t, err)
}

func TestGenerateSecret_FormatAndUniqueness(t *testing.T) {
	a, err := GenerateSecret()
	require.NoError(t, err)
	b, err := GenerateSecret()
	require.NoError(t, err)

	// 160 bits -> 32 Base32 characters, no padding.
	assert.Len(t, a, 32)
	assert.Regexp(t, `^[A-Z2-7]+$`, a)
	assert.NotEqual(t, a, b)
}

func TestProvisioningURI(t *testing.T) {
	uri := ProvisioningURI("JBSWY3DPEHPK3PXP", "user@example.com", "Acme App")
	assert.Contains(t, uri, "otpauth://totp/Acme%20App:user@example.com?")
	assert.Contains(t, uri, "secret=JBSWY3DPEHPK3PXP")
	assert.Contains(t, uri, "issuer=Acme+App")
	assert.Contains(t, uri, "digits=6")
	assert.Contains(t, uri, "period=30")
}
