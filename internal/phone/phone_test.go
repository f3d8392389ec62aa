package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_LocalFormat(t *testing.T) {
	n := Normalize("01012345678")
	assert.Equal(t, "201012345678", n.Key)
	assert.True(t, n.Recognized)
}

func TestNormalize_InternationalFormat(t *testing.T) {
	n := Normalize("201012345678")
	assert.Equal(t, "201012345678", n.Key)
	assert.True(t, n.Recognized)
}

func TestNormalize_AngleBracketAnnotation(t *testing.T) {
	// Extension markers are stripped before digit extraction, so the
	// annotated form normalizes identically to the plain local form.
	n := Normalize("<142>01012345678")
	assert.Equal(t, "201012345678", n.Key)
	assert.True(t, n.Recognized)
}

func TestNormalize_Punctuation(t *testing.T) {
	n := Normalize("+2 010-1234-5678")
	assert.Equal(t, "201012345678", n.Key)
	assert.True(t, n.Recognized)
}

func TestNormalize_Idempotent(t *testing.T) {
	once := Normalize("01012345678")
	twice := Normalize(once.Key)
	assert.Equal(t, once.Key, twice.Key)
	assert.True(t, twice.Recognized)
}

func TestNormalize_UnrecognizedPassThrough(t *testing.T) {
	for _, raw := range []string{"12345", "", "no digits here", "0044123456789012"} {
		n := Normalize(raw)
		assert.False(t, n.Recognized, "raw=%q", raw)
		assert.Equal(t, raw, n.Raw)
	}

	// Short foreign-looking numbers degrade to bare digits.
	assert.Equal(t, "12345", Normalize("1-23.45").Key)
}

func TestNormalize_CustomConvention(t *testing.T) {
	uk := Normalizer{CountryPrefix: "4", TrunkPrefix: "07"}
	n := uk.Normalize("07123456789")
	assert.Equal(t, "407123456789", n.Key)
	assert.True(t, n.Recognized)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "201012345678", Key("01012345678"))
}
