package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortID(t *testing.T) {
	a := ShortID("Reserve Collection 2023", "1700000000")
	b := ShortID("Reserve Collection 2023", "1700000000")
	c := ShortID("Reserve Collection 2023", "1700000001")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEmpty(t, a)
	assert.LessOrEqual(t, len(a), 6)
}

func TestBase62Encode(t *testing.T) {
	assert.Equal(t, "0", base62Encode(0))
	assert.Equal(t, "z", base62Encode(61))
	assert.Equal(t, "10", base62Encode(62))
}
