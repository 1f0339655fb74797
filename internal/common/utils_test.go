package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasAny(t *testing.T) {
	assert.True(t, HasAny("ZERO_RESULTS returned", "NOT_FOUND", "ZERO_RESULTS"))
	assert.False(t, HasAny("OK"))
	assert.False(t, HasAny("OK", "ERR"))
}

func TestCutPrefixFold(t *testing.T) {
	cases := []struct {
		s, prefix, rest string
		ok              bool
	}{
		{"Погода Москва", "погода", "Москва", true},
		{"ПОГОДА", "погода", "", true},
		{"/weather   Saint Petersburg ", "/weather", "Saint Petersburg", true},
		{"/weatherly", "/weather", "/weatherly", false},
		{"Пог", "погода", "Пог", false},
		{"/week\tSochi", "/week", "Sochi", true},
	}
	for _, tc := range cases {
		rest, ok := CutPrefixFold(tc.s, tc.prefix)
		assert.Equal(t, tc.ok, ok, tc.s)
		assert.Equal(t, tc.rest, rest, tc.s)
	}
}
