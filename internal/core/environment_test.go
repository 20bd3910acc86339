package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEnvironment(t *testing.T) {
	assert.Equal(t, Production, ParseEnvironment(" Production "))
	assert.Equal(t, Staging, ParseEnvironment("staging"))
	assert.Equal(t, Development, ParseEnvironment("qa"))

	var e Environment
	assert.NoError(t, e.Decode("testing"))
	assert.Equal(t, Testing, e)
	assert.False(t, e.IsProduction())
	assert.Equal(t, "debug", e.LogLevel())
	assert.Equal(t, "info", Production.LogLevel())
}
