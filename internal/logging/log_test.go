package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akshitanchan/marketsim/internal/domain"
)

func TestNamedChainsNames(t *testing.T) {
	log := NewLoggerFromEnv("json")
	k := log.Named("kernel").Named("agent")
	assert.Equal(t, "kernel.agent", k.GetName())
	assert.Equal(t, "", log.GetName())
}

func TestSetLevel(t *testing.T) {
	log := NewLoggerFromEnv("dev")
	assert.Equal(t, DebugLevel, log.GetLevel())
	log.SetLevel(WarnLevel)
	assert.Equal(t, WarnLevel, log.GetLevel())

	lvl, err := ParseLevel("error")
	require.NoError(t, err)
	assert.Equal(t, ErrorLevel, lvl)
	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestTestLoggerRecordsFields(t *testing.T) {
	log, logs := NewTestLogger()
	log.Named("exchange").Warn("rejected", AgentID(3), SimTime("at", domain.Second), Symbol("ABM"))

	entries := logs.FilterMessage("rejected").All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, int64(3), ctx["agent"])
	assert.Equal(t, "00:00:01.000000000", ctx["at"])
	assert.Equal(t, "ABM", ctx["symbol"])
	assert.Equal(t, "exchange", entries[0].LoggerName)
}
