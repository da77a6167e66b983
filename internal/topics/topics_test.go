package topics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForDevice(t *testing.T) {
	topics := ForDevice("pool-1")

	assert.Equal(t, "devices/pool-1/pump/set", topics.PumpSet())
	assert.Equal(t, "devices/pool-1/pump/state", topics.PumpState())
	assert.Equal(t, "devices/pool-1/valve/set", topics.ValveSet())
	assert.Equal(t, "devices/pool-1/valve/state", topics.ValveState())
	assert.Equal(t, "devices/pool-1/timer/set", topics.TimerSet())
	assert.Equal(t, "devices/pool-1/timer/state", topics.TimerState())
	assert.Equal(t, "devices/pool-1/wifi/state", topics.WifiState())
	assert.Equal(t, "devices/pool-1/wifi/clear", topics.WifiClear())
	assert.Equal(t, "devices/pool-1/temperature/state", topics.Temperature())
}

func TestTopicSets(t *testing.T) {
	topics := ForDevice("pool-1")

	assert.ElementsMatch(t, []string{
		"devices/pool-1/pump/set",
		"devices/pool-1/valve/set",
		"devices/pool-1/timer/set",
		"devices/pool-1/wifi/clear",
	}, topics.CommandTopics())

	assert.ElementsMatch(t, []string{
		"devices/pool-1/pump/state",
		"devices/pool-1/valve/state",
		"devices/pool-1/timer/state",
		"devices/pool-1/wifi/state",
		"devices/pool-1/temperature/state",
	}, topics.StateTopics())
}
