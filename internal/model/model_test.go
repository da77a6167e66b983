package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePumpState(t *testing.T) {
	tests := []struct {
		payload string
		want    PumpState
		wantErr bool
	}{
		{"ON", PumpOn, false},
		{"OFF", PumpOff, false},
		{"on", PumpOn, false},
		{" off ", PumpOff, false},
		{"", PumpUnknown, true},
		{"maybe", PumpUnknown, true},
	}

	for _, tt := range tests {
		got, err := ParsePumpState(tt.payload)
		if tt.wantErr {
			assert.Error(t, err, "payload %q", tt.payload)
		} else {
			assert.NoError(t, err, "payload %q", tt.payload)
		}
		assert.Equal(t, tt.want, got, "payload %q", tt.payload)
	}
}

func TestPumpStatePayload(t *testing.T) {
	assert.Equal(t, "ON", PumpOn.Payload())
	assert.Equal(t, "OFF", PumpOff.Payload())
}

func TestParseValveMode(t *testing.T) {
	mode, err := ParseValveMode("1")
	assert.NoError(t, err)
	assert.Equal(t, ValveCascade, mode)

	mode, err = ParseValveMode("2")
	assert.NoError(t, err)
	assert.Equal(t, ValveEjectors, mode)

	for _, bad := range []string{"", "0", "3", "cascade"} {
		mode, err = ParseValveMode(bad)
		assert.Error(t, err, "payload %q", bad)
		assert.Equal(t, ValveUnknown, mode)
	}
}

func TestValveModeValid(t *testing.T) {
	assert.True(t, ValveCascade.Valid())
	assert.True(t, ValveEjectors.Valid())
	assert.False(t, ValveUnknown.Valid())
	assert.False(t, ValveMode(3).Valid())
}

func TestSignalQuality(t *testing.T) {
	tests := []struct {
		rssi int
		want string
	}{
		{-30, "excellent"},
		{-50, "excellent"},
		{-51, "good"},
		{-60, "good"},
		{-61, "fair"},
		{-70, "fair"},
		{-71, "weak"},
		{-90, "weak"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SignalQuality(tt.rssi), "rssi %d", tt.rssi)
	}
}

func TestDayScheduleComplete(t *testing.T) {
	assert.True(t, DaySchedule{Mode: ValveCascade, Start: "08:00", Stop: "09:00"}.Complete())
	assert.False(t, DaySchedule{Mode: ValveUnknown, Start: "08:00", Stop: "09:00"}.Complete())
	assert.False(t, DaySchedule{Mode: ValveCascade, Stop: "09:00"}.Complete())
	assert.False(t, DaySchedule{Mode: ValveCascade, Start: "08:00"}.Complete())
	assert.False(t, DaySchedule{}.Complete())
}

func TestMinuteOfDay(t *testing.T) {
	min, err := MinuteOfDay("00:00")
	assert.NoError(t, err)
	assert.Equal(t, 0, min)

	min, err = MinuteOfDay("08:30")
	assert.NoError(t, err)
	assert.Equal(t, 510, min)

	min, err = MinuteOfDay("23:59")
	assert.NoError(t, err)
	assert.Equal(t, 1439, min)

	for _, bad := range []string{"", "24:00", "12:60", "noon"} {
		_, err = MinuteOfDay(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
