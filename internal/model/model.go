package model

import (
	"fmt"
	"strings"
	"time"
)

// PumpState is the pump's logical state as mirrored from the controller.
// PumpUnknown is only ever held by a control surface that has not yet seen
// a retained state message; the controller itself always knows its pump.
type PumpState string

const (
	PumpUnknown PumpState = "unknown"
	PumpOn      PumpState = "on"
	PumpOff     PumpState = "off"
)

// ParsePumpState decodes a pump/state payload ("ON" or "OFF").
func ParsePumpState(payload string) (PumpState, error) {
	switch strings.ToUpper(strings.TrimSpace(payload)) {
	case "ON":
		return PumpOn, nil
	case "OFF":
		return PumpOff, nil
	}
	return PumpUnknown, fmt.Errorf("invalid pump state payload %q", payload)
}

// Payload renders the wire form published on pump/state.
func (p PumpState) Payload() string {
	if p == PumpOn {
		return "ON"
	}
	return "OFF"
}

// ValveMode selects which valve circuit is active: 1 (cascade) or 2
// (ejectors). ValveUnknown is the surface's pre-sync tri-state.
type ValveMode int

const (
	ValveUnknown  ValveMode = 0
	ValveCascade  ValveMode = 1
	ValveEjectors ValveMode = 2
)

func ParseValveMode(payload string) (ValveMode, error) {
	switch strings.TrimSpace(payload) {
	case "1":
		return ValveCascade, nil
	case "2":
		return ValveEjectors, nil
	}
	return ValveUnknown, fmt.Errorf("invalid valve mode payload %q", payload)
}

func (v ValveMode) Valid() bool {
	return v == ValveCascade || v == ValveEjectors
}

func (v ValveMode) Payload() string {
	return fmt.Sprintf("%d", int(v))
}

// TimerState is the controller's canonical timer state, published retained
// on timer/state.
type TimerState struct {
	Active    bool      `json:"active"`
	Mode      ValveMode `json:"mode"`
	Duration  int       `json:"duration"`
	Remaining int       `json:"remaining"`
}

// TimerCommand is the timer/set payload. Duration 0 is the stop signal.
type TimerCommand struct {
	Mode     ValveMode `json:"mode"`
	Duration int       `json:"duration"`
}

// Wifi connection status strings as published on wifi/state.
const (
	WifiConnected    = "connected"
	WifiDisconnected = "disconnected"
)

type WifiState struct {
	Status  string `json:"status"`
	SSID    string `json:"ssid,omitempty"`
	IP      string `json:"ip,omitempty"`
	RSSI    int    `json:"rssi,omitempty"`
	Quality string `json:"quality,omitempty"`
}

// SignalQuality buckets an RSSI reading the same way the device firmware
// reports it to the dashboard.
func SignalQuality(rssi int) string {
	switch {
	case rssi >= -50:
		return "excellent"
	case rssi >= -60:
		return "good"
	case rssi >= -70:
		return "fair"
	default:
		return "weak"
	}
}

// MaxProgramSlots is the number of scheduler program slots. Lower slot
// index wins when two programs match the same instant.
const MaxProgramSlots = 3

// DaySchedule is one weekday's window within a program. A day entry only
// takes effect when mode, start and stop are all set; start < stop is
// assumed but not enforced.
type DaySchedule struct {
	Mode  ValveMode `json:"mode"`
	Start string    `json:"start"`
	Stop  string    `json:"stop"`
}

// Complete reports whether the entry has all three fields set, i.e. the
// program is active at all on this day.
func (d DaySchedule) Complete() bool {
	return d.Mode.Valid() && d.Start != "" && d.Stop != ""
}

// Program is a weekly automation slot owned by the control surface. The
// controller never sees programs, only the commands they emit.
type Program struct {
	Name     string                       `json:"name"`
	Enabled  bool                         `json:"enabled"`
	Schedule map[time.Weekday]DaySchedule `json:"schedule"`
}

// MinuteOfDay parses an "HH:MM" clock string into minutes since midnight.
func MinuteOfDay(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", hhmm, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
