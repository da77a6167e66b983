// Package topics builds the per-device MQTT channel names shared by the
// controller and the control surface. State topics are retained, command
// topics are not.
package topics

type Topics struct {
	prefix string
}

func ForDevice(deviceID string) Topics {
	return Topics{prefix: "devices/" + deviceID + "/"}
}

func (t Topics) PumpSet() string    { return t.prefix + "pump/set" }
func (t Topics) PumpState() string  { return t.prefix + "pump/state" }
func (t Topics) ValveSet() string   { return t.prefix + "valve/set" }
func (t Topics) ValveState() string { return t.prefix + "valve/state" }
func (t Topics) TimerSet() string   { return t.prefix + "timer/set" }
func (t Topics) TimerState() string { return t.prefix + "timer/state" }
func (t Topics) WifiState() string  { return t.prefix + "wifi/state" }
func (t Topics) WifiClear() string  { return t.prefix + "wifi/clear" }
func (t Topics) Temperature() string {
	return t.prefix + "temperature/state"
}

// CommandTopics lists the channels a controller subscribes to.
func (t Topics) CommandTopics() []string {
	return []string{t.PumpSet(), t.ValveSet(), t.TimerSet(), t.WifiClear()}
}

// StateTopics lists the channels a control surface subscribes to.
func (t Topics) StateTopics() []string {
	return []string{t.PumpState(), t.ValveState(), t.TimerState(), t.WifiState(), t.Temperature()}
}
