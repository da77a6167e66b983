// Package gpio drives relay pins through the Raspberry Pi pinctrl tool and
// reads DS18B20 probes from the w1 sysfs bus.
package gpio

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var safeMode bool

// SetSafeMode disables all pin writes system-wide. Reads still work.
func SetSafeMode(enabled bool) {
	safeMode = enabled
}

type Pin struct {
	Number     int
	ActiveHigh bool
}

func Activate(pin Pin) error {
	return drive(pin, true)
}

func Deactivate(pin Pin) error {
	return drive(pin, false)
}

func drive(pin Pin, active bool) error {
	if safeMode {
		log.Warn().Int("pin", pin.Number).Bool("active", active).Msg("Safe mode: skipping pin write")
		return nil
	}
	level := "dl"
	if active == pin.ActiveHigh {
		level = "dh"
	}
	return setPin(pin.Number, "op", "pn", level)
}

// CurrentlyActive reads the pin level and maps it through the pin polarity.
func CurrentlyActive(pin Pin) (bool, error) {
	level, err := readLevel(pin.Number)
	if err != nil {
		return false, err
	}
	return level == pin.ActiveHigh, nil
}

func setPin(pin int, opts ...string) error {
	args := []string{"set", fmt.Sprint(pin)}
	args = append(args, opts...)
	out, err := exec.Command("pinctrl", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("pinctrl set failed: %s (output: %s)", err, string(out))
	}
	return nil
}

func readLevel(pin int) (bool, error) {
	out, err := exec.Command("pinctrl", "lev", fmt.Sprint(pin)).Output()
	if err != nil {
		return false, fmt.Errorf("failed to read level for pin %d: %w", pin, err)
	}
	switch strings.TrimSpace(string(out)) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("unexpected output from pinctrl lev: %q", strings.TrimSpace(string(out)))
	}
}

// ReadSensorTemp reads a DS18B20 probe from /sys/bus/w1/devices/<bus> and
// returns degrees Celsius.
func ReadSensorTemp(bus string) (float64, error) {
	file := filepath.Join("/sys/bus/w1/devices", bus, "w1_slave")
	data, err := os.ReadFile(file)
	if err != nil {
		return 0, fmt.Errorf("failed to read sensor data: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) < 2 || !strings.Contains(lines[1], "t=") {
		return 0, fmt.Errorf("temperature data missing or malformed")
	}

	parts := strings.Split(lines[1], "t=")
	if len(parts) != 2 {
		return 0, fmt.Errorf("could not parse temperature line")
	}

	tempMilliC, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, fmt.Errorf("failed to convert temperature to int: %w", err)
	}

	return float64(tempMilliC) / 1000.0, nil
}

// ReadSensorTempWithRetries retries transient w1 read failures before
// giving up.
func ReadSensorTempWithRetries(bus string, retries int) (float64, error) {
	temp, err := ReadSensorTemp(bus)
	if err != nil && retries > 0 {
		time.Sleep(2 * time.Second)
		return ReadSensorTempWithRetries(bus, retries-1)
	}
	return temp, err
}
