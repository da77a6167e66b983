// Package hardware implements the controller's physical I/O on a Raspberry
// Pi: relay board for pump and valves, DS18B20 water probe, and the wlan
// interface. The controller never verifies a relay actually switched; every
// action is assumed to succeed and failures are only logged.
package hardware

import (
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/pool-controller/internal/config"
	"github.com/thatsimonsguy/pool-controller/internal/gpio"
	"github.com/thatsimonsguy/pool-controller/internal/model"
)

type Pi struct {
	pumpPin   gpio.Pin
	valvePin  gpio.Pin
	sensorBus string
	wifiIface string
	credsFile string
}

func NewPi(cfg config.Controller) *Pi {
	return &Pi{
		pumpPin:   gpio.Pin{Number: *cfg.PumpRelayPin, ActiveHigh: cfg.RelayActiveHigh},
		valvePin:  gpio.Pin{Number: *cfg.ValveRelayPin, ActiveHigh: cfg.RelayActiveHigh},
		sensorBus: cfg.TempSensorBus,
		wifiIface: cfg.WifiInterface,
		credsFile: cfg.CredentialsFile,
	}
}

func (p *Pi) SetPumpRelay(on bool) {
	log.Info().Bool("on", on).Msg("Pump relay")
	var err error
	if on {
		err = gpio.Activate(p.pumpPin)
	} else {
		err = gpio.Deactivate(p.pumpPin)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to switch pump relay")
	}
}

// SetValveRelay drives the valve relay: mode 2 energizes it, mode 1 is the
// rest position.
func (p *Pi) SetValveRelay(mode model.ValveMode) {
	log.Info().Int("mode", int(mode)).Msg("Valve relay")
	var err error
	if mode == model.ValveEjectors {
		err = gpio.Activate(p.valvePin)
	} else {
		err = gpio.Deactivate(p.valvePin)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to switch valve relay")
	}
}

func (p *Pi) ReadTemperature() (float64, error) {
	return gpio.ReadSensorTempWithRetries(p.sensorBus, 2)
}

// WifiStatus reports the wlan link state in the shape published on
// wifi/state.
func (p *Pi) WifiStatus() model.WifiState {
	out, err := exec.Command("iw", "dev", p.wifiIface, "link").Output()
	if err != nil {
		log.Warn().Err(err).Str("iface", p.wifiIface).Msg("Failed to query wifi link")
		return model.WifiState{Status: model.WifiDisconnected}
	}

	text := string(out)
	if strings.Contains(text, "Not connected") {
		return model.WifiState{Status: model.WifiDisconnected}
	}

	st := model.WifiState{Status: model.WifiConnected, IP: p.interfaceIP()}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, "SSID: "); ok {
			st.SSID = v
		}
		if v, ok := strings.CutPrefix(line, "signal: "); ok {
			fields := strings.Fields(v)
			if len(fields) > 0 {
				if rssi, err := strconv.Atoi(fields[0]); err == nil {
					st.RSSI = rssi
					st.Quality = model.SignalQuality(rssi)
				}
			}
		}
	}
	return st
}

func (p *Pi) interfaceIP() string {
	iface, err := net.InterfaceByName(p.wifiIface)
	if err != nil {
		return ""
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return ""
}

// ClearCredentials wipes the persisted network credentials so the next boot
// enters provisioning.
func (p *Pi) ClearCredentials() error {
	if p.credsFile == "" {
		return nil
	}
	if err := os.Remove(p.credsFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	log.Info().Str("file", p.credsFile).Msg("Network credentials cleared")
	return nil
}

// Restart terminates the process; the service manager brings it back up in
// a provisioning-clean state.
func (p *Pi) Restart() {
	log.Info().Msg("Restarting control process")
	os.Exit(1)
}
