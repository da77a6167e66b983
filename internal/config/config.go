package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

type Broker struct {
	URL                string `json:"url"`
	Username           string `json:"username"`
	Password           string `json:"password"`
	ClientID           string `json:"client_id"`
	CACert             string `json:"ca_cert"`
	KeepAliveSeconds   int    `json:"keep_alive_seconds"`
	PingTimeoutSeconds int    `json:"ping_timeout_seconds"`
}

type Controller struct {
	PumpRelayPin    *int   `json:"pump_relay_pin"`
	ValveRelayPin   *int   `json:"valve_relay_pin"`
	RelayActiveHigh bool   `json:"relay_active_high"`
	TempSensorBus   string `json:"temp_sensor_bus"`
	WifiInterface   string `json:"wifi_interface"`
	CredentialsFile string `json:"credentials_file"`

	SettleDelayMS               int `json:"settle_delay_ms"`
	WifiStateIntervalSeconds    int `json:"wifi_state_interval_seconds"`
	TemperatureIntervalSeconds  int `json:"temperature_interval_seconds"`
	TimerPublishIntervalSeconds int `json:"timer_publish_interval_seconds"`
}

type Surface struct {
	ProgramsDB                string `json:"programs_db"`
	APIPort                   int    `json:"api_port"`
	EvaluationIntervalMinutes int    `json:"evaluation_interval_minutes"`
	NtfyTopic                 string `json:"ntfy_topic"`
}

type Datadog struct {
	Enabled   bool     `json:"enabled"`
	AgentAddr string   `json:"agent_addr"`
	Namespace string   `json:"namespace"`
	Tags      []string `json:"tags"`
}

type Config struct {
	ConfigFile string
	LogLevel   zerolog.Level
	SafeMode   bool

	DeviceID   string     `json:"device_id"`
	Broker     Broker     `json:"broker"`
	Controller Controller `json:"controller"`
	Surface    Surface    `json:"surface"`
	Datadog    Datadog    `json:"datadog"`
}

func Load() Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to config file")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&cfg.SafeMode, "safe-mode", false, "Disable relay actuation system-wide")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	cfg.applyDefaults()
	cfg.validate()
	return cfg
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.Broker.KeepAliveSeconds == 0 {
		cfg.Broker.KeepAliveSeconds = 60
	}
	if cfg.Broker.PingTimeoutSeconds == 0 {
		cfg.Broker.PingTimeoutSeconds = 130
	}
	if cfg.Controller.SettleDelayMS == 0 {
		cfg.Controller.SettleDelayMS = 500
	}
	if cfg.Controller.WifiStateIntervalSeconds == 0 {
		cfg.Controller.WifiStateIntervalSeconds = 30
	}
	if cfg.Controller.TemperatureIntervalSeconds == 0 {
		cfg.Controller.TemperatureIntervalSeconds = 60
	}
	if cfg.Controller.TimerPublishIntervalSeconds == 0 {
		cfg.Controller.TimerPublishIntervalSeconds = 10
	}
	if cfg.Surface.EvaluationIntervalMinutes == 0 {
		cfg.Surface.EvaluationIntervalMinutes = 15
	}
	if cfg.Surface.APIPort == 0 {
		cfg.Surface.APIPort = 7001
	}
	if cfg.Surface.ProgramsDB == "" {
		cfg.Surface.ProgramsDB = "data/programs.db"
	}
}

func (cfg *Config) validate() {
	if cfg.DeviceID == "" {
		panic("Missing required config field: device_id")
	}
	if cfg.Broker.URL == "" {
		panic("Missing required config field: broker.url")
	}
}

// ValidateController checks the fields only the controller daemon needs.
func (cfg *Config) ValidateController() {
	var missing []string
	if cfg.Controller.PumpRelayPin == nil {
		missing = append(missing, "controller.pump_relay_pin")
	}
	if cfg.Controller.ValveRelayPin == nil {
		missing = append(missing, "controller.valve_relay_pin")
	}
	if len(missing) > 0 {
		panic(fmt.Sprintf("Missing required config fields: %v", missing))
	}
	if *cfg.Controller.PumpRelayPin == *cfg.Controller.ValveRelayPin {
		panic(fmt.Sprintf("Conflicting relay pins: pump and valve both use pin %d", *cfg.Controller.PumpRelayPin))
	}
}
