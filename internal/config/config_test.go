package config

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestValidate_Valid(t *testing.T) {
	cfg := Config{
		DeviceID: "pool-1",
		Broker:   Broker{URL: "tcp://broker:1883"},
	}

	cfg.validate() // should not panic
}

func TestValidate_MissingDeviceID(t *testing.T) {
	cfg := Config{
		Broker: Broker{URL: "tcp://broker:1883"},
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic due to missing device_id, but got none")
		}
	}()

	cfg.validate()
}

func TestValidate_MissingBrokerURL(t *testing.T) {
	cfg := Config{DeviceID: "pool-1"}

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic due to missing broker.url, but got none")
		}
	}()

	cfg.validate()
}

func TestValidateController_Valid(t *testing.T) {
	cfg := Config{
		Controller: Controller{
			PumpRelayPin:  intPtr(17),
			ValveRelayPin: intPtr(27),
		},
	}

	cfg.ValidateController() // should not panic
}

func TestValidateController_MissingPins(t *testing.T) {
	cfg := Config{
		Controller: Controller{PumpRelayPin: intPtr(17)},
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic due to missing valve relay pin, but got none")
		}
	}()

	cfg.ValidateController()
}

func TestValidateController_PinConflict(t *testing.T) {
	cfg := Config{
		Controller: Controller{
			PumpRelayPin:  intPtr(17),
			ValveRelayPin: intPtr(17),
		},
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic due to conflicting relay pins, but got none")
		}
	}()

	cfg.ValidateController()
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()

	assert.Equal(t, 60, cfg.Broker.KeepAliveSeconds)
	assert.Equal(t, 130, cfg.Broker.PingTimeoutSeconds)
	assert.Equal(t, 500, cfg.Controller.SettleDelayMS)
	assert.Equal(t, 30, cfg.Controller.WifiStateIntervalSeconds)
	assert.Equal(t, 60, cfg.Controller.TemperatureIntervalSeconds)
	assert.Equal(t, 10, cfg.Controller.TimerPublishIntervalSeconds)
	assert.Equal(t, 15, cfg.Surface.EvaluationIntervalMinutes)
	assert.Equal(t, 7001, cfg.Surface.APIPort)
	assert.Equal(t, "data/programs.db", cfg.Surface.ProgramsDB)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := Config{
		Broker:  Broker{KeepAliveSeconds: 30},
		Surface: Surface{APIPort: 9000},
	}
	cfg.applyDefaults()

	assert.Equal(t, 30, cfg.Broker.KeepAliveSeconds)
	assert.Equal(t, 9000, cfg.Surface.APIPort)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, parseLogLevel("info"))
	assert.Equal(t, zerolog.WarnLevel, parseLogLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, parseLogLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, parseLogLevel("gibberish"))
}
