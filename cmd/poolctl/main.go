package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/pool-controller/internal/clock"
	"github.com/thatsimonsguy/pool-controller/internal/config"
	"github.com/thatsimonsguy/pool-controller/internal/controller"
	"github.com/thatsimonsguy/pool-controller/internal/datadog"
	"github.com/thatsimonsguy/pool-controller/internal/gpio"
	"github.com/thatsimonsguy/pool-controller/internal/hardware"
	"github.com/thatsimonsguy/pool-controller/internal/logging"
	"github.com/thatsimonsguy/pool-controller/internal/model"
	"github.com/thatsimonsguy/pool-controller/internal/mqtt"
	"github.com/thatsimonsguy/pool-controller/internal/topics"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel)

	log.Info().
		Str("device_id", cfg.DeviceID).
		Str("broker", cfg.Broker.URL).
		Msg("Starting pool controller")

	cfg.ValidateController()
	gpio.SetSafeMode(cfg.SafeMode)
	if cfg.SafeMode {
		log.Warn().Msg("SAFE MODE ENABLED — GPIO Set() is disabled system-wide")
	}

	datadog.InitMetrics(cfg.Datadog)

	pi := hardware.NewPi(cfg.Controller)
	t := topics.ForDevice(cfg.DeviceID)

	will, err := json.Marshal(model.WifiState{Status: model.WifiDisconnected})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode will payload")
	}

	var ctrl *controller.Controller
	client, err := mqtt.New(mqtt.Options{
		BrokerURL:   cfg.Broker.URL,
		Username:    cfg.Broker.Username,
		Password:    cfg.Broker.Password,
		ClientID:    cfg.Broker.ClientID,
		CACert:      cfg.Broker.CACert,
		KeepAlive:   time.Duration(cfg.Broker.KeepAliveSeconds) * time.Second,
		PingTimeout: time.Duration(cfg.Broker.PingTimeoutSeconds) * time.Second,
		WillTopic:   t.WifiState(),
		WillPayload: string(will),
		// Resubscribe and republish on every (re)connect so retained state
		// is canonical again after any broker hiccup.
		OnConnect: func(c *mqtt.Client) {
			if err := ctrl.SubscribeAll(c); err != nil {
				log.Error().Err(err).Msg("Failed to subscribe to command channels")
				return
			}
			ctrl.Announce()
		},
		OnConnectionLost: func(err error) {
			log.Warn().Err(err).Msg("Lost broker connection, auto-reconnect pending")
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build MQTT client")
	}

	ctrl = controller.New(t, client, pi, clock.New(), controller.Options{
		SettleDelay:          time.Duration(cfg.Controller.SettleDelayMS) * time.Millisecond,
		TimerPublishInterval: time.Duration(cfg.Controller.TimerPublishIntervalSeconds) * time.Second,
		WifiStateInterval:    time.Duration(cfg.Controller.WifiStateIntervalSeconds) * time.Second,
		TemperatureInterval:  time.Duration(cfg.Controller.TemperatureIntervalSeconds) * time.Second,
	})

	if err := client.Connect(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to broker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		log.Info().Str("signal", s.String()).Msg("Shutting down")
		cancel()
	}()

	ctrl.Run(ctx)
	client.Disconnect()
}
