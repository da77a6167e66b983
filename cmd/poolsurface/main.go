package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/pool-controller/internal/api"
	"github.com/thatsimonsguy/pool-controller/internal/clock"
	"github.com/thatsimonsguy/pool-controller/internal/config"
	"github.com/thatsimonsguy/pool-controller/internal/logging"
	"github.com/thatsimonsguy/pool-controller/internal/mqtt"
	"github.com/thatsimonsguy/pool-controller/internal/notifications"
	"github.com/thatsimonsguy/pool-controller/internal/programs"
	"github.com/thatsimonsguy/pool-controller/internal/scheduler"
	"github.com/thatsimonsguy/pool-controller/internal/surface"
	"github.com/thatsimonsguy/pool-controller/internal/topics"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel)

	log.Info().
		Str("device_id", cfg.DeviceID).
		Str("broker", cfg.Broker.URL).
		Str("programs_db", cfg.Surface.ProgramsDB).
		Msg("Starting pool surface agent")

	store, err := programs.Open(cfg.Surface.ProgramsDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open programs database")
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	t := topics.ForDevice(cfg.DeviceID)
	agent := surface.New(t, nil, clock.New(), surface.NewMetrics(reg), surface.Options{
		EvaluationInterval: time.Duration(cfg.Surface.EvaluationIntervalMinutes) * time.Minute,
	})

	client, err := mqtt.New(mqtt.Options{
		BrokerURL:        cfg.Broker.URL,
		Username:         cfg.Broker.Username,
		Password:         cfg.Broker.Password,
		ClientID:         cfg.Broker.ClientID,
		CACert:           cfg.Broker.CACert,
		KeepAlive:        time.Duration(cfg.Broker.KeepAliveSeconds) * time.Second,
		PingTimeout:      time.Duration(cfg.Broker.PingTimeoutSeconds) * time.Second,
		OnConnect:        func(c *mqtt.Client) { agent.HandleConnect(c) },
		OnConnectionLost: agent.HandleDisconnect,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build MQTT client")
	}
	agent.SetBroker(client)

	notifier := notifications.New(cfg.Surface.NtfyTopic)
	agent.SetScheduler(scheduler.New(store, agent, notifier))

	if err := client.Connect(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to broker")
	}

	server := api.NewServer(agent, store, reg)
	go func() {
		if err := server.Start(cfg.Surface.APIPort); err != nil {
			log.Fatal().Err(err).Msg("REST API server exited")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		log.Info().Str("signal", s.String()).Msg("Shutting down")
		cancel()
	}()

	agent.Run(ctx)
	client.Disconnect()
}
