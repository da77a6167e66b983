package datadog

import (
	"github.com/DataDog/datadog-go/statsd"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/pool-controller/internal/config"
)

var dogstatsd *statsd.Client
var enabled bool

func InitMetrics(cfg config.Datadog) {
	if !cfg.Enabled {
		return
	}

	var err error
	dogstatsd, err = statsd.New(cfg.AgentAddr)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create DogStatsD client")
		return
	}

	dogstatsd.Namespace = cfg.Namespace
	dogstatsd.Tags = cfg.Tags
	enabled = true

	log.Info().
		Str("addr", cfg.AgentAddr).
		Str("namespace", cfg.Namespace).
		Strs("tags", cfg.Tags).
		Msg("Datadog metrics initialized")
}

func Gauge(name string, value float64, tags ...string) {
	if dogstatsd != nil {
		err := dogstatsd.Gauge(name, value, tags, 1)
		if err != nil && enabled {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to emit gauge metric")
		}
	}
}
