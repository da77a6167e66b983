// Package controller implements the device side of the pool protocol: it
// consumes command channels, drives the hardware, and republishes canonical
// retained state. The controller owns ground truth for pump, valve, timer,
// wifi and temperature; surfaces only ever mirror what it publishes.
package controller

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/pool-controller/internal/clock"
	"github.com/thatsimonsguy/pool-controller/internal/datadog"
	"github.com/thatsimonsguy/pool-controller/internal/model"
	"github.com/thatsimonsguy/pool-controller/internal/mqtt"
	"github.com/thatsimonsguy/pool-controller/internal/topics"
)

// Broker is the slice of the MQTT client the controller needs.
type Broker interface {
	Publish(topic, payload string, retain bool)
	Disconnect()
}

type Subscriber interface {
	Subscribe(topic string, handler mqtt.Handler) error
}

// Hardware is the physical pool rig. Every call is assumed to succeed; the
// controller is blind to actuation failures (and to manual switches).
type Hardware interface {
	SetPumpRelay(on bool)
	SetValveRelay(mode model.ValveMode)
	ReadTemperature() (float64, error)
	WifiStatus() model.WifiState
	ClearCredentials() error
	Restart()
}

type Options struct {
	SettleDelay          time.Duration
	TimerPublishInterval time.Duration
	WifiStateInterval    time.Duration
	TemperatureInterval  time.Duration
}

// Controller holds all mutable device state. All state transitions happen
// on the Run goroutine: incoming messages are queued and consumed there
// together with the countdown and republish ticks, so handlers never race.
type Controller struct {
	topics topics.Topics
	broker Broker
	hw     Hardware
	clock  clock.Clock
	opts   Options

	pump  model.PumpState
	valve model.ValveMode
	timer model.TimerState

	lastTimerPublish time.Time

	msgs chan mqtt.Message
}

// New creates a controller with the boot defaults: pump off, valve mode 1,
// timer inactive.
func New(t topics.Topics, broker Broker, hw Hardware, clk clock.Clock, opts Options) *Controller {
	return &Controller{
		topics: t,
		broker: broker,
		hw:     hw,
		clock:  clk,
		opts:   opts,
		pump:   model.PumpOff,
		valve:  model.ValveCascade,
		msgs:   make(chan mqtt.Message, 16),
	}
}

// HandleMessage queues a raw command message for the Run loop. Safe to call
// from the MQTT client's callback goroutine.
func (c *Controller) HandleMessage(msg mqtt.Message) {
	c.msgs <- msg
}

// SubscribeAll subscribes the command channels. Called from the broker's
// connect callback so resubscription happens on every reconnect.
func (c *Controller) SubscribeAll(sub Subscriber) error {
	for _, topic := range c.topics.CommandTopics() {
		if err := sub.Subscribe(topic, c.HandleMessage); err != nil {
			return err
		}
	}
	return nil
}

// Announce publishes the full retained state set, as done on every
// (re)connect so fresh subscribers converge immediately.
func (c *Controller) Announce() {
	c.publishPumpState()
	c.publishValveState()
	c.publishWifiState()
	c.publishTimerState(c.clock.Now())
	c.publishTemperature()
}

// Run is the controller's single logical timeline: commands, the 1-second
// countdown, and the periodic wifi/temperature republishes all dispatch
// here.
func (c *Controller) Run(ctx context.Context) {
	countdown := c.clock.NewTicker(time.Second)
	defer countdown.Stop()
	wifi := c.clock.NewTicker(c.opts.WifiStateInterval)
	defer wifi.Stop()
	temp := c.clock.NewTicker(c.opts.TemperatureInterval)
	defer temp.Stop()

	log.Info().Msg("Controller loop started")
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.msgs:
			c.dispatch(msg)
		case <-countdown.C():
			c.tickTimer(c.clock.Now())
		case <-wifi.C():
			c.publishWifiState()
		case <-temp.C():
			c.publishTemperature()
		}
	}
}

func (c *Controller) dispatch(msg mqtt.Message) {
	log.Debug().Str("topic", msg.Topic).Str("payload", string(msg.Payload)).Msg("Command received")

	switch msg.Topic {
	case c.topics.PumpSet():
		c.handlePumpCommand(string(msg.Payload))
	case c.topics.ValveSet():
		c.handleValveCommand(string(msg.Payload))
	case c.topics.TimerSet():
		c.handleTimerCommand(msg.Payload)
	case c.topics.WifiClear():
		c.handleWifiClear()
	default:
		log.Debug().Str("topic", msg.Topic).Msg("Message on unexpected topic ignored")
	}
}

func (c *Controller) handlePumpCommand(payload string) {
	switch strings.ToUpper(strings.TrimSpace(payload)) {
	case "ON", "1":
		c.setPump(true)
	case "OFF", "0":
		c.setPump(false)
	case "TOGGLE":
		// Inverts the controller's own state, never a surface's belief.
		c.setPump(c.pump != model.PumpOn)
	default:
		log.Warn().Str("payload", payload).Msg("Unknown pump command ignored")
	}
}

func (c *Controller) handleValveCommand(payload string) {
	switch strings.ToUpper(strings.TrimSpace(payload)) {
	case "1":
		c.setValve(model.ValveCascade)
	case "2":
		c.setValve(model.ValveEjectors)
	case "TOGGLE":
		if c.valve == model.ValveCascade {
			c.setValve(model.ValveEjectors)
		} else {
			c.setValve(model.ValveCascade)
		}
	default:
		log.Warn().Str("payload", payload).Msg("Unknown valve command ignored")
	}
}

func (c *Controller) handleTimerCommand(payload []byte) {
	var cmd model.TimerCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		log.Error().Err(err).Str("payload", string(payload)).Msg("Malformed timer command dropped")
		return
	}

	if cmd.Duration < 0 {
		log.Warn().Int("duration", cmd.Duration).Msg("Negative timer duration dropped")
		return
	}
	if cmd.Duration == 0 {
		// Explicit stop signal, not an error.
		c.stopTimer()
		return
	}
	c.startTimer(cmd.Mode, cmd.Duration)
}

func (c *Controller) setPump(on bool) {
	c.hw.SetPumpRelay(on)
	if on {
		c.pump = model.PumpOn
	} else {
		c.pump = model.PumpOff
	}
	c.publishPumpState()
}

// setValve republishes even when the mode is already active (idempotent
// confirmation) but skips the redundant hardware pulse.
func (c *Controller) setValve(mode model.ValveMode) {
	if c.valve == mode {
		log.Debug().Int("mode", int(mode)).Msg("Valve already in target mode")
		c.publishValveState()
		return
	}
	c.hw.SetValveRelay(mode)
	c.valve = mode
	c.publishValveState()
}

func (c *Controller) handleWifiClear() {
	log.Info().Msg("WiFi clear command received; wiping credentials and restarting")

	st, _ := json.Marshal(model.WifiState{Status: model.WifiDisconnected})
	c.broker.Publish(c.topics.WifiState(), string(st), true)
	c.clock.Sleep(100 * time.Millisecond)
	c.broker.Disconnect()

	if err := c.hw.ClearCredentials(); err != nil {
		log.Error().Err(err).Msg("Failed to clear credentials")
	}
	c.hw.Restart()
}

func (c *Controller) publishPumpState() {
	c.broker.Publish(c.topics.PumpState(), c.pump.Payload(), true)
	var v float64
	if c.pump == model.PumpOn {
		v = 1
	}
	datadog.Gauge("pump.active", v, "component:pump")
}

func (c *Controller) publishValveState() {
	c.broker.Publish(c.topics.ValveState(), c.valve.Payload(), true)
}

func (c *Controller) publishWifiState() {
	st := c.hw.WifiStatus()
	payload, err := json.Marshal(st)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode wifi state")
		return
	}
	c.broker.Publish(c.topics.WifiState(), string(payload), true)
	if st.Status == model.WifiConnected {
		datadog.Gauge("wifi.rssi", float64(st.RSSI), "component:wifi")
	}
}

// publishTemperature reads the probe and publishes the reading with one
// fractional digit. An invalid reading skips the publish so the retained
// value stays at the last good measurement.
func (c *Controller) publishTemperature() {
	t, err := c.hw.ReadTemperature()
	if err != nil {
		log.Warn().Err(err).Msg("Skipping temperature publish, invalid reading")
		return
	}
	c.broker.Publish(c.topics.Temperature(), strconv.FormatFloat(t, 'f', 1, 64), true)
	datadog.Gauge("water.temperature", t, "component:sensor")
}

func (c *Controller) publishTimerState(now time.Time) {
	payload, err := json.Marshal(c.timer)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode timer state")
		return
	}
	c.broker.Publish(c.topics.TimerState(), string(payload), true)
	c.lastTimerPublish = now
	datadog.Gauge("timer.remaining_seconds", float64(c.timer.Remaining), "component:timer")
}
