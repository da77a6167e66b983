// Package surface is the operator-facing agent. It keeps a mirror of the
// controller's retained state, runs a local countdown display for the timer,
// hosts the program scheduler, and publishes commands on the controller's
// command channels.
package surface

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/pool-controller/internal/clock"
	"github.com/thatsimonsguy/pool-controller/internal/model"
	"github.com/thatsimonsguy/pool-controller/internal/mqtt"
	"github.com/thatsimonsguy/pool-controller/internal/scheduler"
	"github.com/thatsimonsguy/pool-controller/internal/topics"
)

// ErrDisconnected is returned from every command method while the broker
// session is down. The mirror keeps its last known values; only command
// affordances are disabled.
var ErrDisconnected = errors.New("broker disconnected, commands unavailable")

// Publisher is the broker surface the agent needs for outbound commands.
type Publisher interface {
	Publish(topic, payload string, retain bool)
}

type Subscriber interface {
	Subscribe(topic string, handler mqtt.Handler) error
}

// Mirror is the agent's belief about the controller. Every field starts
// unknown and is populated only by messages on the state channels; commands
// never update it.
type Mirror struct {
	Pump        model.PumpState
	Valve       model.ValveMode
	Timer       *model.TimerState
	Wifi        *model.WifiState
	Temperature *float64
	Connected   bool
}

// Snapshot is a point-in-time copy of the mirror plus the local countdown
// and scheduler status, for the HTTP API.
type Snapshot struct {
	Mirror
	CountdownRunning   bool
	CountdownRemaining int
	SchedulerState     scheduler.State
	Execution          *scheduler.Execution
}

type Options struct {
	EvaluationInterval time.Duration
}

type Surface struct {
	topics topics.Topics
	broker Publisher
	clock  clock.Clock
	sched  *scheduler.Scheduler
	mx     *Metrics
	opts   Options

	mu     sync.Mutex
	mirror Mirror

	// Local countdown display, decremented once a second and resynced by
	// every retained timer state message.
	countdownRunning   bool
	countdownRemaining int
}

func New(t topics.Topics, broker Publisher, clk clock.Clock, mx *Metrics, opts Options) *Surface {
	if opts.EvaluationInterval <= 0 {
		opts.EvaluationInterval = 15 * time.Minute
	}
	return &Surface{
		topics: t,
		broker: broker,
		clock:  clk,
		mx:     mx,
		opts:   opts,
		mirror: Mirror{Pump: model.PumpUnknown, Valve: model.ValveUnknown},
	}
}

// SetScheduler wires the program executor. The scheduler's emitter should be
// this surface (see EmitPump/EmitValve), so construction is two-phase.
func (s *Surface) SetScheduler(sched *scheduler.Scheduler) {
	s.sched = sched
}

// SetBroker wires the MQTT client. Two-phase for the same reason as
// SetScheduler: the client's connect callbacks reference this surface.
func (s *Surface) SetBroker(broker Publisher) {
	s.broker = broker
}

// HandleConnect subscribes to all state channels. Retained messages replay
// immediately, so the mirror repopulates on every (re)connect without any
// recovery protocol.
func (s *Surface) HandleConnect(sub Subscriber) {
	for _, topic := range s.topics.StateTopics() {
		if err := sub.Subscribe(topic, s.HandleMessage); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("Failed to subscribe to state channel")
		}
	}
	s.mu.Lock()
	s.mirror.Connected = true
	s.mu.Unlock()
	s.mx.SetConnected(true)
	log.Info().Msg("Connected to broker, state channels subscribed")
}

func (s *Surface) HandleDisconnect(err error) {
	s.mu.Lock()
	s.mirror.Connected = false
	s.mu.Unlock()
	s.mx.SetConnected(false)
	log.Warn().Err(err).Msg("Lost broker connection, commands disabled")
}

// HandleMessage applies one state message to the mirror. Unparseable
// payloads are logged and dropped; the previous belief stands.
func (s *Surface) HandleMessage(msg mqtt.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload := string(msg.Payload)
	switch msg.Topic {
	case s.topics.PumpState():
		state, err := model.ParsePumpState(payload)
		if err != nil {
			log.Warn().Err(err).Str("payload", payload).Msg("Dropping unparseable pump state")
			return
		}
		s.mirror.Pump = state
		s.mx.SetPump(state == model.PumpOn)
	case s.topics.ValveState():
		mode, err := model.ParseValveMode(payload)
		if err != nil {
			log.Warn().Err(err).Str("payload", payload).Msg("Dropping unparseable valve state")
			return
		}
		s.mirror.Valve = mode
	case s.topics.TimerState():
		var state model.TimerState
		if err := unmarshalStrict(msg.Payload, &state); err != nil {
			log.Warn().Err(err).Str("payload", payload).Msg("Dropping unparseable timer state")
			return
		}
		s.mirror.Timer = &state
		s.reconcileCountdown(state)
	case s.topics.WifiState():
		var state model.WifiState
		if err := unmarshalStrict(msg.Payload, &state); err != nil {
			log.Warn().Err(err).Str("payload", payload).Msg("Dropping unparseable wifi state")
			return
		}
		s.mirror.Wifi = &state
		s.mx.SetRSSI(state.RSSI)
	case s.topics.Temperature():
		temp, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			log.Warn().Err(err).Str("payload", payload).Msg("Dropping unparseable temperature")
			return
		}
		s.mirror.Temperature = &temp
		s.mx.SetTemperature(temp)
	default:
		log.Debug().Str("topic", msg.Topic).Msg("Ignoring message on unhandled topic")
	}
}

// reconcileCountdown resyncs the local display to the controller's
// authoritative remaining count. Callers hold s.mu.
func (s *Surface) reconcileCountdown(state model.TimerState) {
	if !state.Active {
		s.countdownRunning = false
		s.countdownRemaining = 0
		s.mx.SetTimerRemaining(0)
		return
	}
	s.countdownRunning = true
	s.countdownRemaining = state.Remaining
	s.mx.SetTimerRemaining(state.Remaining)
}

// tickCountdown advances the display by one second between controller
// publishes. It never goes below zero and never declares the timer done;
// only a retained inactive state does that.
func (s *Surface) tickCountdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.countdownRunning || s.countdownRemaining <= 0 {
		return
	}
	s.countdownRemaining--
	s.mx.SetTimerRemaining(s.countdownRemaining)
}

func (s *Surface) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Mirror:             s.mirror,
		CountdownRunning:   s.countdownRunning,
		CountdownRemaining: s.countdownRemaining,
	}
	if s.mirror.Timer != nil {
		t := *s.mirror.Timer
		snap.Timer = &t
	}
	if s.mirror.Wifi != nil {
		w := *s.mirror.Wifi
		snap.Wifi = &w
	}
	if s.mirror.Temperature != nil {
		v := *s.mirror.Temperature
		snap.Temperature = &v
	}
	if s.sched != nil {
		snap.SchedulerState = s.sched.State()
		snap.Execution = s.sched.Current()
	}
	return snap
}

// SetPump publishes a pump command. The mirror does not change until the
// controller's retained state comes back.
func (s *Surface) SetPump(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkConnected(); err != nil {
		return err
	}
	s.overrideIfExecuting()
	payload := model.PumpOff.Payload()
	if on {
		payload = model.PumpOn.Payload()
	}
	s.publishCommand(s.topics.PumpSet(), payload, "pump")
	return nil
}

// TogglePump asks the controller to invert its own pump state. The surface
// deliberately does not compute ON/OFF from the mirror, which may be stale.
func (s *Surface) TogglePump() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkConnected(); err != nil {
		return err
	}
	s.overrideIfExecuting()
	s.publishCommand(s.topics.PumpSet(), "TOGGLE", "pump")
	return nil
}

func (s *Surface) SetValve(mode model.ValveMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid valve mode %d", mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkConnected(); err != nil {
		return err
	}
	s.overrideIfExecuting()
	s.publishCommand(s.topics.ValveSet(), mode.Payload(), "valve")
	return nil
}

func (s *Surface) ToggleValve() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkConnected(); err != nil {
		return err
	}
	s.overrideIfExecuting()
	s.publishCommand(s.topics.ValveSet(), "TOGGLE", "valve")
	return nil
}

// StartTimer publishes a timer command and optimistically seeds the local
// countdown so the display moves before the controller's first state
// publish. The retained state message resyncs it moments later.
func (s *Surface) StartTimer(mode model.ValveMode, duration int) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid valve mode %d", mode)
	}
	if duration <= 0 {
		return fmt.Errorf("invalid timer duration %d", duration)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkConnected(); err != nil {
		return err
	}
	s.overrideIfExecuting()
	payload := marshalTimerCommand(model.TimerCommand{Mode: mode, Duration: duration})
	s.publishCommand(s.topics.TimerSet(), payload, "timer")
	s.countdownRunning = true
	s.countdownRemaining = duration
	s.mx.SetTimerRemaining(duration)
	return nil
}

// StopTimer publishes a zero-duration timer command, the stop convention.
func (s *Surface) StopTimer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkConnected(); err != nil {
		return err
	}
	s.overrideIfExecuting()
	payload := marshalTimerCommand(model.TimerCommand{Mode: model.ValveCascade, Duration: 0})
	s.publishCommand(s.topics.TimerSet(), payload, "timer")
	return nil
}

// ClearWifi tells the controller to wipe its credentials and restart. The
// controller will drop offline; its LWT and final retained wifi state both
// read disconnected.
func (s *Surface) ClearWifi() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkConnected(); err != nil {
		return err
	}
	s.publishCommand(s.topics.WifiClear(), "1", "wifi_clear")
	return nil
}

// Evaluate runs one scheduler pass. Exposed so the API can trigger an
// immediate re-evaluation after a program is created or toggled.
func (s *Surface) Evaluate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sched == nil {
		return
	}
	s.sched.Evaluate(s.clock.Now())
}

// overrideIfExecuting preempts a running program before the manual command
// goes out. Order matters: the override's pump-off is published first, then
// the user's command. Callers hold s.mu.
func (s *Surface) overrideIfExecuting() {
	if s.sched == nil {
		return
	}
	if s.sched.ManualOverride(s.clock.Now()) {
		s.mx.CountOverride()
	}
}

func (s *Surface) checkConnected() error {
	if !s.mirror.Connected {
		return ErrDisconnected
	}
	return nil
}

func (s *Surface) publishCommand(topic, payload, channel string) {
	log.Info().Str("topic", topic).Str("payload", payload).Msg("Publishing command")
	s.broker.Publish(topic, payload, false)
	s.mx.CountCommand(channel)
}

// EmitPump implements scheduler.Emitter. Scheduler emissions go out on the
// ordinary command channels and never trip the override path. Callers
// already hold s.mu (Evaluate and the command methods run under it).
func (s *Surface) EmitPump(on bool) {
	payload := model.PumpOff.Payload()
	if on {
		payload = model.PumpOn.Payload()
	}
	s.publishCommand(s.topics.PumpSet(), payload, "scheduler")
}

func (s *Surface) EmitValve(mode model.ValveMode) {
	s.publishCommand(s.topics.ValveSet(), mode.Payload(), "scheduler")
}

// EmitTimerStop publishes a zero-duration timer command when the mirror or
// the local countdown believes a timer is running. The local display stops
// immediately, same as for the surface's own timer commands; the mirror
// waits for the controller's retained inactive state.
func (s *Surface) EmitTimerStop() {
	if !s.countdownRunning && (s.mirror.Timer == nil || !s.mirror.Timer.Active) {
		return
	}
	log.Info().Msg("Stopping active timer before program start")
	payload := marshalTimerCommand(model.TimerCommand{Mode: model.ValveCascade, Duration: 0})
	s.publishCommand(s.topics.TimerSet(), payload, "scheduler")
	s.countdownRunning = false
	s.countdownRemaining = 0
	s.mx.SetTimerRemaining(0)
}

// Run drives the countdown display and the scheduler until ctx is done.
// One evaluation fires immediately so a restart mid-window resumes the
// program without waiting out the interval.
func (s *Surface) Run(ctx context.Context) {
	display := s.clock.NewTicker(time.Second)
	defer display.Stop()
	eval := s.clock.NewTicker(s.opts.EvaluationInterval)
	defer eval.Stop()

	s.Evaluate()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Surface agent shutting down")
			return
		case <-display.C():
			s.tickCountdown()
		case <-eval.C():
			s.Evaluate()
		}
	}
}
