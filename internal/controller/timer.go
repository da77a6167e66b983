package controller

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/pool-controller/internal/model"
)

// startTimer arms the countdown: valve mode first, a settle delay for the
// valves to finish switching, then the pump, then the initial timer state.
func (c *Controller) startTimer(mode model.ValveMode, duration int) {
	if !mode.Valid() {
		log.Warn().Int("mode", int(mode)).Msg("Invalid timer mode dropped")
		return
	}

	log.Info().Int("mode", int(mode)).Int("duration", duration).Msg("Starting timer")

	c.timer = model.TimerState{
		Active:    true,
		Mode:      mode,
		Duration:  duration,
		Remaining: duration,
	}

	c.setValve(mode)
	c.clock.Sleep(c.opts.SettleDelay)
	c.setPump(true)

	c.publishTimerState(c.clock.Now())
}

// stopTimer is a no-op when no timer is running; a stray stop never touches
// the pump.
func (c *Controller) stopTimer() {
	if !c.timer.Active {
		log.Debug().Msg("Timer stop with no active timer")
		return
	}

	log.Info().Msg("Stopping timer")
	c.timer.Active = false
	c.timer.Remaining = 0

	c.setPump(false)
	c.publishTimerState(c.clock.Now())
}

// tickTimer runs once per second while a timer is active. State is
// published when remaining crosses a 10-second boundary, during the final
// ten seconds, or when the fallback interval has elapsed since the last
// publish; anything more would flood the channel, anything less would let
// mirrors drift.
func (c *Controller) tickTimer(now time.Time) {
	if !c.timer.Active {
		return
	}

	c.timer.Remaining--
	if c.timer.Remaining <= 0 {
		log.Info().Msg("Timer expired")
		c.timer.Active = false
		c.timer.Remaining = 0
		c.setPump(false)
		c.publishTimerState(now)
		return
	}

	if c.timer.Remaining%10 == 0 ||
		c.timer.Remaining <= 10 ||
		now.Sub(c.lastTimerPublish) > c.opts.TimerPublishInterval {
		c.publishTimerState(now)
	}
}
