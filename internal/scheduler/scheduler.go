// Package scheduler runs the weekly program executor. It is a peer command
// producer: it emits the same pump and valve commands a human would, on the
// same channels, and yields to manual control until the next calendar day.
package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/pool-controller/internal/model"
	"github.com/thatsimonsguy/pool-controller/internal/programs"
)

type State int

const (
	Idle State = iota
	Executing
	Overridden
)

func (s State) String() string {
	switch s {
	case Executing:
		return "executing"
	case Overridden:
		return "overridden"
	default:
		return "idle"
	}
}

// Execution identifies which program window is currently asserting control.
type Execution struct {
	Slot    int             `json:"slot"`
	Day     time.Weekday    `json:"day"`
	Mode    model.ValveMode `json:"mode"`
	Program string          `json:"program"`
}

// Emitter publishes scheduler commands. The surface implements it by
// publishing straight to the command channels. EmitTimerStop halts a
// running countdown before a program takes the pump; it is a no-op when no
// timer is believed active, so the scheduler can invoke it unconditionally.
type Emitter interface {
	EmitTimerStop()
	EmitValve(mode model.ValveMode)
	EmitPump(on bool)
}

type Notifier interface {
	Send(title, message string) error
}

// ProgramSource yields the current slot contents; normally *programs.Store.
type ProgramSource interface {
	List() ([]programs.Slot, error)
}

// Scheduler's state machine: Idle, Executing(slot, day, mode), Overridden.
// Callers must serialize Evaluate and ManualOverride (the surface holds its
// own lock around both).
type Scheduler struct {
	programs ProgramSource
	emit     Emitter
	notify   Notifier

	state         State
	current       *Execution
	overrideSince time.Time
}

func New(src ProgramSource, emit Emitter, notify Notifier) *Scheduler {
	return &Scheduler{programs: src, emit: emit, notify: notify}
}

func (s *Scheduler) State() State { return s.state }

func (s *Scheduler) Current() *Execution {
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

// OverrideSince reports when the active override began.
func (s *Scheduler) OverrideSince() (time.Time, bool) {
	return s.overrideSince, s.state == Overridden
}

// Evaluate runs one scheduler tick. Programs are scanned in slot order and
// the first matching window wins; extra matches are surfaced as conflicts
// but never executed.
func (s *Scheduler) Evaluate(now time.Time) {
	if s.state == Overridden {
		if !laterCalendarDay(now, s.overrideSince) {
			log.Debug().Time("since", s.overrideSince).Msg("Manual override active, skipping evaluation")
			return
		}
		log.Info().Msg("Manual override expired, resuming program evaluation")
		s.state = Idle
	}

	slots, err := s.programs.List()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load programs, skipping evaluation")
		return
	}

	nowMin := now.Hour()*60 + now.Minute()
	day := now.Weekday()

	var match *Execution
	for _, slot := range slots {
		if !slot.Enabled {
			continue
		}
		entry, ok := slot.Schedule[day]
		if !ok || !entry.Complete() {
			continue
		}
		start, err := model.MinuteOfDay(entry.Start)
		if err != nil {
			log.Warn().Err(err).Int("slot", slot.Slot).Msg("Unparseable program start, day skipped")
			continue
		}
		stop, err := model.MinuteOfDay(entry.Stop)
		if err != nil {
			log.Warn().Err(err).Int("slot", slot.Slot).Msg("Unparseable program stop, day skipped")
			continue
		}
		if start <= nowMin && nowMin < stop {
			if match == nil {
				match = &Execution{Slot: slot.Slot, Day: day, Mode: entry.Mode, Program: slot.Name}
				continue
			}
			s.reportConflict(match, slot.Slot, slot.Name)
		}
	}

	if match == nil {
		if s.state == Executing {
			log.Info().Str("program", s.current.Program).Msg("Program window ended")
			s.emit.EmitPump(false)
			s.state = Idle
			s.current = nil
		}
		return
	}

	if s.state == Executing && *s.current == *match {
		// Same identity as last tick; no redundant republish.
		return
	}

	log.Info().
		Int("slot", match.Slot).
		Str("program", match.Program).
		Int("mode", int(match.Mode)).
		Msg("Program window active")
	// A running timer would turn the pump off mid-window at expiry, so it
	// is stopped before the program takes over.
	s.emit.EmitTimerStop()
	s.emit.EmitValve(match.Mode)
	s.emit.EmitPump(true)
	s.state = Executing
	s.current = match
}

// ManualOverride preempts an executing program: one pump-off emission, then
// the scheduler stays silent until the first tick on a later calendar day.
// Returns whether a program was actually preempted.
func (s *Scheduler) ManualOverride(now time.Time) bool {
	if s.state != Executing {
		return false
	}

	log.Info().
		Str("program", s.current.Program).
		Time("since", now).
		Msg("Manual override: pausing program until next day")
	s.emit.EmitPump(false)
	s.state = Overridden
	s.overrideSince = now
	s.current = nil

	if s.notify != nil {
		if err := s.notify.Send("Pool program paused", "Manual control has paused the active program until tomorrow."); err != nil {
			log.Warn().Err(err).Msg("Failed to send override notification")
		}
	}
	return true
}

func (s *Scheduler) reportConflict(winner *Execution, slot int, name string) {
	log.Warn().
		Int("winning_slot", winner.Slot).
		Str("winning_program", winner.Program).
		Int("conflicting_slot", slot).
		Str("conflicting_program", name).
		Msg("Program conflict, lower slot wins")
	if s.notify != nil {
		msg := fmt.Sprintf("Programs %q (slot %d) and %q (slot %d) overlap; slot %d is running.",
			winner.Program, winner.Slot, name, slot, winner.Slot)
		if err := s.notify.Send("Pool program conflict", msg); err != nil {
			log.Warn().Err(err).Msg("Failed to send conflict notification")
		}
	}
}

func laterCalendarDay(now, since time.Time) bool {
	y1, m1, d1 := since.Date()
	y2, m2, d2 := now.Date()
	if y2 != y1 {
		return y2 > y1
	}
	if m2 != m1 {
		return m2 > m1
	}
	return d2 > d1
}
