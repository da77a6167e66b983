package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/pool-controller/internal/model"
	"github.com/thatsimonsguy/pool-controller/internal/programs"
)

type stubSource struct {
	slots []programs.Slot
	err   error
}

func (s *stubSource) List() ([]programs.Slot, error) { return s.slots, s.err }

type recordingEmitter struct {
	events []string
}

func (r *recordingEmitter) EmitTimerStop() {
	r.events = append(r.events, "timer=STOP")
}

func (r *recordingEmitter) EmitValve(mode model.ValveMode) {
	r.events = append(r.events, "valve="+mode.Payload())
}

func (r *recordingEmitter) EmitPump(on bool) {
	if on {
		r.events = append(r.events, "pump=ON")
	} else {
		r.events = append(r.events, "pump=OFF")
	}
}

type recordingNotifier struct {
	sent []string
}

func (r *recordingNotifier) Send(title, message string) error {
	r.sent = append(r.sent, title)
	return nil
}

func slot(n int, name string, enabled bool, day time.Weekday, mode model.ValveMode, start, stop string) programs.Slot {
	return programs.Slot{
		Slot: n,
		Program: model.Program{
			Name:    name,
			Enabled: enabled,
			Schedule: map[time.Weekday]model.DaySchedule{
				day: {Mode: mode, Start: start, Stop: stop},
			},
		},
	}
}

// Monday June 2 2025.
func monday(hh, mm int) time.Time {
	return time.Date(2025, 6, 2, hh, mm, 0, 0, time.UTC)
}

func TestEvaluateStartsAndStopsProgram(t *testing.T) {
	src := &stubSource{slots: []programs.Slot{
		slot(0, "Morning", true, time.Monday, model.ValveCascade, "08:00", "09:00"),
	}}
	emit := &recordingEmitter{}
	s := New(src, emit, nil)

	s.Evaluate(monday(8, 30))
	assert.Equal(t, []string{"timer=STOP", "valve=1", "pump=ON"}, emit.events)
	assert.Equal(t, Executing, s.State())
	require.NotNil(t, s.Current())
	assert.Equal(t, "Morning", s.Current().Program)

	// Same window on the next tick: no re-emission.
	s.Evaluate(monday(8, 45))
	assert.Equal(t, []string{"timer=STOP", "valve=1", "pump=ON"}, emit.events)

	// Past the stop time: one pump off, back to idle.
	s.Evaluate(monday(9, 5))
	assert.Equal(t, []string{"timer=STOP", "valve=1", "pump=ON", "pump=OFF"}, emit.events)
	assert.Equal(t, Idle, s.State())
	assert.Nil(t, s.Current())
}

func TestEvaluateWindowBoundaries(t *testing.T) {
	src := &stubSource{slots: []programs.Slot{
		slot(0, "Morning", true, time.Monday, model.ValveCascade, "08:00", "09:00"),
	}}
	emit := &recordingEmitter{}
	s := New(src, emit, nil)

	// Start minute is inclusive.
	s.Evaluate(monday(8, 0))
	assert.Equal(t, Executing, s.State())

	// Stop minute is exclusive.
	s.Evaluate(monday(9, 0))
	assert.Equal(t, Idle, s.State())
}

func TestEvaluateSkipsDisabledAndIncomplete(t *testing.T) {
	src := &stubSource{slots: []programs.Slot{
		slot(0, "Disabled", false, time.Monday, model.ValveCascade, "08:00", "09:00"),
		{Slot: 1, Program: model.Program{
			Name:    "NoStop",
			Enabled: true,
			Schedule: map[time.Weekday]model.DaySchedule{
				time.Monday: {Mode: model.ValveCascade, Start: "08:00"},
			},
		}},
	}}
	emit := &recordingEmitter{}
	s := New(src, emit, nil)

	s.Evaluate(monday(8, 30))

	assert.Empty(t, emit.events)
	assert.Equal(t, Idle, s.State())
}

func TestEvaluateLowerSlotWinsAndConflictReported(t *testing.T) {
	src := &stubSource{slots: []programs.Slot{
		slot(0, "Morning", true, time.Monday, model.ValveCascade, "08:00", "10:00"),
		slot(1, "Overlap", true, time.Monday, model.ValveEjectors, "09:00", "11:00"),
	}}
	emit := &recordingEmitter{}
	notify := &recordingNotifier{}
	s := New(src, emit, notify)

	s.Evaluate(monday(9, 30))

	assert.Equal(t, []string{"timer=STOP", "valve=1", "pump=ON"}, emit.events)
	require.NotNil(t, s.Current())
	assert.Equal(t, 0, s.Current().Slot)
	assert.Equal(t, []string{"Pool program conflict"}, notify.sent)
}

func TestProgramHandoffBetweenSlots(t *testing.T) {
	src := &stubSource{slots: []programs.Slot{
		slot(0, "Morning", true, time.Monday, model.ValveCascade, "08:00", "09:00"),
		slot(1, "Midday", true, time.Monday, model.ValveEjectors, "09:00", "10:00"),
	}}
	emit := &recordingEmitter{}
	s := New(src, emit, nil)

	s.Evaluate(monday(8, 30))
	s.Evaluate(monday(9, 15))

	assert.Equal(t, []string{"timer=STOP", "valve=1", "pump=ON", "timer=STOP", "valve=2", "pump=ON"}, emit.events)
	assert.Equal(t, 1, s.Current().Slot)
}

func TestManualOverride(t *testing.T) {
	src := &stubSource{slots: []programs.Slot{
		slot(0, "Morning", true, time.Monday, model.ValveCascade, "06:00", "22:00"),
	}}
	emit := &recordingEmitter{}
	notify := &recordingNotifier{}
	s := New(src, emit, notify)

	// Override while idle does nothing.
	assert.False(t, s.ManualOverride(monday(5, 0)))

	s.Evaluate(monday(10, 0))
	require.Equal(t, Executing, s.State())

	assert.True(t, s.ManualOverride(monday(10, 30)))
	assert.Equal(t, []string{"timer=STOP", "valve=1", "pump=ON", "pump=OFF"}, emit.events)
	assert.Equal(t, Overridden, s.State())
	assert.Equal(t, []string{"Pool program paused"}, notify.sent)

	// Later the same day the scheduler stays out of the way.
	s.Evaluate(monday(12, 0))
	s.Evaluate(monday(21, 0))
	assert.Equal(t, []string{"timer=STOP", "valve=1", "pump=ON", "pump=OFF"}, emit.events)
	assert.Equal(t, Overridden, s.State())
}

func TestOverrideExpiresNextCalendarDay(t *testing.T) {
	src := &stubSource{slots: []programs.Slot{
		slot(0, "Daily", true, time.Tuesday, model.ValveEjectors, "06:00", "22:00"),
		slot(1, "Daily2", true, time.Monday, model.ValveEjectors, "06:00", "22:00"),
	}}
	emit := &recordingEmitter{}
	s := New(src, emit, nil)

	s.Evaluate(monday(10, 0))
	require.Equal(t, Executing, s.State())
	require.True(t, s.ManualOverride(monday(10, 30)))

	// First tick on Tuesday resumes evaluation immediately.
	tuesday := time.Date(2025, 6, 3, 7, 0, 0, 0, time.UTC)
	s.Evaluate(tuesday)

	assert.Equal(t, Executing, s.State())
	require.NotNil(t, s.Current())
	assert.Equal(t, "Daily", s.Current().Program)
}

func TestEvaluateSourceErrorKeepsState(t *testing.T) {
	src := &stubSource{slots: []programs.Slot{
		slot(0, "Morning", true, time.Monday, model.ValveCascade, "08:00", "09:00"),
	}}
	emit := &recordingEmitter{}
	s := New(src, emit, nil)

	s.Evaluate(monday(8, 30))
	require.Equal(t, Executing, s.State())

	src.err = assert.AnError
	s.Evaluate(monday(8, 45))

	assert.Equal(t, Executing, s.State())
	assert.Equal(t, []string{"timer=STOP", "valve=1", "pump=ON"}, emit.events)
}

func TestLaterCalendarDay(t *testing.T) {
	base := time.Date(2025, 6, 2, 23, 59, 0, 0, time.UTC)

	assert.False(t, laterCalendarDay(base, base))
	assert.False(t, laterCalendarDay(base.Add(-time.Hour), base))
	assert.True(t, laterCalendarDay(base.Add(time.Minute), base))
	assert.True(t, laterCalendarDay(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), base))
	assert.True(t, laterCalendarDay(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), base))
}
