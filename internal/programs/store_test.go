package programs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/pool-controller/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleProgram(name string) model.Program {
	return model.Program{
		Name:    name,
		Enabled: true,
		Schedule: map[time.Weekday]model.DaySchedule{
			time.Monday:   {Mode: model.ValveCascade, Start: "08:00", Stop: "09:00"},
			time.Thursday: {Mode: model.ValveEjectors, Start: "18:30", Stop: "20:00"},
		},
	}
}

func TestSaveAndGet(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Save(0, sampleProgram("Morning")))

	got, err := store.Get(0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Morning", got.Name)
	assert.True(t, got.Enabled)
	assert.Equal(t, "08:00", got.Schedule[time.Monday].Start)
	assert.Equal(t, model.ValveEjectors, got.Schedule[time.Thursday].Mode)
}

func TestGetEmptySlot(t *testing.T) {
	store := openTestStore(t)

	got, err := store.Get(1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveReplacesExisting(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Save(0, sampleProgram("Morning")))

	replacement := sampleProgram("Evening")
	replacement.Enabled = false
	require.NoError(t, store.Save(0, replacement))

	got, err := store.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "Evening", got.Name)
	assert.False(t, got.Enabled)
}

func TestSaveValidation(t *testing.T) {
	store := openTestStore(t)

	assert.Error(t, store.Save(-1, sampleProgram("Bad")))
	assert.Error(t, store.Save(model.MaxProgramSlots, sampleProgram("Bad")))
	assert.Error(t, store.Save(0, model.Program{}))
}

func TestListOrdersBySlot(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Save(2, sampleProgram("Third")))
	require.NoError(t, store.Save(0, sampleProgram("First")))

	slots, err := store.List()
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, 0, slots[0].Slot)
	assert.Equal(t, "First", slots[0].Name)
	assert.Equal(t, 2, slots[1].Slot)
	assert.Equal(t, "Third", slots[1].Name)
}

func TestSetEnabled(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Save(0, sampleProgram("Morning")))

	require.NoError(t, store.SetEnabled(0, false))
	got, err := store.Get(0)
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	assert.Error(t, store.SetEnabled(1, true))
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Save(0, sampleProgram("Morning")))

	require.NoError(t, store.Delete(0))
	got, err := store.Get(0)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting an empty slot is not an error.
	require.NoError(t, store.Delete(2))
}
