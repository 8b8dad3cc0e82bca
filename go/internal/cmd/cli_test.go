package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/pasapalabra/go/internal/events"
)

type cliHarness struct {
	t    *testing.T
	args []string
}

func newHarness(t *testing.T) *cliHarness {
	t.Helper()
	t.Chdir(t.TempDir())
	return &cliHarness{
		t:    t,
		args: []string{"--medium", "file", "--data-dir", filepath.Join(t.TempDir(), "data"), "--log-level", "warn"},
	}
}

func (h *cliHarness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), append(append([]string{}, h.args...), args...), &out, strings.NewReader(stdin))
	return out.String(), err
}

func (h *cliHarness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run("", args...)
	require.NoError(h.t, err, "pasapalabra %s", strings.Join(args, " "))
	return out
}

func TestGameLifecycle(t *testing.T) {
	h := newHarness(t)

	id := strings.TrimSpace(h.mustRun("create", "Ronda final", "--time-limit", "120"))
	require.NotEmpty(t, id)

	h.mustRun("letter", "a", "correct")
	assert.Equal(t, "Ñ incorrect (score 5)\n", h.mustRun("letter", "ñ", "incorrect"))
	assert.Equal(t, "5\n", h.mustRun("score"))
	assert.Equal(t, "Ronda final is active\n", h.mustRun("start", "-g", id[:8]))

	list := h.mustRun("list", "--active")
	assert.Contains(t, list, "Ronda final")
	assert.Contains(t, list, "02:00")

	h.mustRun("player", "Ana")
	show := h.mustRun("show")
	assert.Contains(t, show, "player:  Ana")
	assert.Contains(t, show, "A✓ B·")
	assert.Contains(t, show, "Ñ✗")

	_, err := h.run("", "letter", "ç", "correct")
	assert.Error(t, err)

	assert.Contains(t, h.mustRun("delete", "-g", id), "deleted "+id)
	assert.NotContains(t, h.mustRun("list"), id)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "create", "ab", "--time-limit", "30")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Game name must have at least 3 characters")
	assert.Contains(t, err.Error(), "Time limit must be at least 1 minute (60 seconds)")
}

func TestSettingsExportImportAndClear(t *testing.T) {
	h := newHarness(t)
	h.mustRun("create", "Ronda")
	h.mustRun("letter", "z", "correct")

	assert.Contains(t, h.mustRun("settings"), "time limit:  300s")
	assert.Contains(t, h.mustRun("settings", "set", "--correct", "20"), "correct:     +20")
	assert.Equal(t, "20\n", h.mustRun("score"))

	file := filepath.Join(t.TempDir(), "backup.json")
	h.mustRun("export", "-o", file)

	_, err := h.run("", "clear")
	require.Error(t, err)
	assert.Equal(t, "cleared\n", h.mustRun("clear", "--force"))
	_, err = h.run("", "score")
	require.Error(t, err)

	assert.Equal(t, "imported 1 games\n", h.mustRun("import", file))
	assert.Equal(t, "20\n", h.mustRun("score"))

	assert.Contains(t, h.mustRun("settings", "reset"), "correct:     +10")
	assert.Equal(t, "10\n", h.mustRun("score"))
}

func TestPlayRecordsLettersAndPausesOnQuit(t *testing.T) {
	h := newHarness(t)
	h.mustRun("create", "Ronda", "--time-limit", "60")

	out, err := h.run("b c\nx p\nwhat\nquit\n", "play")
	require.NoError(t, err)
	assert.Contains(t, out, "B correct, score 10")
	assert.Contains(t, out, "X pasapalabra, score 10")
	assert.Contains(t, out, "error:")

	show := h.mustRun("show")
	assert.Contains(t, show, "status:  paused")
	assert.Contains(t, show, "B✓")
	assert.Contains(t, show, "X↻")
}

func TestFormatEvent(t *testing.T) {
	e := events.Event{
		Type:      events.EventTypeTimerTick,
		GameID:    "g1",
		Data:      []byte(`{"currentTime":42}`),
		Timestamp: time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local).UnixMilli(),
	}
	assert.Equal(t, `10:00:00 timer_tick     game=g1 {"currentTime":42}`, formatEvent(e))
}
