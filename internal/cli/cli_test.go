package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftsync/internal/model"
	"shiftsync/internal/pipeline"
)

const savedPage = `<html><head><title>My Schedule</title></head><body>
<span class="MonthTitle">March 2025</span>
<table><tr>
<td class="calendar_day_box other_month_box"><div class="day_number">28</div></td>
<td class="calendar_day_box"><div class="day_number">5</div><div class="day_details"><a href="javascript:showDetails('1001')">7:00 am - 3:00 pm</a></div></td>
</tr></table>
<div id="1001evt">Front Desk</div><div id="1001fac">Main Lobby</div>
</body></html>`

// writeTestConfig writes a config that logs to stderr only and keeps the
// ics sink inside dir.
func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	yaml := "log:\n  file: \"\"\ncalendar:\n  backend: ics\n  timezone: UTC\n  ics_path: " + filepath.Join(dir, "shifts.ics") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "shiftsync "+Version+"\n", out)
}

func TestParseCommandText(t *testing.T) {
	dir := t.TempDir()
	cfg := writeTestConfig(t, dir)
	page := filepath.Join(dir, "schedule.html")
	require.NoError(t, os.WriteFile(page, []byte(savedPage), 0o600))

	out, err := execute(t, "--config", cfg, "parse", page)
	require.NoError(t, err)
	assert.Contains(t, out, "Front Desk")
	assert.Contains(t, out, "Wed Mar 5")
	assert.Contains(t, out, "7:00 am - 3:00 pm")
	assert.Contains(t, out, "Main Lobby")
	assert.Contains(t, out, "Total: 1 shifts")
}

func TestParseCommandJSON(t *testing.T) {
	dir := t.TempDir()
	cfg := writeTestConfig(t, dir)
	page := filepath.Join(dir, "schedule.html")
	require.NoError(t, os.WriteFile(page, []byte(savedPage), 0o600))

	out, err := execute(t, "--config", cfg, "parse", "--format", "json", page)
	require.NoError(t, err)

	var shifts []model.ShiftRecord
	require.NoError(t, json.Unmarshal([]byte(out), &shifts))
	require.Len(t, shifts, 1)
	assert.Equal(t, time.Date(2025, 3, 5, 7, 0, 0, 0, time.UTC), shifts[0].Start.UTC())
}

func TestParseCommandSyncToICS(t *testing.T) {
	dir := t.TempDir()
	cfg := writeTestConfig(t, dir)
	page := filepath.Join(dir, "schedule.html")
	require.NoError(t, os.WriteFile(page, []byte(savedPage), 0o600))

	out, err := execute(t, "--config", cfg, "parse", "--sync", page)
	require.NoError(t, err)
	assert.Contains(t, out, "(1 created, 0 duplicate, 0 errors)")

	out, err = execute(t, "--config", cfg, "parse", "--sync", page)
	require.NoError(t, err)
	assert.Contains(t, out, "(0 created, 1 duplicate, 0 errors)")

	data, err := os.ReadFile(filepath.Join(dir, "shifts.ics"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "BEGIN:VEVENT"))
}

func TestParseCommandErrors(t *testing.T) {
	dir := t.TempDir()
	cfg := writeTestConfig(t, dir)

	_, err := execute(t, "--config", cfg, "parse", filepath.Join(dir, "missing.html"))
	assert.Error(t, err)

	_, err = execute(t, "--config", cfg, "parse", "--format", "xml", filepath.Join(dir, "missing.html"))
	assert.ErrorContains(t, err, "invalid format")

	page := filepath.Join(dir, "blank.html")
	require.NoError(t, os.WriteFile(page, []byte("<html></html>"), 0o600))
	_, err = execute(t, "--config", cfg, "parse", page)
	assert.ErrorContains(t, err, "month header")
}

func TestRunRequiresCredentials(t *testing.T) {
	for _, k := range []string{"ESS_VENUE_ID", "ESS_USERNAME", "ESS_PASSWORD"} {
		t.Setenv(k, "")
	}
	cfg := writeTestConfig(t, t.TempDir())

	_, err := execute(t, "--config", cfg, "run", "--dry-run")
	assert.ErrorContains(t, err, "ESS_USERNAME")
}

func TestWriteReportText(t *testing.T) {
	shift := model.ShiftRecord{
		Summary:          "Night Audit",
		Start:            time.Date(2025, 3, 6, 23, 0, 0, 0, time.UTC),
		End:              time.Date(2025, 3, 7, 7, 0, 0, 0, time.UTC),
		DisplayTimeRange: "11:00 pm - 7:00 am",
	}
	rep := pipeline.Report{}
	rep.AddResults([]model.SyncResult{
		{Shift: shift, ID: shift.ID(), Status: model.StatusCreated},
		{Shift: shift, ID: shift.ID(), Status: model.StatusError, Message: "quota exceeded"},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, rep, FormatText))
	out := buf.String()
	assert.Contains(t, out, "DATE")
	assert.Contains(t, out, "Thu Mar 6")
	assert.Contains(t, out, "error: quota exceeded")
	assert.Contains(t, out, "Total: 2 shifts (1 created, 0 duplicate, 1 errors)")
}

func TestWriteReportNoShifts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, pipeline.Report{Err: "portal: schedule view not reachable"}, FormatText))
	assert.Equal(t, "No shifts found: portal: schedule view not reachable\n", buf.String())
}

func TestResolveLocationOrLocal(t *testing.T) {
	assert.Equal(t, time.Local, resolveLocationOrLocal(""))
	assert.Equal(t, time.Local, resolveLocationOrLocal("Not/AZone"))
	assert.Equal(t, "America/Denver", resolveLocationOrLocal("America/Denver").String())
}
