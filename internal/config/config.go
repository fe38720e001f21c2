package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPortalURL is the entry page of the employee self-service portal.
const DefaultPortalURL = "https://ess.abimm.com/ABIMM_ASP/Request.aspx"

// Calendar backends.
const (
	BackendGoogle = "google"
	BackendICS    = "ics"
	BackendDryRun = "dryrun"
)

// SelectorsConfig holds the CSS selectors the navigator relies on. They
// only need overriding if the portal markup changes.
type SelectorsConfig struct {
	VenueInput     string   `yaml:"venue_input" json:"venue_input"`
	VenueSubmit    string   `yaml:"venue_submit" json:"venue_submit"`
	UsernameInput  string   `yaml:"username_input" json:"username_input"`
	PasswordInput  string   `yaml:"password_input" json:"password_input"`
	LoginButton    string   `yaml:"login_button" json:"login_button"`
	CalendarMarker string   `yaml:"calendar_marker" json:"calendar_marker"`
	ScheduleLinks  []string `yaml:"schedule_links" json:"schedule_links"`
}

// PortalConfig describes the scheduling portal and the account used on it.
type PortalConfig struct {
	URL       string          `yaml:"url" json:"url"`
	VenueID   string          `yaml:"venue_id" json:"venue_id"`
	Username  string          `yaml:"username" json:"username"`
	Password  string          `yaml:"password" json:"-"`
	Selectors SelectorsConfig `yaml:"selectors" json:"selectors"`
}

// BrowserConfig controls the Chromium instance driven by chromedp.
type BrowserConfig struct {
	Headless bool `yaml:"headless" json:"headless"`

	// ProfileDir persists cookies and login state across runs.
	ProfileDir string `yaml:"profile_dir" json:"profile_dir"`

	// ExecPath optionally points at a specific Chromium binary.
	ExecPath string `yaml:"exec_path,omitempty" json:"exec_path,omitempty"`

	// Timeouts in seconds.
	ProbeTimeoutSec   int `yaml:"probe_timeout_sec" json:"probe_timeout_sec"`
	ActionTimeoutSec  int `yaml:"action_timeout_sec" json:"action_timeout_sec"`
	CalendarWaitSec   int `yaml:"calendar_wait_sec" json:"calendar_wait_sec"`
	RunTimeoutMinutes int `yaml:"run_timeout_minutes" json:"run_timeout_minutes"`

	// DebugDir, if set, receives HTML dumps and screenshots when navigation
	// fails, and the output of the probe command.
	DebugDir string `yaml:"debug_dir,omitempty" json:"debug_dir,omitempty"`
}

// CalendarConfig selects and configures the calendar sink.
type CalendarConfig struct {
	Backend         string `yaml:"backend" json:"backend"`
	CalendarID      string `yaml:"calendar_id" json:"calendar_id"`
	Timezone        string `yaml:"timezone" json:"timezone"`
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	TokenFile       string `yaml:"token_file" json:"token_file"`
	ColorID         string `yaml:"color_id" json:"color_id"`
	ReminderMinutes int    `yaml:"reminder_minutes" json:"reminder_minutes"`
	ICSPath         string `yaml:"ics_path" json:"ics_path"`
}

// ScheduleConfig drives the daemon.
type ScheduleConfig struct {
	// Cron is a cron-style schedule. If empty it is derived from
	// IntervalHours as "@every <n>h".
	Cron          string  `yaml:"cron" json:"cron"`
	IntervalHours float64 `yaml:"interval_hours" json:"interval_hours"`
}

// LogConfig configures internal/log.
type LogConfig struct {
	File  string `yaml:"file" json:"file"`
	Level string `yaml:"level" json:"level"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the status API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration. It is built once in
// main and passed down explicitly.
type Config struct {
	Portal   PortalConfig   `yaml:"portal" json:"portal"`
	Browser  BrowserConfig  `yaml:"browser" json:"browser"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
	Log      LogConfig      `yaml:"log" json:"log"`

	// Listen is the status API address used by the daemon. Empty disables it.
	Listen string `yaml:"listen" json:"listen"`

	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultSelectors returns the selectors matching the portal's current markup.
func DefaultSelectors() SelectorsConfig {
	return SelectorsConfig{
		VenueInput:     "#input_venue",
		VenueSubmit:    "input[type='button'][value='Submit']",
		UsernameInput:  "#LoginId",
		PasswordInput:  "#PIN",
		LoginButton:    "#loginButton",
		CalendarMarker: ".calendar_day_box",
		ScheduleLinks:  []string{"My Schedule", "Schedule"},
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Portal: PortalConfig{
			URL:       DefaultPortalURL,
			Selectors: DefaultSelectors(),
		},
		Browser: BrowserConfig{
			Headless:          true,
			ProfileDir:        "./bot_profile",
			ProbeTimeoutSec:   5,
			ActionTimeoutSec:  20,
			CalendarWaitSec:   10,
			RunTimeoutMinutes: 5,
		},
		Calendar: CalendarConfig{
			Backend:         BackendGoogle,
			CalendarID:      "primary",
			Timezone:        "America/Denver",
			CredentialsFile: "credentials.json",
			TokenFile:       "token.json",
			ColorID:         "6",
			ReminderMinutes: 24 * 60,
			ICSPath:         "./shifts.ics",
		},
		Schedule: ScheduleConfig{
			IntervalHours: 24,
		},
		Log: LogConfig{
			File:  "bot.log",
			Level: "info",
		},
		Listen: "127.0.0.1:8080",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Portal.URL == "" {
		c.Portal.URL = def.Portal.URL
	}
	sel := &c.Portal.Selectors
	ds := def.Portal.Selectors
	if sel.VenueInput == "" {
		sel.VenueInput = ds.VenueInput
	}
	if sel.VenueSubmit == "" {
		sel.VenueSubmit = ds.VenueSubmit
	}
	if sel.UsernameInput == "" {
		sel.UsernameInput = ds.UsernameInput
	}
	if sel.PasswordInput == "" {
		sel.PasswordInput = ds.PasswordInput
	}
	if sel.LoginButton == "" {
		sel.LoginButton = ds.LoginButton
	}
	if sel.CalendarMarker == "" {
		sel.CalendarMarker = ds.CalendarMarker
	}
	if len(sel.ScheduleLinks) == 0 {
		sel.ScheduleLinks = ds.ScheduleLinks
	}

	if c.Browser.ProfileDir == "" {
		c.Browser.ProfileDir = def.Browser.ProfileDir
	}
	if c.Browser.ProbeTimeoutSec <= 0 {
		c.Browser.ProbeTimeoutSec = def.Browser.ProbeTimeoutSec
	}
	if c.Browser.ActionTimeoutSec <= 0 {
		c.Browser.ActionTimeoutSec = def.Browser.ActionTimeoutSec
	}
	if c.Browser.CalendarWaitSec <= 0 {
		c.Browser.CalendarWaitSec = def.Browser.CalendarWaitSec
	}
	if c.Browser.RunTimeoutMinutes <= 0 {
		c.Browser.RunTimeoutMinutes = def.Browser.RunTimeoutMinutes
	}

	switch c.Calendar.Backend {
	case BackendGoogle, BackendICS, BackendDryRun:
	default:
		c.Calendar.Backend = def.Calendar.Backend
	}
	if c.Calendar.CalendarID == "" {
		c.Calendar.CalendarID = def.Calendar.CalendarID
	}
	if c.Calendar.Timezone == "" {
		c.Calendar.Timezone = def.Calendar.Timezone
	}
	if c.Calendar.CredentialsFile == "" {
		c.Calendar.CredentialsFile = def.Calendar.CredentialsFile
	}
	if c.Calendar.TokenFile == "" {
		c.Calendar.TokenFile = def.Calendar.TokenFile
	}
	if c.Calendar.ReminderMinutes < 0 {
		c.Calendar.ReminderMinutes = 0
	}
	if c.Calendar.ICSPath == "" {
		c.Calendar.ICSPath = def.Calendar.ICSPath
	}

	if c.Schedule.IntervalHours <= 0 {
		c.Schedule.IntervalHours = def.Schedule.IntervalHours
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// CronSpec returns the schedule used by the daemon.
func (c *Config) CronSpec() string {
	if c.Schedule.Cron != "" {
		return c.Schedule.Cron
	}
	mins := int(c.Schedule.IntervalHours * 60)
	if mins <= 0 {
		mins = 24 * 60
	}
	if mins%60 == 0 {
		return fmt.Sprintf("@every %dh", mins/60)
	}
	return fmt.Sprintf("@every %dm", mins)
}

// Validate reports settings without which a sync run cannot work.
func (c *Config) Validate() error {
	var missing []string
	if c.Portal.VenueID == "" {
		missing = append(missing, "portal.venue_id (ESS_VENUE_ID)")
	}
	if c.Portal.Username == "" {
		missing = append(missing, "portal.username (ESS_USERNAME)")
	}
	if c.Portal.Password == "" {
		missing = append(missing, "portal.password (ESS_PASSWORD)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ApplyEnv overlays environment settings onto c. lookup is usually
// os.LookupEnv; it is a parameter so the overlay happens exactly once, at
// startup, and stays testable.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("ESS_VENUE_ID"); ok && v != "" {
		c.Portal.VenueID = v
	}
	if v, ok := lookup("ESS_USERNAME"); ok && v != "" {
		c.Portal.Username = v
	}
	if v, ok := lookup("ESS_PASSWORD"); ok && v != "" {
		c.Portal.Password = v
	}
	if v, ok := lookup("HEADLESS"); ok && v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: HEADLESS: %w", err)
		}
		c.Browser.Headless = b
	}
	if v, ok := lookup("SYNC_INTERVAL_HOURS"); ok && v != "" {
		h, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("config: SYNC_INTERVAL_HOURS: %w", err)
		}
		c.Schedule.IntervalHours = h
	}
	if v, ok := lookup("GOOGLE_CALENDAR_ID"); ok && v != "" {
		c.Calendar.CalendarID = v
	}
	c.Normalize()
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions, since it may hold the portal
// password.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data next to path and renames it into place with
// 0600 permissions. Parent directories are created with 0700.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".shiftsync-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
