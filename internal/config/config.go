// Package config loads and validates the pulsekey schedule configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pulsekey/pulsekey/internal/keymap"
	"github.com/spf13/viper"
)

// Defaults applied when the config file omits a field.
const (
	DefaultMaxRetries  = 10
	DefaultPauseHotkey = "ctrl+alt+r"
)

// Duration wraps time.Duration with the permissive encoding used in config
// files: "500ms", "1s", "2m", or a bare integer meaning milliseconds.
type Duration struct {
	time.Duration
}

// ParseDuration parses a config duration string. Matching is
// case-insensitive and surrounding whitespace is ignored. Negative
// durations are rejected.
func ParseDuration(value string) (time.Duration, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return 0, fmt.Errorf("invalid duration '%s': empty value", value)
	}

	// Bare integers are milliseconds.
	if ms, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("invalid duration '%s': must not be negative", value)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}

	dur, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid duration '%s': %w", value, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("invalid duration '%s': must not be negative", value)
	}
	return dur, nil
}

// UnmarshalJSON accepts both string durations and bare millisecond numbers.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		parsed, err := ParseDuration(asString)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	}

	var asNumber int64
	if err := json.Unmarshal(data, &asNumber); err != nil {
		return fmt.Errorf("invalid duration %s", string(data))
	}
	if asNumber < 0 {
		return fmt.Errorf("invalid duration '%d': must not be negative", asNumber)
	}
	d.Duration = time.Duration(asNumber) * time.Millisecond
	return nil
}

// MarshalJSON writes the duration in Go notation ("500ms", "1.5s").
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

// KeyAction is one step of the ordered key sequence: press Key, then wait
// IntervalAfter before the next step.
type KeyAction struct {
	Key           string   `json:"key" mapstructure:"key"`
	IntervalAfter Duration `json:"interval_after" mapstructure:"interval_after"`
}

// IndependentKey is a key pressed repeatedly every Interval, decoupled from
// the sequence and from other independent keys.
type IndependentKey struct {
	Key      string   `json:"key" mapstructure:"key"`
	Interval Duration `json:"interval" mapstructure:"interval"`
}

// Config is the full schedule configuration. Immutable once loaded.
type Config struct {
	ProcessName     string           `json:"process_name" mapstructure:"process_name"`
	KeySequence     []KeyAction      `json:"key_sequence" mapstructure:"key_sequence"`
	IndependentKeys []IndependentKey `json:"independent_keys" mapstructure:"independent_keys"`
	MaxRetries      int              `json:"max_retries" mapstructure:"max_retries"`
	PauseHotkey     string           `json:"pause_hotkey" mapstructure:"pause_hotkey"`
	Verbose         bool             `json:"verbose" mapstructure:"verbose"`
	LoopSequence    bool             `json:"loop_sequence" mapstructure:"loop_sequence"`
	RepeatCount     int              `json:"repeat_count" mapstructure:"repeat_count"`
	RestoreFocus    bool             `json:"restore_focus" mapstructure:"restore_focus"`
}

// Default returns a config with documented defaults and no keys configured.
func Default() Config {
	return Config{
		MaxRetries:   DefaultMaxRetries,
		PauseHotkey:  DefaultPauseHotkey,
		LoopSequence: true,
		RestoreFocus: true,
	}
}

// Load reads a config file, applying defaults for omitted fields and
// PULSEKEY_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("PULSEKEY")
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("max_retries", defaults.MaxRetries)
	v.SetDefault("pause_hotkey", defaults.PauseHotkey)
	v.SetDefault("loop_sequence", defaults.LoopSequence)
	v.SetDefault("repeat_count", 0)
	v.SetDefault("restore_focus", defaults.RestoreFocus)
	v.SetDefault("verbose", false)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to load config from '%s': %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to load config from '%s': %w", path, err)
	}

	return &cfg, nil
}

// Save writes the config as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to save config to '%s': %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to save config to '%s': %w", path, err)
	}
	return nil
}

// Validate checks the invariants required before a run can start. Key
// tokens are resolved here so invalid keys fail at startup, not mid-run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ProcessName) == "" {
		return fmt.Errorf("configuration error: process_name cannot be empty")
	}
	if len(c.KeySequence) == 0 && len(c.IndependentKeys) == 0 {
		return fmt.Errorf("configuration error: at least one of key_sequence or independent_keys must be set")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("configuration error: max_retries must be greater than zero")
	}
	if c.RepeatCount < 0 {
		return fmt.Errorf("configuration error: repeat_count must not be negative")
	}

	for i, action := range c.KeySequence {
		if _, err := keymap.Resolve(action.Key); err != nil {
			return fmt.Errorf("configuration error: key_sequence[%d]: %w", i, err)
		}
		if action.IntervalAfter.Duration < 0 {
			return fmt.Errorf("configuration error: key_sequence[%d]: interval_after must not be negative", i)
		}
	}
	for i, ik := range c.IndependentKeys {
		if _, err := keymap.Resolve(ik.Key); err != nil {
			return fmt.Errorf("configuration error: independent_keys[%d]: %w", i, err)
		}
		if ik.Interval.Duration <= 0 {
			return fmt.Errorf("configuration error: independent_keys[%d]: interval must be greater than zero", i)
		}
	}

	if strings.TrimSpace(c.PauseHotkey) != "" {
		if _, err := keymap.Resolve(c.PauseHotkey); err != nil {
			return fmt.Errorf("configuration error: pause_hotkey: %w", err)
		}
	}

	return nil
}

// durationDecodeHook converts config file strings and numbers into
// Duration values during viper unmarshalling.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	durationType := reflect.TypeOf(Duration{})
	return func(from, to reflect.Type, data any) (any, error) {
		if to != durationType {
			return data, nil
		}
		switch value := data.(type) {
		case string:
			parsed, err := ParseDuration(value)
			if err != nil {
				return nil, err
			}
			return Duration{parsed}, nil
		case int:
			return millis(int64(value))
		case int64:
			return millis(value)
		case float64:
			return millis(int64(value))
		default:
			return data, nil
		}
	}
}

func millis(ms int64) (Duration, error) {
	if ms < 0 {
		return Duration{}, fmt.Errorf("invalid duration '%d': must not be negative", ms)
	}
	return Duration{time.Duration(ms) * time.Millisecond}, nil
}
