// Package config loads the device configuration once at startup.
//
// The file is YAML. Durations accept ISO-8601 ("PT6H"), Go duration strings
// ("250ms") or bare integers meaning seconds.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/sosodev/duration"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/duty-cycler/internal/gpio"
)

// Config is the full device configuration.
type Config struct {
	// Countdown with light and buzzer before an automatic run.
	PreStartDelay Duration `yaml:"pre_start_delay"`
	// Idle time after a run before the next automatic countdown.
	RestartInterval Duration `yaml:"restart_interval"`
	// Run length for automatic starts and short-click starts.
	AutoRunDuration Duration `yaml:"auto_run_duration"`
	// Run length for long-click starts.
	ManualRunDuration Duration `yaml:"manual_run_duration"`

	MotorSpeed uint8        `yaml:"motor_speed"`
	Button     ButtonConfig `yaml:"button"`
	Chip       string       `yaml:"chip"`
	Pins       Pins         `yaml:"pins"`
	Poll       Duration     `yaml:"poll"`

	MQTT MQTTConfig `yaml:"mqtt"`
	HTTP HTTPConfig `yaml:"http"`
}

// ButtonConfig holds the press classification thresholds.
type ButtonConfig struct {
	Debounce Duration `yaml:"debounce"`
	Long     Duration `yaml:"long"`
}

// Pins are line offsets on the configured chip (BCM numbering on a Pi).
type Pins struct {
	MotorL1     int `yaml:"motor_l1"`
	MotorL2     int `yaml:"motor_l2"`
	MotorEnable int `yaml:"motor_enable"`
	Button      int `yaml:"button"`
	Buzzer      int `yaml:"buzzer"`
	LED         int `yaml:"led"`
}

// MQTTConfig configures the telemetry publisher. An empty broker disables it.
type MQTTConfig struct {
	Broker    string   `yaml:"broker"`
	Heartbeat Duration `yaml:"heartbeat"`
}

// HTTPConfig configures the status server. An empty address disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the stock configuration: 15s countdown, restart every 6h,
// 4 min automatic runs and 8 min manual runs.
func Default() Config {
	return Config{
		PreStartDelay:     Seconds(15),
		RestartInterval:   Seconds(6 * 60 * 60),
		AutoRunDuration:   Seconds(4 * 60),
		ManualRunDuration: Seconds(8 * 60),
		MotorSpeed:        100,
		Button: ButtonConfig{
			Debounce: Duration(50 * time.Millisecond),
			Long:     Duration(500 * time.Millisecond),
		},
		Chip: gpio.DefaultChip,
		Pins: Pins{
			MotorL1:     gpio.DefaultPinMotorL1,
			MotorL2:     gpio.DefaultPinMotorL2,
			MotorEnable: gpio.DefaultPinMotorEn,
			Button:      gpio.DefaultPinButton,
			Buzzer:      gpio.DefaultPinBuzzer,
			LED:         gpio.DefaultPinLED,
		},
		Poll: Duration(5 * time.Millisecond),
		MQTT: MQTTConfig{
			Heartbeat: Duration(15 * time.Minute),
		},
		HTTP: HTTPConfig{Addr: ":80"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err = Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	cfg.clampDurations()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// clampDurations turns negative durations into zero, which disables the
// feature they control.
func (c *Config) clampDurations() {
	for name, d := range map[string]*Duration{
		"pre_start_delay":     &c.PreStartDelay,
		"restart_interval":    &c.RestartInterval,
		"auto_run_duration":   &c.AutoRunDuration,
		"manual_run_duration": &c.ManualRunDuration,
		"mqtt.heartbeat":      &c.MQTT.Heartbeat,
	} {
		if *d < 0 {
			slog.Warn("negative duration disabled", "field", name, "value", time.Duration(*d))
			*d = 0
		}
	}
}

// MaxTimerDuration is the longest duration a tick-clock timer can measure.
// Elapsed time is computed modulo 2^32 ms, so a deadline must stay within
// half the clock range or a late tick can step over it.
const MaxTimerDuration = Duration(math.MaxUint32 / 2 * time.Millisecond)

// maxRestartInterval bounds the restart countdown, which is kept in seconds.
const maxRestartInterval = Duration(math.MaxUint32 * time.Second)

// Validate reports settings the device cannot run with.
func (c Config) Validate() error {
	var errs []error

	for _, f := range []struct {
		name string
		d    Duration
	}{
		{"pre_start_delay", c.PreStartDelay},
		{"auto_run_duration", c.AutoRunDuration},
		{"manual_run_duration", c.ManualRunDuration},
		{"button.long", c.Button.Long},
	} {
		if f.d > MaxTimerDuration {
			errs = append(errs, fmt.Errorf("%s %v exceeds the %v timer limit",
				f.name, f.d.Std(), MaxTimerDuration.Std()))
		}
	}
	if c.RestartInterval > maxRestartInterval {
		errs = append(errs, fmt.Errorf("restart_interval %v exceeds %v",
			c.RestartInterval.Std(), maxRestartInterval.Std()))
	}

	if c.Poll <= 0 {
		errs = append(errs, errors.New("poll must be positive"))
	}
	if c.Button.Debounce < 0 || c.Button.Long <= c.Button.Debounce {
		errs = append(errs, fmt.Errorf("button thresholds must satisfy 0 <= debounce < long, got %v/%v",
			time.Duration(c.Button.Debounce), time.Duration(c.Button.Long)))
	}
	if c.Chip == "" {
		errs = append(errs, errors.New("chip must be set"))
	}

	seen := map[int]string{}
	for name, pin := range c.Pins.byName() {
		if pin < 0 {
			errs = append(errs, fmt.Errorf("pin %s: negative offset %d", name, pin))
			continue
		}
		if other, ok := seen[pin]; ok {
			errs = append(errs, fmt.Errorf("pin %s: offset %d already used by %s", name, pin, other))
			continue
		}
		seen[pin] = name
	}

	return errors.Join(errs...)
}

func (p Pins) byName() map[string]int {
	return map[string]int{
		"motor_l1":     p.MotorL1,
		"motor_l2":     p.MotorL2,
		"motor_enable": p.MotorEnable,
		"button":       p.Button,
		"buzzer":       p.Buzzer,
		"led":          p.LED,
	}
}

// Marshal encodes the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Duration is a time.Duration with lenient YAML decoding.
type Duration time.Duration

// Seconds returns a Duration of n seconds.
func Seconds(n int64) Duration {
	return Duration(time.Duration(n) * time.Second)
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Millis returns the value in milliseconds for the tick clock, saturating
// at the largest representable value. Negative values return 0.
func (d Duration) Millis() uint32 {
	ms := time.Duration(d).Milliseconds()
	switch {
	case ms <= 0:
		return 0
	case ms > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(ms)
	}
}

// Secs returns the value in whole seconds, saturating like Millis.
func (d Duration) Secs() uint32 {
	s := time.Duration(d) / time.Second
	switch {
	case s <= 0:
		return 0
	case s > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(s)
	}
}

// UnmarshalYAML accepts integers (seconds), ISO-8601 and Go duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}

	if value.Tag == "!!int" {
		var n int64
		if err := value.Decode(&n); err != nil {
			return err
		}
		*d = Seconds(n)
		return nil
	}

	parsed, err := ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = parsed
	return nil
}

// MarshalYAML writes the value as ISO-8601.
func (d Duration) MarshalYAML() (any, error) {
	return duration.Format(time.Duration(d)), nil
}

// ParseDuration parses an ISO-8601 or Go duration string.
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}

	if strings.HasPrefix(s, "P") || strings.HasPrefix(s, "-P") {
		iso, err := duration.Parse(s)
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", s, err)
		}
		return Duration(iso.ToTimeDuration()), nil
	}

	std, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return Duration(std), nil
}
