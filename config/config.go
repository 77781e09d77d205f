// Package config loads keyboard half layouts from YAML.
//
// A layout names the ADC in use and lists the scan backends of the half.
// Loading fills unset fields with defaults and validates every backend so
// the keyboard package can build them without further checks.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ykb/core"
	"ykb/kscan"
	"ykb/mux"
)

// Backend kinds.
const (
	KindChannels = "channels"
	KindEnables  = "enables"
	KindMuxes    = "muxes"
)

// ADC drivers.
const (
	ADCInternal = "internal" // MCU ADC
	ADCMCP3008  = "mcp3008"  // 10-bit SPI ADC
	ADCADS1115  = "ads1115"  // 16-bit I2C ADC (Linux hosts)
	ADCSim      = "sim"      // simulated
)

// Defaults applied by Load.
const (
	DefaultName             = "ykb"
	DefaultLogLevel         = "info"
	DefaultQueueSize        = 64
	DefaultSettle           = kscan.DefaultSettle
	DefaultThreshold uint16 = 512
	DefaultADS1115Addr      = 0x48
)

// Layout is one keyboard half.
type Layout struct {
	Name     string    `yaml:"name"`
	LogLevel string    `yaml:"log_level"`
	ADC      ADC       `yaml:"adc"`
	Events   Events    `yaml:"events"`
	Scanners []Scanner `yaml:"scanners"`
}

// ADC selects and parameterizes the converter behind all channels.
type ADC struct {
	Driver  string `yaml:"driver"`
	I2CBus  string `yaml:"i2c_bus"`  // ads1115; empty means the first bus
	I2CAddr uint16 `yaml:"i2c_addr"` // ads1115
	CSPin   uint32 `yaml:"cs_pin"`   // mcp3008
}

// Events configures the key event queue.
type Events struct {
	QueueSize int `yaml:"queue_size"`
}

// Scanner describes one scan backend. Which fields apply depends on Kind.
type Scanner struct {
	Name      string         `yaml:"name"`
	Kind      string         `yaml:"kind"`
	IdxOffset uint16         `yaml:"idx_offset"`
	Settle    *time.Duration `yaml:"settle"`

	// Thresholds lists one threshold per key. When empty every key gets
	// DefaultThreshold.
	Thresholds       []uint16 `yaml:"thresholds"`
	DefaultThreshold uint16   `yaml:"default_threshold"`

	// channels
	Channels []core.ADCChannelID `yaml:"channels,omitempty"`

	// enables
	Channel core.ADCChannelID `yaml:"channel"`
	Enables []core.GPIOLine   `yaml:"enables,omitempty"`

	// muxes
	Legs []Leg `yaml:"legs,omitempty"`
}

// Leg is one mux feeding one ADC channel.
type Leg struct {
	Channel core.ADCChannelID `yaml:"channel"`
	Mux     Mux               `yaml:"mux"`
}

// Mux mirrors mux.Config.
type Mux struct {
	Name        string          `yaml:"name"`
	Select      []core.GPIOLine `yaml:"select"`
	Enable      *core.GPIOLine  `yaml:"enable,omitempty"`
	IdleChannel *uint16         `yaml:"idle_channel,omitempty"`
	Channels    uint16          `yaml:"channels,omitempty"`
	ChannelMap  []uint32        `yaml:"channel_map,omitempty"`
	Settle      *time.Duration  `yaml:"settle"`
}

// Config converts to the mux package configuration.
func (m Mux) Config() mux.Config {
	cfg := mux.Config{
		Name:        m.Name,
		Select:      m.Select,
		Enable:      m.Enable,
		IdleChannel: m.IdleChannel,
		Channels:    m.Channels,
		ChannelMap:  m.ChannelMap,
		Settle:      mux.DefaultSettle,
	}
	if m.Settle != nil {
		cfg.Settle = *m.Settle
	}
	return cfg
}

// ChannelAmount returns the number of logical channels of the mux.
func (m Mux) ChannelAmount() int {
	if m.Channels != 0 {
		return int(m.Channels)
	}
	return 1 << len(m.Select)
}

// KeyAmount returns how many keys the scanner covers.
func (s Scanner) KeyAmount() int {
	switch s.Kind {
	case KindChannels:
		return len(s.Channels)
	case KindEnables:
		return len(s.Enables)
	case KindMuxes:
		n := 0
		for _, leg := range s.Legs {
			n += leg.Mux.ChannelAmount()
		}
		return n
	}
	return 0
}

// SettleDuration returns the configured settle interval.
func (s Scanner) SettleDuration() time.Duration {
	if s.Settle == nil {
		return DefaultSettle
	}
	return *s.Settle
}

// Level parses LogLevel.
func (l *Layout) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q: %w", l.LogLevel, core.ErrConfigurationMismatch)
	}
	return lvl, nil
}

// Load parses a YAML layout, applies defaults and validates it.
func Load(data []byte) (*Layout, error) {
	var layout Layout
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	applyDefaults(&layout)

	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &layout, nil
}

// LoadFile reads and parses a layout file.
func LoadFile(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	layout, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return layout, nil
}

// Marshal renders the layout back to YAML.
func (l *Layout) Marshal() ([]byte, error) {
	return yaml.Marshal(l)
}

// applyDefaults fills in missing configuration values
func applyDefaults(l *Layout) {
	if l.Name == "" {
		l.Name = DefaultName
	}
	if l.LogLevel == "" {
		l.LogLevel = DefaultLogLevel
	}

	if l.ADC.Driver == "" {
		l.ADC.Driver = ADCInternal
	}
	if l.ADC.Driver == ADCADS1115 && l.ADC.I2CAddr == 0 {
		l.ADC.I2CAddr = DefaultADS1115Addr
	}

	if l.Events.QueueSize == 0 {
		l.Events.QueueSize = DefaultQueueSize
	}

	for i := range l.Scanners {
		s := &l.Scanners[i]
		if s.Name == "" {
			s.Name = fmt.Sprintf("%s%d", s.Kind, i)
		}
		if s.Settle == nil {
			d := DefaultSettle
			s.Settle = &d
		}
		if s.DefaultThreshold == 0 {
			s.DefaultThreshold = DefaultThreshold
		}
		if len(s.Thresholds) == 0 {
			n := s.KeyAmount()
			s.Thresholds = make([]uint16, n)
			for k := range s.Thresholds {
				s.Thresholds[k] = s.DefaultThreshold
			}
		}
		for j := range s.Legs {
			m := &s.Legs[j].Mux
			if m.Name == "" {
				m.Name = fmt.Sprintf("%s/mux%d", s.Name, j)
			}
			if m.Settle == nil {
				d := mux.DefaultSettle
				m.Settle = &d
			}
		}
	}
}

// Validate checks the layout. Every error wraps core.ErrConfigurationMismatch.
func (l *Layout) Validate() error {
	switch l.ADC.Driver {
	case ADCInternal, ADCMCP3008, ADCADS1115, ADCSim:
	default:
		return mismatch("unknown adc driver %q", l.ADC.Driver)
	}
	if _, err := l.Level(); err != nil {
		return err
	}
	if l.Events.QueueSize < 0 {
		return mismatch("events.queue_size %d is negative", l.Events.QueueSize)
	}
	if len(l.Scanners) == 0 {
		return mismatch("no scanners")
	}

	names := make(map[string]bool, len(l.Scanners))
	for i := range l.Scanners {
		s := &l.Scanners[i]
		if names[s.Name] {
			return mismatch("duplicate scanner name %q", s.Name)
		}
		names[s.Name] = true
		if err := s.validate(); err != nil {
			return fmt.Errorf("scanner %q: %w", s.Name, err)
		}
	}
	return nil
}

func (s *Scanner) validate() error {
	switch s.Kind {
	case KindChannels:
		if len(s.Channels) == 0 {
			return mismatch("no channels")
		}
	case KindEnables:
		if len(s.Enables) == 0 {
			return mismatch("no enable lines")
		}
	case KindMuxes:
		if len(s.Legs) == 0 {
			return mismatch("no mux legs")
		}
		for j, leg := range s.Legs {
			if n := len(leg.Mux.Select); n == 0 || n > mux.MaxSelectLines {
				return mismatch("leg %d: %d select lines (want 1..%d)", j, n, mux.MaxSelectLines)
			}
		}
	default:
		return mismatch("unknown kind %q", s.Kind)
	}

	keys := s.KeyAmount()
	if len(s.Thresholds) != keys {
		return mismatch("%d thresholds for %d keys", len(s.Thresholds), keys)
	}
	if int(s.IdxOffset)+keys > 0x10000 {
		return mismatch("idx_offset %d plus %d keys overflows the key index", s.IdxOffset, keys)
	}
	for k, th := range s.Thresholds {
		if th < 1 || th > uint16(core.ADCMax) {
			return mismatch("threshold %d of key %d out of range 1..%d", th, k, core.ADCMax)
		}
	}
	if s.SettleDuration() < 0 {
		return mismatch("negative settle %s", s.SettleDuration())
	}
	return nil
}

func mismatch(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, core.ErrConfigurationMismatch)...)
}
