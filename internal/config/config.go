// Package config loads the local negotiation parameters a session is
// started with: the fields the caller fixes before negotiation begins,
// as opposed to the Params the two peers actually exchange on the wire
// (internal/proto). Mirrors the teacher's config.go: a YAML-tagged
// struct, a LoadConfig(filename) that applies defaults after unmarshal,
// and a Validate() that rejects values the wire layer can't represent.
package config

import (
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cwsl/netjack/internal/proto"
)

// Config is the local configuration for one endpoint of a session,
// before negotiation. Network.Master decides who sends Params first (§4.2).
type Config struct {
	Network NetworkConfig `yaml:"network"`
	Audio   AudioConfig   `yaml:"audio"`
	MIDI    MIDIConfig    `yaml:"midi"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`

	// SessionID is an internal, off-wire correlation id minted locally
	// for this negotiated session (never part of the §6 wire layout).
	// It ties together this endpoint's log lines and metrics labels
	// across a session's lifetime, the way the teacher's Session.ID
	// lets a log line be traced back to the session that produced it.
	// Never populated from YAML — always generated in defaults().
	SessionID uuid.UUID `yaml:"-"`
}

// NetworkConfig carries the transport-facing parameters.
type NetworkConfig struct {
	ListenAddr     string `yaml:"listen_addr"`     // e.g. ":19000", for a slave
	DialAddr       string `yaml:"dial_addr"`       // e.g. "10.0.0.5:19000", for a master
	MTU            int    `yaml:"mtu"`             // §4.1, default 1500
	Master         bool   `yaml:"master"`          // this endpoint negotiates as master (§4.2)
	NetworkLatency int    `yaml:"network_latency"` // cycles of jitter buffer, §4.1
}

// AudioConfig selects the audio port geometry and encoder.
type AudioConfig struct {
	SampleRate       int               `yaml:"sample_rate"`
	PeriodSize       int               `yaml:"period_size"`
	CaptureChannels  int               `yaml:"capture_channels"`
	PlaybackChannels int               `yaml:"playback_channels"`
	Encoder          proto.EncoderKind `yaml:"encoder"`
	Optimized        bool              `yaml:"optimized"` // dense vs. optimized port-list framing, §4.4
	CeltBitrateKbps  int               `yaml:"celt_bitrate_kbps"`
}

// MIDIConfig bounds the MIDI cycle buffer (§4.3).
type MIDIConfig struct {
	CapturePorts  int `yaml:"capture_ports"`
	PlaybackPorts int `yaml:"playback_ports"`
	PortMaxBytes  int `yaml:"port_max_bytes"` // per-port MIDI byte budget per cycle
}

// LoggingConfig holds the logging settings read from the config file (see
// SPEC_FULL.md: ambient stack, logging). NewLogger does not read them; it
// returns a standard-library *log.Logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
}

// MetricsConfig controls whether the Prometheus collectors in
// internal/metrics are registered (§ ambient stack).
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // e.g. ":9090"
}

// defaults mirrors the teacher's "set defaults if not specified" block
// in LoadConfig: zero-valued YAML fields are filled in after unmarshal,
// not before, so an explicit zero in the file can never be
// distinguished from an absent field here either (same tradeoff the
// teacher accepts).
func (c *Config) defaults() {
	if c.Network.MTU == 0 {
		c.Network.MTU = 1500
	}
	if c.Network.NetworkLatency == 0 {
		c.Network.NetworkLatency = 2
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 48000
	}
	if c.Audio.PeriodSize == 0 {
		c.Audio.PeriodSize = 1024
	}
	if c.Audio.CeltBitrateKbps == 0 {
		c.Audio.CeltBitrateKbps = 64
	}
	if c.MIDI.PortMaxBytes == 0 {
		c.MIDI.PortMaxBytes = 4096
	}
	if c.SessionID == uuid.Nil {
		c.SessionID = uuid.New()
	}
}

// NewLogger returns a *log.Logger prefixed with this session's
// correlation id, mirroring the teacher's per-session log prefixing
// off Session.ID.
func (c *Config) NewLogger() *log.Logger {
	return log.New(log.Writer(), fmt.Sprintf("[session %s] ", c.SessionID), log.LstdFlags)
}

// LoadConfig reads and parses filename, applying defaults and then
// validating the result.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("netjack: read config file: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("netjack: parse config file: %w", err)
	}
	c.defaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects a configuration that would produce Params the wire
// layer refuses (§6, §7 ProtocolMismatch and malformed-packet policy).
func (c *Config) Validate() error {
	if c.Network.MTU <= proto.HeaderWireSize {
		return fmt.Errorf("netjack: mtu %d too small for header (%d bytes)", c.Network.MTU, proto.HeaderWireSize)
	}
	if c.Network.Master && c.Network.DialAddr == "" {
		return fmt.Errorf("netjack: master role requires network.dial_addr")
	}
	if !c.Network.Master && c.Network.ListenAddr == "" {
		return fmt.Errorf("netjack: slave role requires network.listen_addr")
	}
	if c.Audio.CaptureChannels < 0 || c.Audio.PlaybackChannels < 0 {
		return fmt.Errorf("netjack: negative channel count")
	}
	if c.Audio.PeriodSize <= 0 || c.Audio.PeriodSize&(c.Audio.PeriodSize-1) != 0 {
		return fmt.Errorf("netjack: period_size %d must be a positive power of two", c.Audio.PeriodSize)
	}
	if c.MIDI.CapturePorts < 0 || c.MIDI.PlaybackPorts < 0 {
		return fmt.Errorf("netjack: negative midi port count")
	}
	switch c.Audio.Encoder {
	case proto.EncoderFloat, proto.EncoderInt, proto.EncoderCelt:
	default:
		return fmt.Errorf("netjack: unknown encoder %q", c.Audio.Encoder)
	}
	return nil
}

// ToParams builds the session Params this endpoint will offer during
// negotiation (§4.2) from the local configuration. The caller fills in
// SlaveName/MasterHost/SlaveHost/PacketID/SlaveID, which belong to the
// negotiation handshake rather than to static local config.
func (c *Config) ToParams() proto.Params {
	return proto.Params{
		Version:             proto.ProtocolVersion,
		MTU:                 uint32(c.Network.MTU),
		SendAudioChannels:   int32(c.Audio.CaptureChannels),
		ReturnAudioChannels: int32(c.Audio.PlaybackChannels),
		SendMIDIChannels:    int32(c.MIDI.CapturePorts),
		ReturnMIDIChannels:  int32(c.MIDI.PlaybackPorts),
		SampleRate:          uint32(c.Audio.SampleRate),
		PeriodSize:          uint32(c.Audio.PeriodSize),
		Encoder:             c.Audio.Encoder,
		KBps:                uint32(c.Audio.CeltBitrateKbps),
		NetworkLatency:      uint32(c.Network.NetworkLatency),
	}
}
