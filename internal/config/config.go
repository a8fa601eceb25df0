// Package config loads and validates the supervisor's JSON configuration
// document (spec.md §6): a list of per-port serial/transport parameters.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
)

const (
	DefaultBufferSize        = 10000
	DefaultReconnectInterval = 5
	DefaultSendDelay         = 5
)

// PortConfig is the immutable-for-the-engine's-lifetime configuration of one
// port, per spec.md §3.
type PortConfig struct {
	Name string `koanf:"name" validate:"required"`

	SerialPort     string  `koanf:"serial_port" validate:"required"`
	SerialBaudrate int     `koanf:"serial_baudrate" validate:"required,gt=0"`
	SerialBytesize int     `koanf:"serial_bytesize" validate:"required,oneof=5 6 7 8"`
	SerialParity   string  `koanf:"serial_parity" validate:"required,oneof=N E O"`
	SerialStopbits float64 `koanf:"serial_stopbits" validate:"required,oneof=1 1.5 2"`
	SerialTimeout  float64 `koanf:"serial_timeout" validate:"gte=0"`
	SerialXonXoff  bool    `koanf:"serial_xonxoff"`
	SerialRTSCTS   bool    `koanf:"serial_rtscts"`

	TCPHost string `koanf:"tcp_host" validate:"required"`
	TCPPort int    `koanf:"tcp_port" validate:"required,min=1,max=65535"`

	// HTTPURL, when non-empty, selects the HTTP-relay transport variant in
	// place of Direct-TCP (spec.md §4.3/§6).
	HTTPURL string `koanf:"http_url" validate:"omitempty,url"`

	BufferSize        int `koanf:"buffer_size" validate:"gte=0"`
	ReconnectInterval int `koanf:"reconnect_interval" validate:"gte=1"`
	SendDelay         int `koanf:"send_delay" validate:"gte=1"`
}

// Document is the top-level configuration document of spec.md §6.
type Document struct {
	Ports []PortConfig `koanf:"ports" validate:"required,min=1,dive"`
}

func applyDefaults(p *PortConfig) {
	if p.BufferSize == 0 {
		p.BufferSize = DefaultBufferSize
	}
	if p.ReconnectInterval == 0 {
		p.ReconnectInterval = DefaultReconnectInterval
	}
	if p.SendDelay == 0 {
		p.SendDelay = DefaultSendDelay
	}
}

// Load reads the JSON configuration document at path, applies defaults, and
// validates it. Any failure is returned as an *engine.ConfigError-compatible
// wrapped error; callers construct the ConfigError at the call site that
// knows the affected port, per spec.md §7.
func Load(path string) (*Document, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), json.Parser()); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var doc Document
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	for i := range doc.Ports {
		applyDefaults(&doc.Ports[i])
	}

	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

var validate = validator.New()

// Validate checks a decoded document against the schema constraints of
// spec.md §6, also catching duplicate port names which koanf cannot express
// as a struct tag.
func Validate(doc *Document) error {
	if err := validate.Struct(doc); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	seen := make(map[string]bool, len(doc.Ports))
	for _, p := range doc.Ports {
		if seen[p.Name] {
			return fmt.Errorf("invalid configuration: duplicate port name %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}
