// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the radio and MQTT configuration files.
//
// Values are resolved in order: built-in defaults, the YAML file, then
// RFBRIDGE_* environment variables. Unknown keys are rejected, and required
// keys must be set in the file or by their environment variable. Defaults
// only fill optional keys.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/Thermoquad/rfbridge/pkg/mqttbus"
	"github.com/Thermoquad/rfbridge/pkg/pipes"
	"github.com/Thermoquad/rfbridge/pkg/radio"
)

// Environment overrides
const (
	EnvMQTTHost     = "RFBRIDGE_MQTT_HOST"
	EnvMQTTPort     = "RFBRIDGE_MQTT_PORT"
	EnvMQTTUser     = "RFBRIDGE_MQTT_USER"
	EnvMQTTPassword = "RFBRIDGE_MQTT_PASSWORD"
	EnvLinkPort     = "RFBRIDGE_LINK_PORT"
	EnvLinkURL      = "RFBRIDGE_LINK_URL"
)

// Error reports a configuration file that cannot be used
type Error struct {
	File string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.File, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// MissingKeysError lists required keys absent from a file, as dotted paths
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return "missing required keys: " + strings.Join(e.Keys, ", ")
}

var (
	radioRequired = []string{
		"ce_pin", "cs_pin", "led_pin", "channel",
		"retry_delay", "max_retries", "payload_length",
	}
	pipeRequired = []string{"address", "topic", "blink"}

	// An MQTT key is also satisfied by its environment override
	mqttRequired = []struct{ key, env string }{
		{"host", EnvMQTTHost},
		{"port", EnvMQTTPort},
		{"user", EnvMQTTUser},
		{"password", EnvMQTTPassword},
	}
)

// PipeEntry is one pipe in the radio file
type PipeEntry struct {
	Address string `yaml:"address"`
	Topic   string `yaml:"topic"`
	Blink   bool   `yaml:"blink"`
}

// Pipes lists the writing pipe and the reading pipes in index order
type Pipes struct {
	Writing PipeEntry   `yaml:"writing"`
	Reading []PipeEntry `yaml:"reading"`
}

// Link describes how to reach the radio coprocessor
type Link struct {
	Port        string `yaml:"port"`
	Baud        int    `yaml:"baud"`
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
	TimeoutMs   int    `yaml:"timeout_ms"`
}

// Radio is the content of the radio file
type Radio struct {
	CEPin           uint8  `yaml:"ce_pin"`
	CSPin           uint8  `yaml:"cs_pin"`
	LEDPin          uint8  `yaml:"led_pin"`
	Channel         int    `yaml:"channel"`
	DataRate        string `yaml:"data_rate"`
	CRCLength       string `yaml:"crc_length"`
	PALevel         string `yaml:"pa_level"`
	AutoAck         bool   `yaml:"auto_ack"`
	DynamicPayloads bool   `yaml:"dynamic_payloads"`
	RetryDelay      int    `yaml:"retry_delay"`
	MaxRetries      int    `yaml:"max_retries"`
	PayloadLength   int    `yaml:"payload_length"`
	TickIntervalMs  int    `yaml:"tick_interval_ms"`
	StatsIntervalS  int    `yaml:"stats_interval_s"`
	Link            Link   `yaml:"link"`
	Pipes           Pipes  `yaml:"pipes"`
}

// MQTT is the content of the MQTT file
type MQTT struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	ClientID        string `yaml:"client_id"`
	KeepAlive       int    `yaml:"keepalive"` // seconds
	ConnectTimeoutS int    `yaml:"connect_timeout_s"`
	PublishTimeoutS int    `yaml:"publish_timeout_s"`
	QoS             int    `yaml:"qos"`
}

// DefaultRadio returns the values used for keys a file may omit. Pins have
// no default.
func DefaultRadio() Radio {
	s := radio.DefaultSettings()
	return Radio{
		Channel:        int(s.Channel),
		DataRate:       s.DataRate.String(),
		CRCLength:      s.CRCLength.String(),
		PALevel:        s.PALevel.String(),
		AutoAck:        s.AutoAck,
		RetryDelay:     int(s.RetryDelay),
		MaxRetries:     int(s.RetryCount),
		PayloadLength:  int(s.PayloadSize),
		TickIntervalMs: 10,
		StatsIntervalS: 300,
		Link: Link{
			Baud:      115200,
			TimeoutMs: 250,
		},
	}
}

// DefaultMQTT returns the values used for keys a file may omit
func DefaultMQTT() MQTT {
	return MQTT{
		KeepAlive:       60,
		ConnectTimeoutS: 10,
		PublishTimeoutS: 5,
		QoS:             2,
	}
}

func loadFile(path string, out interface{}, missing func(map[interface{}]interface{}) []string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Error{File: path, Err: err}
	}
	if err := yaml.UnmarshalStrict(data, out); err != nil {
		return &Error{File: path, Err: err}
	}

	var raw map[interface{}]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return &Error{File: path, Err: err}
	}
	if keys := missing(raw); len(keys) > 0 {
		return &Error{File: path, Err: &MissingKeysError{Keys: keys}}
	}
	return nil
}

// hasKey reports whether m sets key to a non-null value
func hasKey(m map[interface{}]interface{}, key string) bool {
	v, ok := m[key]
	return ok && v != nil
}

func missingRadioKeys(raw map[interface{}]interface{}) []string {
	var missing []string
	for _, key := range radioRequired {
		if !hasKey(raw, key) {
			missing = append(missing, key)
		}
	}

	pipesMap, _ := raw["pipes"].(map[interface{}]interface{})
	if pipesMap == nil {
		return append(missing, "pipes")
	}

	if writing, _ := pipesMap["writing"].(map[interface{}]interface{}); writing == nil {
		missing = append(missing, "pipes.writing")
	} else {
		for _, key := range pipeRequired {
			if !hasKey(writing, key) {
				missing = append(missing, "pipes.writing."+key)
			}
		}
	}

	reading, ok := pipesMap["reading"].([]interface{})
	if !ok {
		return append(missing, "pipes.reading")
	}
	for i, item := range reading {
		entry, _ := item.(map[interface{}]interface{})
		for _, key := range pipeRequired {
			if entry == nil || !hasKey(entry, key) {
				missing = append(missing, fmt.Sprintf("pipes.reading[%d].%s", i, key))
			}
		}
	}
	return missing
}

func missingMQTTKeys(raw map[interface{}]interface{}) []string {
	var missing []string
	for _, req := range mqttRequired {
		if hasKey(raw, req.key) {
			continue
		}
		if v, ok := os.LookupEnv(req.env); ok && v != "" {
			continue
		}
		missing = append(missing, req.key)
	}
	return missing
}

// LoadRadio reads and validates the radio file.
func LoadRadio(path string) (*Radio, error) {
	cfg := DefaultRadio()
	if err := loadFile(path, &cfg, missingRadioKeys); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, &Error{File: path, Err: err}
	}
	return &cfg, nil
}

// LoadMQTT reads and validates the MQTT file.
func LoadMQTT(path string) (*MQTT, error) {
	cfg := DefaultMQTT()
	if err := loadFile(path, &cfg, missingMQTTKeys); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, &Error{File: path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &Error{File: path, Err: err}
	}
	return &cfg, nil
}

func (r *Radio) applyEnv() {
	if v, ok := os.LookupEnv(EnvLinkPort); ok && v != "" {
		r.Link.Port = v
	}
	if v, ok := os.LookupEnv(EnvLinkURL); ok && v != "" {
		r.Link.URL = v
	}
}

func (m *MQTT) applyEnv() error {
	if v, ok := os.LookupEnv(EnvMQTTHost); ok && v != "" {
		m.Host = v
	}
	if v, ok := os.LookupEnv(EnvMQTTPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMQTTPort, err)
		}
		m.Port = port
	}
	if v, ok := os.LookupEnv(EnvMQTTUser); ok && v != "" {
		m.User = v
	}
	if v, ok := os.LookupEnv(EnvMQTTPassword); ok && v != "" {
		m.Password = v
	}
	return nil
}

// Validate checks ranges and builds the pipe table once to surface pipe
// errors.
func (r *Radio) Validate() error {
	if _, err := r.Settings(); err != nil {
		return err
	}
	if _, err := r.Table(); err != nil {
		return err
	}
	if r.TickIntervalMs <= 0 {
		return fmt.Errorf("tick_interval_ms must be positive, got %d", r.TickIntervalMs)
	}
	if r.StatsIntervalS < 0 {
		return fmt.Errorf("stats_interval_s must not be negative, got %d", r.StatsIntervalS)
	}
	if r.Link.TimeoutMs <= 0 {
		return fmt.Errorf("link.timeout_ms must be positive, got %d", r.Link.TimeoutMs)
	}
	return nil
}

// Settings converts the file values into transceiver settings.
func (r *Radio) Settings() (radio.Settings, error) {
	var s radio.Settings

	if r.Channel < 0 || r.Channel > radio.MaxChannel {
		return s, fmt.Errorf("channel must be 0..%d, got %d", radio.MaxChannel, r.Channel)
	}
	if r.RetryDelay < 0 || r.RetryDelay > radio.MaxRetryDelay {
		return s, fmt.Errorf("retry_delay must be 0..%d, got %d", radio.MaxRetryDelay, r.RetryDelay)
	}
	if r.MaxRetries < 0 || r.MaxRetries > radio.MaxRetryCount {
		return s, fmt.Errorf("max_retries must be 0..%d, got %d", radio.MaxRetryCount, r.MaxRetries)
	}
	if r.PayloadLength < 1 || r.PayloadLength > radio.MaxPayloadSize {
		return s, fmt.Errorf("payload_length must be 1..%d, got %d", radio.MaxPayloadSize, r.PayloadLength)
	}

	rate, err := radio.ParseDataRate(r.DataRate)
	if err != nil {
		return s, err
	}
	crc, err := radio.ParseCRCLength(r.CRCLength)
	if err != nil {
		return s, err
	}
	pa, err := radio.ParsePALevel(r.PALevel)
	if err != nil {
		return s, err
	}

	s = radio.Settings{
		Channel:         uint8(r.Channel),
		DataRate:        rate,
		CRCLength:       crc,
		PALevel:         pa,
		AutoAck:         r.AutoAck,
		DynamicPayloads: r.DynamicPayloads,
		RetryDelay:      uint8(r.RetryDelay),
		RetryCount:      uint8(r.MaxRetries),
		PayloadSize:     uint8(r.PayloadLength),
	}
	return s, s.Validate()
}

// Table builds the pipe table. Reading pipes are numbered from 1 in file
// order.
func (r *Radio) Table() (*pipes.Table, error) {
	writing := pipes.PipeConfig{
		Index:   pipes.WritingIndex,
		Address: pipes.Address(r.Pipes.Writing.Address),
		Topic:   r.Pipes.Writing.Topic,
		Signal:  r.Pipes.Writing.Blink,
	}
	reading := make([]pipes.PipeConfig, 0, len(r.Pipes.Reading))
	for i, p := range r.Pipes.Reading {
		reading = append(reading, pipes.PipeConfig{
			Index:   uint8(i + 1),
			Address: pipes.Address(p.Address),
			Topic:   p.Topic,
			Signal:  p.Blink,
		})
	}
	return pipes.NewTable(writing, reading)
}

// TickInterval returns the bridge loop pause
func (r *Radio) TickInterval() time.Duration {
	return time.Duration(r.TickIntervalMs) * time.Millisecond
}

// StatsInterval returns the statistics log period, 0 when disabled
func (r *Radio) StatsInterval() time.Duration {
	return time.Duration(r.StatsIntervalS) * time.Second
}

// LinkTimeout returns the coprocessor transaction timeout
func (r *Radio) LinkTimeout() time.Duration {
	return time.Duration(r.Link.TimeoutMs) * time.Millisecond
}

// Validate checks the MQTT values
func (m *MQTT) Validate() error {
	if m.Host == "" {
		return fmt.Errorf("host is required")
	}
	if m.Port < 1 || m.Port > 65535 {
		return fmt.Errorf("port must be 1..65535, got %d", m.Port)
	}
	if m.QoS < 0 || m.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", m.QoS)
	}
	if m.KeepAlive <= 0 || m.ConnectTimeoutS <= 0 || m.PublishTimeoutS <= 0 {
		return fmt.Errorf("keepalive, connect_timeout_s and publish_timeout_s must be positive")
	}
	return nil
}

// ResolvePassword fills a missing password for a configured user by
// calling prompt. A nil prompt makes the missing password an error.
func (m *MQTT) ResolvePassword(prompt func() (string, error)) error {
	if m.User == "" || m.Password != "" {
		return nil
	}
	if prompt == nil {
		return fmt.Errorf("mqtt user %q has no password (set %s)", m.User, EnvMQTTPassword)
	}
	password, err := prompt()
	if err != nil {
		return fmt.Errorf("mqtt password: %w", err)
	}
	m.Password = password
	return nil
}

// BusConfig converts the file values for mqttbus; writeTopic is subscribed
// for outbound radio payloads.
func (m *MQTT) BusConfig(writeTopic string) mqttbus.Config {
	return mqttbus.Config{
		Host:           m.Host,
		Port:           m.Port,
		User:           m.User,
		Password:       m.Password,
		ClientID:       m.ClientID,
		KeepAlive:      time.Duration(m.KeepAlive) * time.Second,
		ConnectTimeout: time.Duration(m.ConnectTimeoutS) * time.Second,
		PublishTimeout: time.Duration(m.PublishTimeoutS) * time.Second,
		QoS:            byte(m.QoS),
		WriteTopic:     writeTopic,
	}
}
