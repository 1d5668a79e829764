// Package config loads connsession settings from TOML files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"connsession-go/codec"
	"connsession-go/gonet"
)

const (
	TransportTCP       = "tcp"
	TransportWebsocket = "websocket"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Service          string
	Network          string
	Address          string
	Codec            string
	Transport        string
	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration
	MaxFrameSize     int
	LogLevel         string
}

func Default() Config {
	return Config{
		Service:          gonet.DefaultService,
		Network:          "tcp",
		Address:          "127.0.0.1:7400",
		Codec:            "json",
		Transport:        TransportTCP,
		HandshakeTimeout: gonet.DefaultHandshakeTimeout,
		RequestTimeout:   10 * time.Second,
		MaxFrameSize:     gonet.DefaultMaxFrameSize,
		LogLevel:         "info",
	}
}

type fileConfig struct {
	Service          string `toml:"service"`
	Network          string `toml:"network"`
	Address          string `toml:"address"`
	Codec            string `toml:"codec"`
	Transport        string `toml:"transport"`
	HandshakeTimeout string `toml:"handshake_timeout"`
	RequestTimeout   string `toml:"request_timeout"`
	MaxFrameSize     int    `toml:"max_frame_size"`
	LogLevel         string `toml:"log_level"`
}

// Load reads path over Default. Keys missing from the file keep their
// default value.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return apply(Default(), raw, meta)
}

// Parse is Load for an in-memory document.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return apply(Default(), raw, meta)
}

func apply(cfg Config, raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q", ErrInvalid, undecoded[0].String())
	}

	if meta.IsDefined("service") {
		cfg.Service = strings.TrimSpace(raw.Service)
	}
	if meta.IsDefined("network") {
		cfg.Network = strings.TrimSpace(raw.Network)
	}
	if meta.IsDefined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("codec") {
		cfg.Codec = strings.TrimSpace(raw.Codec)
	}
	if meta.IsDefined("transport") {
		cfg.Transport = strings.ToLower(strings.TrimSpace(raw.Transport))
	}
	if meta.IsDefined("handshake_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HandshakeTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse handshake_timeout: %w", err)
		}
		cfg.HandshakeTimeout = d
	}
	if meta.IsDefined("request_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.RequestTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse request_timeout: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if meta.IsDefined("max_frame_size") {
		cfg.MaxFrameSize = raw.MaxFrameSize
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Service == "" {
		return fmt.Errorf("%w: service is empty", ErrInvalid)
	}
	if c.Address == "" {
		return fmt.Errorf("%w: address is empty", ErrInvalid)
	}
	if _, err := codec.ByName(c.Codec); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch c.Transport {
	case TransportTCP, TransportWebsocket:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalid, c.Transport)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("%w: handshake_timeout must be positive", ErrInvalid)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("%w: request_timeout is negative", ErrInvalid)
	}
	if c.MaxFrameSize <= 0 {
		return fmt.Errorf("%w: max_frame_size must be positive", ErrInvalid)
	}
	return nil
}

// ConnOptions translates the connection settings for gonet.
func (c Config) ConnOptions() []gonet.ConnOption {
	return []gonet.ConnOption{
		gonet.WithService(c.Service),
		gonet.WithHandshakeTimeout(c.HandshakeTimeout),
		gonet.WithMaxFrameSize(c.MaxFrameSize),
	}
}

func (c Config) CodecValue() (codec.Codec, error) {
	return codec.ByName(c.Codec)
}
