// Package config holds the process-level configuration variables the
// snapshot engine reads at startup, in the spirit of the wider codebase's
// convention of a single viper-backed settings object handed to every
// subsystem rather than package-level mutable globals.
package config

import (
	"fmt"

	"github.com/spf13/viper"
	validator "gopkg.in/go-playground/validator.v9"
)

// StreamType names the entropy coder variant the session negotiates with
// the server. It must match the server process-wide; there is no per-message
// negotiation.
type StreamType string

const (
	StreamRaw     StreamType = "raw"
	StreamHuffman StreamType = "huffman"
	StreamRans    StreamType = "rans"
)

// Config is the validated, typed view of every process-level variable listed
// in the external interfaces section of the protocol: debug logging,
// transport blackholing for tests, protocol verification strictness, the
// negotiated entropy coder, and the client's own update-rate preferences.
type Config struct {
	// Debug turns on verbose per-session logging and, in the decoder,
	// promotes a per-entity delta hash mismatch from a logged warning to a
	// fatal assertion.
	Debug bool `mapstructure:"client.debug"`
	// BlockIn drops all inbound traffic; used by tests that want to
	// exercise reconnection and timeout paths deterministically.
	BlockIn bool `mapstructure:"client.blockin"`
	// BlockOut drops all outbound traffic.
	BlockOut bool `mapstructure:"client.blockout"`
	// VerifyProtocol aborts the connection on a protocol id mismatch
	// instead of just logging a warning.
	VerifyProtocol bool `mapstructure:"client.verifyprotocol"`
	// IOStreamType selects the entropy coder. Must agree with the server.
	IOStreamType StreamType `mapstructure:"client.iostreamtype" validate:"oneof=raw huffman rans"`
	// ProtocolVersion is this client build's dotted protocol string; only
	// the suffix after the last '.' is ever compared against the server's.
	ProtocolVersion string `mapstructure:"client.protocolversion" validate:"required"`
	// ServerUpdateRate is the requested simulation tick rate, pushed to
	// the server as part of ClientConfig.
	ServerUpdateRate uint32 `mapstructure:"client.serverupdaterate" validate:"gt=0"`
	// ServerUpdateSendRate is the requested snapshot send rate, pushed to
	// the server as part of ClientConfig and used locally to seed the
	// outbound package rate limiter.
	ServerUpdateSendRate uint16 `mapstructure:"client.serverupdatesendrate" validate:"gt=0"`
}

// Default returns sane defaults for local development: debug off, nothing
// blocked, protocol verification on, the Raw stream (which needs no model),
// and a conservative 20/10 Hz update/send rate.
func Default() Config {
	return Config{
		Debug:                false,
		BlockIn:              false,
		BlockOut:             false,
		VerifyProtocol:       true,
		IOStreamType:         StreamRaw,
		ProtocolVersion:      "build.0.0",
		ServerUpdateRate:     20,
		ServerUpdateSendRate: 10,
	}
}

// FromViper reads and validates a Config out of v, applying Default() first
// so callers only need to Set the keys they care about, mirroring the
// examples/demo pattern of building a *viper.Viper with SetDefault/Set calls
// before handing it to the library that owns the settings.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Default()
	for key, val := range defaultsAsMap(cfg) {
		v.SetDefault(key, val)
	}

	cfg = Config{
		Debug:                v.GetBool("client.debug"),
		BlockIn:              v.GetBool("client.blockin"),
		BlockOut:             v.GetBool("client.blockout"),
		VerifyProtocol:       v.GetBool("client.verifyprotocol"),
		IOStreamType:         StreamType(v.GetString("client.iostreamtype")),
		ProtocolVersion:      v.GetString("client.protocolversion"),
		ServerUpdateRate:     v.GetUint32("client.serverupdaterate"),
		ServerUpdateSendRate: v.GetUint16("client.serverupdatesendrate"),
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate runs struct-tag validation over cfg, returning a wrapped
// validator error on failure.
func Validate(cfg Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

func defaultsAsMap(cfg Config) map[string]interface{} {
	return map[string]interface{}{
		"client.debug":                false,
		"client.blockin":              cfg.BlockIn,
		"client.blockout":             cfg.BlockOut,
		"client.verifyprotocol":       cfg.VerifyProtocol,
		"client.iostreamtype":         string(cfg.IOStreamType),
		"client.protocolversion":      cfg.ProtocolVersion,
		"client.serverupdaterate":     cfg.ServerUpdateRate,
		"client.serverupdatesendrate": cfg.ServerUpdateSendRate,
	}
}
