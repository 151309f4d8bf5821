package config

import (
	"time"

	"github.com/go-i2p/logger"

	"github.com/go-i2p/go-onion/lib/address"
	"github.com/go-i2p/go-onion/lib/crypto"
	"github.com/go-i2p/go-onion/lib/protocol"
)

// ConfigDefaults contains every configuration value of a go-onion node.
// Defaults() is the single source of truth for their default values.
type ConfigDefaults struct {
	Protocol  ProtocolDefaults
	Crypto    CryptoDefaults
	Directory DirectoryDefaults
	Relay     RelayDefaults
	Client    ClientDefaults
	Transport TransportDefaults
	Metrics   MetricsDefaults
}

// ProtocolDefaults contains values shared by every participant.
type ProtocolDefaults struct {
	// PathLength is the number of relays in every circuit.
	// Default: 3
	PathLength int
}

// CryptoDefaults selects the cipher suite. All nodes of one network must use
// the same suite.
type CryptoDefaults struct {
	// Suite is "x25519-chacha20poly1305" or "rsa-oaep-aes-cbc".
	// Default: "x25519-chacha20poly1305"
	Suite string
}

// DirectoryDefaults contains the directory node's settings.
type DirectoryDefaults struct {
	// Address is the "host:port" the directory listens on and that relays and
	// clients contact.
	// Default: "127.0.0.1:8080"
	Address string
}

// RelayDefaults contains a relay node's settings.
type RelayDefaults struct {
	// Default: 1
	NodeID int

	// Default: "127.0.0.1:4001"
	Address string

	// RateLimit is the sustained number of deliveries accepted per second.
	// Zero disables limiting.
	// Default: 100
	RateLimit float64

	// Default: 200
	RateBurst int
}

// ClientDefaults contains a client node's settings.
type ClientDefaults struct {
	// Default: 1
	UserID int

	// Default: "127.0.0.1:3001"
	Address string
}

// TransportDefaults contains the JSON-RPC transport timeouts.
type TransportDefaults struct {
	// ForwardTimeout bounds every outbound call to another node.
	// Default: 10 seconds
	ForwardTimeout time.Duration

	// Default: 15 seconds
	ReadTimeout time.Duration

	// Default: 15 seconds
	WriteTimeout time.Duration

	// Default: 60 seconds
	IdleTimeout time.Duration
}

// MetricsDefaults controls the Prometheus endpoint.
type MetricsDefaults struct {
	// Enabled serves /metrics on every node.
	// Default: true
	Enabled bool
}

// Defaults returns a ConfigDefaults with every default value set.
func Defaults() ConfigDefaults {
	return ConfigDefaults{
		Protocol:  buildProtocolDefaults(),
		Crypto:    buildCryptoDefaults(),
		Directory: buildDirectoryDefaults(),
		Relay:     buildRelayDefaults(),
		Client:    buildClientDefaults(),
		Transport: buildTransportDefaults(),
		Metrics:   MetricsDefaults{Enabled: true},
	}
}

func buildProtocolDefaults() ProtocolDefaults {
	return ProtocolDefaults{PathLength: protocol.DefaultPathLength}
}

func buildCryptoDefaults() CryptoDefaults {
	return CryptoDefaults{Suite: crypto.DefaultSuite}
}

func buildDirectoryDefaults() DirectoryDefaults {
	return DirectoryDefaults{Address: "127.0.0.1:8080"}
}

func buildRelayDefaults() RelayDefaults {
	return RelayDefaults{
		NodeID:    1,
		Address:   "127.0.0.1:4001",
		RateLimit: 100,
		RateBurst: 200,
	}
}

func buildClientDefaults() ClientDefaults {
	return ClientDefaults{
		UserID:  1,
		Address: "127.0.0.1:3001",
	}
}

func buildTransportDefaults() TransportDefaults {
	return TransportDefaults{
		ForwardTimeout: 10 * time.Second,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
	}
}

// Validate checks that cfg describes a usable node. It returns an error for
// the first invalid value found.
func Validate(cfg ConfigDefaults) error {
	log.WithFields(logger.Fields{
		"at":     "Validate",
		"reason": "verification_requested",
	}).Debug("validating configuration")

	validators := []func(ConfigDefaults) error{
		validateProtocol,
		validateCrypto,
		validateAddresses,
		validateIdentities,
		validateRelay,
		validateTransport,
	}
	for _, v := range validators {
		if err := v(cfg); err != nil {
			log.WithFields(logger.Fields{
				"at":     "Validate",
				"reason": err.Error(),
			}).Error("invalid configuration")
			return err
		}
	}
	return nil
}

func validateProtocol(cfg ConfigDefaults) error {
	if cfg.Protocol.PathLength < 1 {
		return newValidationError("protocol.path_length must be at least 1")
	}
	return nil
}

func validateCrypto(cfg ConfigDefaults) error {
	if _, err := crypto.NewProvider(cfg.Crypto.Suite); err != nil {
		return newValidationError("crypto.suite: " + err.Error())
	}
	return nil
}

func validateAddresses(cfg ConfigDefaults) error {
	for key, endpoint := range map[string]string{
		"directory.address": cfg.Directory.Address,
		"relay.address":     cfg.Relay.Address,
		"client.address":    cfg.Client.Address,
	} {
		if _, err := address.FromEndpoint(endpoint); err != nil {
			return newValidationError(key + " must be an IPv4 host:port, got " + endpoint)
		}
	}
	return nil
}

func validateIdentities(cfg ConfigDefaults) error {
	if cfg.Relay.NodeID < 1 {
		return newValidationError("relay.node_id must be positive")
	}
	if cfg.Client.UserID < 1 {
		return newValidationError("client.user_id must be positive")
	}
	return nil
}

func validateRelay(cfg ConfigDefaults) error {
	if cfg.Relay.RateLimit < 0 {
		return newValidationError("relay.rate_limit must not be negative")
	}
	if cfg.Relay.RateLimit > 0 && cfg.Relay.RateBurst < 1 {
		return newValidationError("relay.rate_burst must be at least 1 when rate limiting is enabled")
	}
	return nil
}

func validateTransport(cfg ConfigDefaults) error {
	t := cfg.Transport
	if t.ForwardTimeout < 100*time.Millisecond {
		return newValidationError("transport.forward_timeout must be at least 100ms")
	}
	if t.ReadTimeout <= 0 || t.WriteTimeout <= 0 || t.IdleTimeout <= 0 {
		return newValidationError("transport read, write and idle timeouts must be positive")
	}
	return nil
}

// validationError is returned when configuration validation fails.
type validationError struct {
	message string
}

func newValidationError(message string) error {
	return &validationError{message: message}
}

func (e *validationError) Error() string {
	return "configuration validation failed: " + e.message
}
