// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New(ctx) builds a Config with defaults; Load layers file and env on top.
// - Durations are carried as integer milliseconds and exposed through accessors.
package config

import (
	"context"
	"time"
)

// Backend names.
const (
	BackendSimulated = "simulated"
	BackendEVM       = "evm"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Backend selects the contract backend: simulated (in-process) or evm (JSON-RPC).
	Backend string `koanf:"backend"`

	// ForceMockMode pins the wallet to the mock chain and mock account.
	ForceMockMode bool `koanf:"force_mock_mode"`

	// FallbackToMock switches to mock mode when no wallet is available.
	FallbackToMock bool `koanf:"fallback_to_mock"`

	// MockChainID is the local development chain; it selects the plaintext submission path.
	MockChainID uint64 `koanf:"mock_chain_id"`

	// MockPrivateKeys are hex keys of the local development accounts.
	MockPrivateKeys []string `koanf:"mock_private_keys"`

	// MockAccount is the fallback account of the local RPC signer when no key is known for it.
	MockAccount string `koanf:"mock_account"`

	// WalletPrivateKeys are hex keys held by the live wallet.
	WalletPrivateKeys []string `koanf:"wallet_private_keys"`

	// WalletRPCURL is the wallet's JSON-RPC endpoint (evm backend).
	WalletRPCURL string `koanf:"wallet_rpc_url"`

	// WalletChainID is the chain reported by the wallet on the simulated backend.
	WalletChainID uint64 `koanf:"wallet_chain_id"`

	// LocalRPCURL is the local development node used by the fallback signer.
	LocalRPCURL string `koanf:"local_rpc_url"`

	// Contracts maps chain id (as a string key) to deployed contract address.
	// The simulated backend deploys at these addresses as well.
	Contracts map[string]string `koanf:"contracts"`

	// SignatureStore is a sqlite DSN for persisting decryption signatures; empty keeps them in memory.
	SignatureStore string `koanf:"signature_store"`

	// DecryptionSignatureDays bounds the validity of a decryption signature.
	DecryptionSignatureDays int `koanf:"decryption_signature_days"`

	// EventQueueSize bounds the wallet event queue.
	EventQueueSize int `koanf:"event_queue_size"`

	// RefreshConcurrency bounds concurrent getProjectInfo calls.
	RefreshConcurrency int `koanf:"refresh_concurrency"`

	// OperationTimeoutMS bounds HTTP-triggered coordinator operations.
	OperationTimeoutMS int `koanf:"operation_timeout_ms"`

	// EncryptionInitDelayMS simulates SDK initialization latency of the mock encryption backend.
	EncryptionInitDelayMS int `koanf:"encryption_init_delay_ms"`

	// BlockTimeMS is the simulated backend's confirmation delay.
	BlockTimeMS int `koanf:"block_time_ms"`

	// CORSAllowedOrigins lists browser origins allowed to call the API.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// WriteRatePerSecond and WriteBurst throttle write endpoints per client.
	WriteRatePerSecond float64 `koanf:"write_rate_per_second"`
	WriteBurst         int     `koanf:"write_burst"`

	// IdempotencyCacheSize bounds remembered Idempotency-Key values.
	IdempotencyCacheSize int `koanf:"idempotency_cache_size"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "text",
		Addr:           ":9080",
		Backend:        BackendSimulated,
		FallbackToMock: true,
		MockChainID:    31337,
		MockPrivateKeys: []string{
			"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
			"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
			"7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6",
		},
		MockAccount:             "0x84caCcbde1B2fa965B44B6F2F12F7402fBEEfCCC",
		WalletChainID:           11155111,
		LocalRPCURL:             "http://localhost:8545",
		Contracts:               map[string]string{},
		DecryptionSignatureDays: 365,
		EventQueueSize:          1024,
		RefreshConcurrency:      8,
		OperationTimeoutMS:      120_000,
		EncryptionInitDelayMS:   0,
		BlockTimeMS:             250,
		CORSAllowedOrigins:      []string{"*"},
		WriteRatePerSecond:      5,
		WriteBurst:              10,
		IdempotencyCacheSize:    4096,
	}
}

// OperationTimeout returns OperationTimeoutMS as a duration.
func (c *Config) OperationTimeout() time.Duration {
	return time.Duration(c.OperationTimeoutMS) * time.Millisecond
}

// BlockTime returns BlockTimeMS as a duration.
func (c *Config) BlockTime() time.Duration {
	return time.Duration(c.BlockTimeMS) * time.Millisecond
}

// EncryptionInitDelay returns EncryptionInitDelayMS as a duration.
func (c *Config) EncryptionInitDelay() time.Duration {
	return time.Duration(c.EncryptionInitDelayMS) * time.Millisecond
}

// SignatureValidity returns DecryptionSignatureDays as a duration.
func (c *Config) SignatureValidity() time.Duration {
	return time.Duration(c.DecryptionSignatureDays) * 24 * time.Hour
}
