package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables read by Load.
const (
	EnvPrefix     = "PROPRATE_"
	EnvConfigPath = "PROPRATE_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if PROPRATE_CONFIG is set
//  3. env (prefix PROPRATE_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: file %s: %w", ErrLoadConfig, path, err)
		}
	}

	// PROPRATE_MOCK_CHAIN_ID -> mock_chain_id. List values are comma separated.
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))
		if key == "config" {
			return "", nil
		}
		if strings.Contains(value, ",") {
			return key, strings.Split(value, ",")
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.Backend != BackendSimulated && c.Backend != BackendEVM {
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	if c.MockChainID == 0 {
		return fmt.Errorf("%w: mock_chain_id must not be zero", ErrInvalidConfig)
	}
	if c.Backend == BackendEVM && c.WalletRPCURL == "" && !c.ForceMockMode {
		return fmt.Errorf("%w: evm backend requires wallet_rpc_url", ErrInvalidConfig)
	}
	if c.EventQueueSize <= 0 || c.RefreshConcurrency <= 0 {
		return fmt.Errorf("%w: event_queue_size and refresh_concurrency must be positive", ErrInvalidConfig)
	}
	if c.MockAccount != "" && !common.IsHexAddress(c.MockAccount) {
		return fmt.Errorf("%w: mock_account %q is not an address", ErrInvalidConfig, c.MockAccount)
	}
	if _, err := c.ContractAddresses(); err != nil {
		return err
	}
	return nil
}

// ContractAddresses parses Contracts into a chain id keyed address book.
func (c *Config) ContractAddresses() (map[uint64]common.Address, error) {
	book := make(map[uint64]common.Address, len(c.Contracts))
	for key, addr := range c.Contracts {
		chainID, err := strconv.ParseUint(strings.TrimSpace(key), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %w: key %q is not a chain id", ErrInvalidConfig, ErrAddressBook, key)
		}
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("%w: %w: contracts[%s] %q is not an address", ErrInvalidConfig, ErrAddressBook, key, addr)
		}
		book[chainID] = common.HexToAddress(addr)
	}
	return book, nil
}
