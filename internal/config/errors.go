package config

import "errors"

// Sentinel kinds for configuration failures.
var (
	// ErrLoadConfig wraps failures reading the YAML file or the environment.
	ErrLoadConfig = errors.New("load config failed")
	// ErrInvalidConfig wraps values the service cannot start with.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrAddressBook marks a bad contracts entry. It is always wrapped together with ErrInvalidConfig.
	ErrAddressBook = errors.New("bad contract address book")
)
