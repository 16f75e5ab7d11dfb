package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// WalletEventType classifies wallet state transitions.
type WalletEventType string

// Wallet event types.
const (
	WalletConnected       WalletEventType = "connected"
	WalletDisconnected    WalletEventType = "disconnected"
	WalletChainChanged    WalletEventType = "chain_changed"
	WalletAccountsChanged WalletEventType = "accounts_changed"
)

// WalletEvent is published by the wallet connector on every state transition.
type WalletEvent struct {
	ID              string
	Type            WalletEventType
	ChainID         uint64
	PreviousChainID uint64
	Accounts        []common.Address
	Mock            bool
	At              time.Time
}
