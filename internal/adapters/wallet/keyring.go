package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Keyring holds private keys in the order they were configured.
type Keyring struct {
	order []common.Address
	keys  map[common.Address]*ecdsa.PrivateKey
}

// ParseKeys builds a keyring from hex private keys, with or without 0x prefix.
func ParseKeys(hexKeys []string) (*Keyring, error) {
	k := &Keyring{keys: make(map[common.Address]*ecdsa.PrivateKey, len(hexKeys))}
	for i, h := range hexKeys {
		h = strings.TrimPrefix(strings.TrimSpace(h), "0x")
		if h == "" {
			continue
		}
		key, err := crypto.HexToECDSA(h)
		if err != nil {
			return nil, fmt.Errorf("%w: key %d: %w", ErrInvalidKey, i, err)
		}
		addr := crypto.PubkeyToAddress(key.PublicKey)
		if _, dup := k.keys[addr]; dup {
			continue
		}
		k.order = append(k.order, addr)
		k.keys[addr] = key
	}
	return k, nil
}

// Addresses lists the keyring accounts.
func (k *Keyring) Addresses() []common.Address {
	if k == nil {
		return nil
	}
	return append([]common.Address(nil), k.order...)
}

// Key returns the key for addr.
func (k *Keyring) Key(addr common.Address) (*ecdsa.PrivateKey, bool) {
	if k == nil {
		return nil, false
	}
	key, ok := k.keys[addr]
	return key, ok
}

// Len returns the number of keys.
func (k *Keyring) Len() int {
	if k == nil {
		return 0
	}
	return len(k.order)
}
