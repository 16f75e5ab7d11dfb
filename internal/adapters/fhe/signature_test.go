package fhe_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fheprop/internal/adapters/fhe"
)

type keySigner struct {
	key   *ecdsa.PrivateKey
	calls int
	fail  error
}

func (s *keySigner) Address() common.Address { return crypto.PubkeyToAddress(s.key.PublicKey) }

func (s *keySigner) SignHash(_ context.Context, hash []byte) ([]byte, error) {
	s.calls++
	if s.fail != nil {
		return nil, s.fail
	}
	return crypto.Sign(hash, s.key)
}

func TestLoadOrSign(t *testing.T) {
	Convey("Given a signer, instance and empty store", t, func() {
		ctx := context.Background()
		key, err := crypto.GenerateKey()
		So(err, ShouldBeNil)
		signer := &keySigner{key: key}
		inst := readyInstance(fhe.NewMockBackend())
		store := fhe.NewMemoryStore()
		contracts := []common.Address{common.HexToAddress("0x1000000000000000000000000000000000000001")}
		now := time.Unix(1_700_000_000, 0)
		clock := func() time.Time { return now }

		sig, err := fhe.LoadOrSign(ctx, inst, contracts, signer, store, fhe.WithNow(clock))
		So(err, ShouldBeNil)

		Convey("Then a fresh signature recovers to the signer", func() {
			So(signer.calls, ShouldEqual, 1)
			So(sig.UserAddress, ShouldEqual, signer.Address())
			So(sig.DurationDays, ShouldEqual, int64(365))
			addr, err := sig.Recover()
			So(err, ShouldBeNil)
			So(addr, ShouldEqual, signer.Address())
		})

		Convey("When asked again while valid", func() {
			again, err := fhe.LoadOrSign(ctx, inst, contracts, signer, store, fhe.WithNow(clock))

			Convey("Then the cached signature is reused", func() {
				So(err, ShouldBeNil)
				So(signer.calls, ShouldEqual, 1)
				So(again.Signature, ShouldResemble, sig.Signature)
			})
		})

		Convey("When the signature has expired", func() {
			later := func() time.Time { return now.Add(366 * 24 * time.Hour) }
			again, err := fhe.LoadOrSign(ctx, inst, contracts, signer, store, fhe.WithNow(later))

			Convey("Then a new one is signed", func() {
				So(err, ShouldBeNil)
				So(signer.calls, ShouldEqual, 2)
				So(again.StartTimestamp, ShouldEqual, later().Unix())
			})
		})

		Convey("When the signer refuses", func() {
			other, _ := crypto.GenerateKey()
			refusing := &keySigner{key: other, fail: errors.New("user rejected")}
			_, err := fhe.LoadOrSign(ctx, inst, contracts, refusing, store)

			Convey("Then the error says a signature is required", func() {
				So(errors.Is(err, fhe.ErrSignatureRequired), ShouldBeTrue)
			})
		})

		Convey("When there is no instance", func() {
			_, err := fhe.LoadOrSign(ctx, nil, contracts, signer, store)
			So(errors.Is(err, fhe.ErrNotReady), ShouldBeTrue)
		})
	})

	Convey("StorageKey ignores contract order", t, func() {
		user := common.HexToAddress("0xabc")
		a := common.HexToAddress("0x1")
		b := common.HexToAddress("0x2")
		So(fhe.StorageKey(user, []common.Address{a, b}), ShouldEqual, fhe.StorageKey(user, []common.Address{b, a}))
		So(fhe.StorageKey(user, []common.Address{a}), ShouldNotEqual, fhe.StorageKey(common.HexToAddress("0xdef"), []common.Address{a}))
	})
}
