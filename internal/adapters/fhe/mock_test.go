package fhe_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fheprop/internal/adapters/fhe"
	"github.com/okian/fheprop/internal/domain/model"
)

func readyInstance(backend *fhe.MockBackend) fhe.Instance {
	token, ctx := fhe.NewToken(context.Background())
	inst, err := fhe.NewMockFactory(backend).Create(ctx, 31337, token, func(fhe.Status) {})
	if err != nil {
		panic(err)
	}
	return inst
}

func TestMockBackend(t *testing.T) {
	Convey("Given a mock backend and instance", t, func() {
		ctx := context.Background()
		backend := fhe.NewMockBackend()
		inst := readyInstance(backend)
		contract := common.HexToAddress("0x1000000000000000000000000000000000000001")
		user := common.HexToAddress("0x2000000000000000000000000000000000000002")

		enc, err := inst.CreateEncryptedInput(contract, user).Add32(7).Encrypt(ctx)
		So(err, ShouldBeNil)
		So(enc.Handles, ShouldHaveLength, 1)
		in := model.EncryptedInput{Handle: enc.Handles[0], Proof: enc.InputProof}

		Convey("The issuing contract and user can open it", func() {
			v, err := backend.Verify(contract, user, in)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, uint32(7))
		})

		Convey("Another user cannot", func() {
			_, err := backend.Verify(contract, common.HexToAddress("0x3"), in)
			So(errors.Is(err, fhe.ErrInvalidProof), ShouldBeTrue)
		})

		Convey("Another contract cannot", func() {
			_, err := backend.Verify(common.HexToAddress("0x4"), user, in)
			So(errors.Is(err, fhe.ErrInvalidProof), ShouldBeTrue)
		})

		Convey("A tampered proof is rejected", func() {
			bad := in
			bad.Proof = append([]byte{0x01}, in.Proof[1:]...)
			if bad.Proof[0] == in.Proof[0] {
				bad.Proof[0] = 0x02
			}
			_, err := backend.Verify(contract, user, bad)
			So(errors.Is(err, fhe.ErrInvalidProof), ShouldBeTrue)
		})

		Convey("An unknown handle is rejected", func() {
			_, err := backend.Verify(contract, user, model.EncryptedInput{Handle: common.HexToHash("0xdead")})
			So(errors.Is(err, fhe.ErrUnknownHandle), ShouldBeTrue)
		})

		Convey("Encrypting twice yields distinct handles", func() {
			again, err := inst.CreateEncryptedInput(contract, user).Add32(7).Encrypt(ctx)
			So(err, ShouldBeNil)
			So(again.Handles[0], ShouldNotEqual, enc.Handles[0])
		})

		Convey("A canceled context fails encryption", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := inst.CreateEncryptedInput(contract, user).Add32(1).Encrypt(cctx)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}
