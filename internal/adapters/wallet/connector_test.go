package wallet_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fheprop/internal/adapters/wallet"
	"github.com/okian/fheprop/internal/domain/model"
)

const (
	hardhatKey0 = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	hardhatKey1 = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

var (
	hardhatAddr0 = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	hardhatAddr1 = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	mockAccount  = common.HexToAddress("0x84caCcbde1B2fa965B44B6F2F12F7402fBEEfCCC")
)

type capturePublisher struct {
	mu     sync.Mutex
	events []model.WalletEvent
}

func (p *capturePublisher) Publish(_ context.Context, e model.WalletEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) types() []model.WalletEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.WalletEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type failingProvider struct{}

func (failingProvider) ChainID(context.Context) (uint64, error) { return 0, errors.New("no wallet") }
func (failingProvider) URL() string                             { return "http://wallet" }

func mustKeys(keys ...string) *wallet.Keyring {
	k, err := wallet.ParseKeys(keys)
	if err != nil {
		panic(err)
	}
	return k
}

func TestKeyring(t *testing.T) {
	Convey("ParseKeys derives addresses in order and skips duplicates", t, func() {
		k, err := wallet.ParseKeys([]string{hardhatKey0, "0x" + hardhatKey1, hardhatKey0, ""})
		So(err, ShouldBeNil)
		So(k.Addresses(), ShouldResemble, []common.Address{hardhatAddr0, hardhatAddr1})
		key, ok := k.Key(hardhatAddr1)
		So(ok, ShouldBeTrue)
		So(key, ShouldNotBeNil)
	})

	Convey("ParseKeys rejects malformed keys", t, func() {
		_, err := wallet.ParseKeys([]string{"zz"})
		So(errors.Is(err, wallet.ErrInvalidKey), ShouldBeTrue)
	})
}

func TestConnector(t *testing.T) {
	ctx := context.Background()

	Convey("Given a live wallet on Sepolia", t, func() {
		pub := &capturePublisher{}
		c := wallet.NewConnector(
			wallet.WithProvider(wallet.NewStaticProvider(11155111, "http://wallet"), mustKeys(hardhatKey0, hardhatKey1)),
			wallet.WithMock(31337, mockAccount, "http://localhost:8545", mustKeys(hardhatKey0)),
			wallet.WithPublisher(pub),
		)

		Convey("Before connecting it is disconnected", func() {
			So(c.State().Connected, ShouldBeFalse)
			_, err := c.SwitchChain(ctx, 1)
			So(errors.Is(err, wallet.ErrNotConnected), ShouldBeTrue)
		})

		Convey("When connected", func() {
			st, err := c.Connect(ctx)
			So(err, ShouldBeNil)

			Convey("Then it reports the wallet chain and accounts", func() {
				So(st.Mock, ShouldBeFalse)
				So(st.ChainID, ShouldEqual, uint64(11155111))
				So(st.Accounts, ShouldResemble, []common.Address{hardhatAddr0, hardhatAddr1})
				So(st.RPCURL, ShouldEqual, "http://wallet")
				_, ok := c.Key(hardhatAddr1)
				So(ok, ShouldBeTrue)
			})

			Convey("And switching chain publishes the previous chain", func() {
				st, err := c.SwitchChain(ctx, 31337)
				So(err, ShouldBeNil)
				So(st.ChainID, ShouldEqual, uint64(31337))
				So(pub.types(), ShouldResemble, []model.WalletEventType{model.WalletConnected, model.WalletChainChanged})
				So(pub.events[1].PreviousChainID, ShouldEqual, uint64(11155111))
			})

			Convey("And switching to the same chain is a no-op", func() {
				_, err := c.SwitchChain(ctx, 11155111)
				So(err, ShouldBeNil)
				So(pub.types(), ShouldHaveLength, 1)
			})

			Convey("And switching account moves it first", func() {
				st, err := c.SwitchAccount(ctx, hardhatAddr1)
				So(err, ShouldBeNil)
				acct, _ := st.Account()
				So(acct, ShouldEqual, hardhatAddr1)
				So(st.Accounts, ShouldHaveLength, 2)
				So(pub.types()[1], ShouldEqual, model.WalletAccountsChanged)
			})

			Convey("And an unknown account is rejected", func() {
				_, err := c.SwitchAccount(ctx, common.HexToAddress("0x1"))
				So(errors.Is(err, wallet.ErrUnknownAccount), ShouldBeTrue)
			})

			Convey("And disconnecting clears state", func() {
				c.Disconnect(ctx)
				So(c.State().Connected, ShouldBeFalse)
				So(pub.types()[1], ShouldEqual, model.WalletDisconnected)
			})
		})
	})

	Convey("Given forced mock mode", t, func() {
		c := wallet.NewConnector(
			wallet.WithProvider(wallet.NewStaticProvider(11155111, "http://wallet"), mustKeys(hardhatKey1)),
			wallet.WithMock(31337, mockAccount, "http://localhost:8545", mustKeys(hardhatKey0)),
			wallet.WithForceMock(true),
		)
		st, err := c.Connect(ctx)
		So(err, ShouldBeNil)

		Convey("Then the chain and account are pinned regardless of the wallet", func() {
			So(st.Mock, ShouldBeTrue)
			So(st.ChainID, ShouldEqual, uint64(31337))
			acct, _ := st.Account()
			So(acct, ShouldEqual, mockAccount)
			So(st.Accounts, ShouldContain, hardhatAddr0)
			So(st.RPCURL, ShouldEqual, "http://localhost:8545")

			_, err := c.SwitchChain(ctx, 11155111)
			So(errors.Is(err, wallet.ErrMockPinned), ShouldBeTrue)
		})

		Convey("And keys come from the development keyring", func() {
			_, ok := c.Key(hardhatAddr0)
			So(ok, ShouldBeTrue)
			_, ok = c.Key(hardhatAddr1)
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given an unreachable wallet", t, func() {
		Convey("With fallback it connects to the mock wallet", func() {
			c := wallet.NewConnector(
				wallet.WithProvider(failingProvider{}, nil),
				wallet.WithMock(31337, mockAccount, "", nil),
				wallet.WithFallbackToMock(true),
			)
			st, err := c.Connect(ctx)
			So(err, ShouldBeNil)
			So(st.Mock, ShouldBeTrue)
			So(st.ChainID, ShouldEqual, uint64(31337))

			Convey("And the fallback mock wallet may switch chain", func() {
				st, err := c.SwitchChain(ctx, 1)
				So(err, ShouldBeNil)
				So(st.ChainID, ShouldEqual, uint64(1))
			})
		})

		Convey("Without fallback connecting fails", func() {
			c := wallet.NewConnector(wallet.WithProvider(failingProvider{}, nil))
			_, err := c.Connect(ctx)
			So(errors.Is(err, wallet.ErrUnavailable), ShouldBeTrue)
		})

		Convey("Switching chain before connecting fails", func() {
			c := wallet.NewConnector(wallet.WithProvider(wallet.NewRPCProvider("http://127.0.0.1:1"), nil), wallet.WithFallbackToMock(false))
			_, err := c.SwitchChain(ctx, 1)
			So(errors.Is(err, wallet.ErrNotConnected), ShouldBeTrue)
		})
	})
}
