package binding

import (
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGuard(t *testing.T) {
	Convey("Given a live binding source", t, func() {
		var current atomic.Value
		start := Binding{Contract: common.HexToAddress("0x01"), ChainID: 31337, SignerID: "a"}
		current.Store(start)
		src := SourceFunc(func() Binding { return current.Load().(Binding) })

		guard := Capture(src)

		Convey("When nothing changes", func() {
			Convey("Then the guard is fresh", func() {
				So(guard.Stale(), ShouldBeFalse)
				So(guard.ContractStale(), ShouldBeFalse)
				So(guard.Snapshot(), ShouldResemble, start)
			})
		})

		Convey("When only the signer changes", func() {
			next := start
			next.SignerID = "b"
			current.Store(next)

			Convey("Then the full binding is stale but the contract is not", func() {
				So(guard.Stale(), ShouldBeTrue)
				So(guard.ContractStale(), ShouldBeFalse)
			})
		})

		Convey("When the chain changes and changes back", func() {
			next := start
			next.ChainID = 11155111
			current.Store(next)
			So(guard.Stale(), ShouldBeTrue)
			current.Store(start)

			Convey("Then equality is by value", func() {
				So(guard.Stale(), ShouldBeFalse)
			})
		})
	})
}

func TestBindingPredicates(t *testing.T) {
	Convey("Given the zero binding", t, func() {
		var b Binding

		So(b.HasContract(), ShouldBeFalse)
		So(b.HasSigner(), ShouldBeFalse)
		So(b.String(), ShouldContainSubstring, "chain=0")
	})
}

func TestPin(t *testing.T) {
	Convey("Given a guard pinned to an older snapshot", t, func() {
		live := Binding{ChainID: 1, SignerID: "b"}
		guard := Pin(SourceFunc(func() Binding { return live }), Binding{ChainID: 1, SignerID: "a"})

		So(guard.Snapshot().SignerID, ShouldEqual, "a")
		So(guard.Stale(), ShouldBeTrue)
		So(guard.ContractStale(), ShouldBeFalse)
	})
}
