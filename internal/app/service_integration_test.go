package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/fheprop/internal/adapters/fhe"
	"github.com/okian/fheprop/internal/adapters/signer"
	service "github.com/okian/fheprop/internal/app"
	"github.com/okian/fheprop/internal/config"
	"github.com/okian/fheprop/internal/domain/flight"
	"github.com/okian/fheprop/internal/domain/model"
	"github.com/okian/fheprop/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	sepoliaChainID = uint64(11155111)
	hardhatKey0    = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

// liveConfig connects to a wallet on sepolia holding hardhat account 0.
func liveConfig() *config.Config {
	cfg := config.New(context.Background())
	cfg.FallbackToMock = false
	cfg.WalletChainID = sepoliaChainID
	cfg.WalletPrivateKeys = []string{hardhatKey0}
	cfg.MockAccount = hardhatAccount0
	cfg.BlockTimeMS = 1
	return cfg
}

// eventually polls cond until it holds or the deadline passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// settled reports whether the wallet's chain is reconciled: the encryption
// instance is ready for it and no refresh is running.
func settled(svc *service.Service, chainID uint64) func() bool {
	return func() bool {
		es := svc.EncryptionState()
		return es.ChainID == chainID &&
			es.Status == fhe.StatusReady &&
			!svc.Coordinator().InFlight(flight.KindRefresh)
	}
}

func newProject(name string) model.NewProject {
	return model.NewProject{
		Name:        name,
		Description: "Loft conversion near the old harbour",
		Location:    "Porto",
		Dimensions:  `["Location","Quality","Amenities","Transport","Value","Potential"]`,
		Duration:    24 * time.Hour,
	}
}

func TestService_EncryptedRatingFlow(t *testing.T) {
	Convey("Given a service connected to a live wallet on sepolia", t, func() {
		ctx := context.Background()
		svc := service.New(liveConfig())
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		So(eventually(settled(svc, sepoliaChainID)), ShouldBeTrue)

		info, ok := svc.Signer()
		So(ok, ShouldBeTrue)
		So(info.Source, ShouldEqual, signer.SourceWallet)
		So(info.Address, ShouldEqual, hardhatAccount0)

		Convey("When a project is created and rated", func() {
			created, err := svc.Coordinator().CreateProject(ctx, newProject("Harbour Lofts"))
			So(err, ShouldBeNil)
			So(created.Status, ShouldEqual, rating.StatusCommitted)

			submitted, err := svc.Coordinator().SubmitRating(ctx, created.ProjectID, model.Scores{8, 9, 7, 6, 8, 10})
			So(err, ShouldBeNil)

			Convey("Then the rating goes through the encrypted path", func() {
				So(submitted.Status, ShouldEqual, rating.StatusCommitted)
				So(svc.Coordinator().IsMockPath(sepoliaChainID), ShouldBeFalse)
				So(svc.Coordinator().RatedLocally(created.ProjectID), ShouldBeTrue)
			})

			Convey("And the creator reads the decrypted statistics", func() {
				stats, err := svc.Coordinator().ProjectStatistics(ctx, created.ProjectID)
				So(err, ShouldBeNil)
				So(stats.Fallback, ShouldBeFalse)
				So(stats.RatingCount, ShouldEqual, uint64(1))
				So(stats.TotalScore, ShouldEqual, uint64(48))
				So(stats.SignatureAddress, ShouldEqual, hardhatAccount0)
			})
		})
	})
}

func TestService_ChainSwitchReconciles(t *testing.T) {
	Convey("Given a service with a project on sepolia", t, func() {
		ctx := context.Background()
		svc := service.New(liveConfig())
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		So(eventually(settled(svc, sepoliaChainID)), ShouldBeTrue)

		_, err := svc.Coordinator().CreateProject(ctx, newProject("Riverside"))
		So(err, ShouldBeNil)
		So(svc.Coordinator().State().Projects, ShouldNotBeEmpty)

		Convey("When the wallet switches to the mock chain", func() {
			_, err := svc.SwitchChain(ctx, 31337)
			So(err, ShouldBeNil)

			Convey("Then the encryption instance follows the chain", func() {
				So(eventually(settled(svc, 31337)), ShouldBeTrue)
			})

			Convey("And sepolia's projects are no longer shown", func() {
				st := svc.Coordinator().State()
				So(st.Binding.ChainID, ShouldEqual, uint64(31337))
				for _, p := range st.Projects {
					So(p.Name, ShouldNotEqual, "Riverside")
				}
			})

			Convey("And ratings there take the plaintext path", func() {
				So(eventually(settled(svc, 31337)), ShouldBeTrue)
				mockProject, err := svc.Coordinator().CreateProject(ctx, newProject("Dev Tower"))
				So(err, ShouldBeNil)
				out, err := svc.Coordinator().SubmitRating(ctx, mockProject.ProjectID, model.Scores{5, 5, 5, 5, 5, 5})
				So(err, ShouldBeNil)
				So(out.Status, ShouldEqual, rating.StatusCommitted)
				So(svc.Coordinator().IsMockPath(31337), ShouldBeTrue)
			})
		})

		Convey("When the wallet disconnects", func() {
			svc.Disconnect(ctx)

			Convey("Then operations need a connection again", func() {
				_, err := svc.Coordinator().CreateProject(ctx, newProject("Orphan"))
				So(err, ShouldNotBeNil)
				So(svc.Current().ChainID, ShouldEqual, uint64(0))
			})
		})
	})
}

func TestService_SignatureStore(t *testing.T) {
	Convey("Given a service persisting signatures in sqlite", t, func() {
		ctx := context.Background()
		cfg := liveConfig()
		cfg.SignatureStore = ":memory:"
		svc := service.New(cfg)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		So(eventually(settled(svc, sepoliaChainID)), ShouldBeTrue)

		created, err := svc.Coordinator().CreateProject(ctx, newProject("Vault"))
		So(err, ShouldBeNil)

		Convey("Then repeated statistics reads reuse one authorization", func() {
			first, err := svc.Coordinator().ProjectStatistics(ctx, created.ProjectID)
			So(err, ShouldBeNil)
			second, err := svc.Coordinator().ProjectStatistics(ctx, created.ProjectID)
			So(err, ShouldBeNil)
			So(first.Fallback, ShouldBeFalse)
			So(second.AuthorizedUntil.Equal(first.AuthorizedUntil), ShouldBeTrue)
		})
	})
}
