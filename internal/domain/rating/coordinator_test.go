package rating_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fheprop/internal/adapters/chain"
	"github.com/okian/fheprop/internal/adapters/fhe"
	"github.com/okian/fheprop/internal/domain/flight"
	"github.com/okian/fheprop/internal/domain/model"
	"github.com/okian/fheprop/internal/domain/rating"
)

type harness struct {
	ctx      context.Context
	clock    *fakeClock
	backend  *fhe.MockBackend
	mock     *gatedContract
	sepolia  *gatedContract
	sessions *fakeSessions
	enc      *recordingEncryption
	creator  *testSigner
	alice    *testSigner
	coord    *rating.Coordinator
}

func newHarness() *harness {
	h := &harness{
		ctx:     context.Background(),
		clock:   &fakeClock{now: time.Unix(1_700_000_000, 0)},
		backend: fhe.NewMockBackend(),
		creator: newTestSigner("creator"),
		alice:   newTestSigner("alice"),
	}
	h.mock = gate(chain.NewSimulated(common.HexToAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3"), mockChain,
		chain.WithMockMode(true), chain.WithClock(h.clock.Now)))
	h.sepolia = gate(chain.NewSimulated(common.HexToAddress("0x9f1ac54bef0dd2f6f3462ea0fa94fc62300d3a8e"), sepoliaChain,
		chain.WithVerifier(h.backend), chain.WithClock(h.clock.Now)))
	h.enc = &recordingEncryption{inst: mockInstance(h.backend, sepoliaChain)}
	h.sessions = &fakeSessions{chainID: mockChain, contract: h.mock, signer: h.creator, enc: h.enc}
	h.coord = rating.NewCoordinator(h.sessions, rating.WithClock(h.clock.Now))
	return h
}

// submitAsync starts a submission and waits until its transaction is sent.
func (h *harness) submitAsync(c *gatedContract, projectID uint64) <-chan rating.Outcome {
	done := make(chan rating.Outcome, 1)
	go func() {
		out, _ := h.coord.SubmitRating(h.ctx, projectID, goodScores)
		done <- out
	}()
	<-c.sent
	return done
}

func (h *harness) createOn(c *gatedContract, chainID uint64) uint64 {
	h.sessions.switchTo(chainID, c)
	out, err := h.coord.CreateProject(h.ctx, project("Harbor Lofts", time.Hour))
	So(err, ShouldBeNil)
	<-c.sent
	return out.ProjectID
}

func TestCreateProject(t *testing.T) {
	Convey("Given a coordinator on the mock chain", t, func() {
		h := newHarness()

		Convey("When a project is created", func() {
			out, err := h.coord.CreateProject(h.ctx, project("Harbor Lofts", time.Hour))
			<-h.mock.sent

			Convey("Then it commits and the refreshed list contains it", func() {
				So(err, ShouldBeNil)
				So(out.Status, ShouldEqual, rating.StatusCommitted)
				So(out.ProjectID, ShouldEqual, uint64(1))
				So(out.ProjectCount, ShouldEqual, 1)
				So(out.OpID, ShouldNotBeEmpty)

				st := h.coord.State()
				So(st.Projects, ShouldHaveLength, 1)
				So(st.Projects[0].Name, ShouldEqual, "Harbor Lofts")
				So(st.Projects[0].Creator, ShouldEqual, h.creator.Address())
				So(st.Message, ShouldStartWith, "Project created! Block:")
				So(st.InFlight[flight.KindCreate], ShouldBeFalse)
			})
		})

		Convey("When the chain changes before confirmation", func() {
			h.mock.hold()
			done := make(chan rating.Outcome, 1)
			go func() {
				out, _ := h.coord.CreateProject(h.ctx, project("Harbor Lofts", time.Hour))
				done <- out
			}()
			<-h.mock.sent
			h.sessions.switchTo(sepoliaChain, h.sepolia)
			h.mock.open()
			out := <-done

			Convey("Then the result is discarded", func() {
				So(out.Status, ShouldEqual, rating.StatusStale)
				So(h.coord.State().Message, ShouldEqual, "Project created (context changed)")
				So(h.coord.State().Projects, ShouldBeEmpty)
			})
		})

		Convey("When a second create starts while one is in flight", func() {
			h.mock.hold()
			done := make(chan rating.Outcome, 1)
			go func() {
				out, _ := h.coord.CreateProject(h.ctx, project("Harbor Lofts", time.Hour))
				done <- out
			}()
			<-h.mock.sent
			out, err := h.coord.CreateProject(h.ctx, project("Second Tower", time.Hour))

			Convey("Then the second call is dropped and nothing else is sent", func() {
				So(errors.Is(err, rating.ErrInFlight), ShouldBeTrue)
				So(out.Status, ShouldEqual, rating.StatusDropped)
				So(len(h.mock.sent), ShouldEqual, 0)

				h.mock.open()
				first := <-done
				So(first.Status, ShouldEqual, rating.StatusCommitted)
				So(h.coord.State().Projects, ShouldHaveLength, 1)
				So(h.coord.InFlight(flight.KindCreate), ShouldBeFalse)
			})
		})

		Convey("When the input is invalid", func() {
			_, err := h.coord.CreateProject(h.ctx, project("  ", time.Hour))
			So(errors.Is(err, rating.ErrInvalidProject), ShouldBeTrue)
			_, err = h.coord.CreateProject(h.ctx, project("x", 0))
			So(errors.Is(err, rating.ErrInvalidProject), ShouldBeTrue)
		})

		Convey("When there is no signer", func() {
			h.sessions.useSigner(nil)
			_, err := h.coord.CreateProject(h.ctx, project("Harbor Lofts", time.Hour))
			So(errors.Is(err, rating.ErrNoSigner), ShouldBeTrue)
		})
	})
}

func TestSubmitRatingStaleness(t *testing.T) {
	Convey("Given a project on the mock chain", t, func() {
		h := newHarness()
		id := h.createOn(h.mock, mockChain)

		Convey("When the account switches during an in-flight submit", func() {
			h.mock.hold()
			done := h.submitAsync(h.mock, id)
			h.sessions.useSigner(h.alice)
			h.mock.open()
			out := <-done

			Convey("Then the rating is not recorded for either binding", func() {
				So(out.Status, ShouldEqual, rating.StatusStale)
				So(h.coord.State().Message, ShouldEqual, "Rating submitted (context changed)")
				So(h.coord.State().Rated, ShouldBeEmpty)
				h.sessions.useSigner(h.creator)
				So(h.coord.State().Rated, ShouldBeEmpty)
			})
		})

		Convey("When the chain switches away and back before confirmation", func() {
			h.mock.hold()
			done := h.submitAsync(h.mock, id)
			h.sessions.switchTo(sepoliaChain, h.sepolia)
			h.sessions.switchTo(mockChain, h.mock)
			h.mock.open()
			out := <-done

			Convey("Then the settle-time binding matches and the rating commits", func() {
				So(out.Status, ShouldEqual, rating.StatusCommitted)
				So(h.coord.State().Rated, ShouldResemble, []uint64{id})
				So(h.coord.RatedLocally(id), ShouldBeTrue)
			})
		})

		Convey("When the chain is switched while a submit settles", func() {
			h.mock.hold()
			done := h.submitAsync(h.mock, id)
			h.sessions.switchTo(sepoliaChain, h.sepolia)
			h.mock.open()
			out := <-done

			Convey("Then only the settle-time binding's data is visible", func() {
				So(out.Status, ShouldEqual, rating.StatusStale)
				st := h.coord.State()
				So(st.Binding.ChainID, ShouldEqual, sepoliaChain)
				So(st.Projects, ShouldBeEmpty)
				So(st.Rated, ShouldBeEmpty)
			})
		})
	})
}

func TestSubmitRatingRules(t *testing.T) {
	Convey("Given a project on the mock chain", t, func() {
		h := newHarness()
		id := h.createOn(h.mock, mockChain)

		Convey("When the same account rates twice", func() {
			first, err1 := h.coord.SubmitRating(h.ctx, id, goodScores)
			<-h.mock.sent
			second, err2 := h.coord.SubmitRating(h.ctx, id, goodScores)

			Convey("Then the first is accepted and the second rejected", func() {
				So(err1, ShouldBeNil)
				So(first.Status, ShouldEqual, rating.StatusCommitted)
				So(errors.Is(err2, chain.ErrAlreadyRated), ShouldBeTrue)
				So(second.Status, ShouldEqual, rating.StatusFailed)
				So(h.coord.State().Message, ShouldStartWith, "Failed to submit rating:")
			})
		})

		Convey("When a second submit starts while one is in flight", func() {
			h.mock.hold()
			done := h.submitAsync(h.mock, id)
			out, err := h.coord.SubmitRating(h.ctx, id, goodScores)

			Convey("Then the second call is dropped without touching the first", func() {
				So(errors.Is(err, rating.ErrInFlight), ShouldBeTrue)
				So(out.Status, ShouldEqual, rating.StatusDropped)
				So(h.coord.InFlight(flight.KindSubmit), ShouldBeTrue)

				Convey("And other kinds still run", func() {
					refreshed, err := h.coord.RefreshProjects(h.ctx)
					So(err, ShouldBeNil)
					So(refreshed.Status, ShouldEqual, rating.StatusCommitted)
				})

				h.mock.open()
				So((<-done).Status, ShouldEqual, rating.StatusCommitted)
				So(h.coord.InFlight(flight.KindSubmit), ShouldBeFalse)
			})
		})

		Convey("When the rating window has closed", func() {
			h.sessions.switchTo(mockChain, h.mock)
			short, err := h.coord.CreateProject(h.ctx, project("Short Window", time.Second))
			So(err, ShouldBeNil)
			<-h.mock.sent
			h.clock.Advance(2 * time.Second)

			out, err := h.coord.SubmitRating(h.ctx, short.ProjectID, goodScores)

			Convey("Then the revert is surfaced and nothing is recorded", func() {
				So(errors.Is(err, chain.ErrProjectExpired), ShouldBeTrue)
				So(out.Status, ShouldEqual, rating.StatusFailed)
				So(h.coord.RatedLocally(short.ProjectID), ShouldBeFalse)
				rated, err := h.coord.HasUserRated(h.ctx, short.ProjectID, h.creator.Address())
				So(err, ShouldBeNil)
				So(rated, ShouldBeFalse)
			})
		})
	})
}

func TestSubmissionPath(t *testing.T) {
	Convey("Given a project on each chain", t, func() {
		h := newHarness()

		Convey("When rating on the mock chain", func() {
			id := h.createOn(h.mock, mockChain)
			out, err := h.coord.SubmitRating(h.ctx, id, goodScores)

			Convey("Then encryption is never consulted", func() {
				So(err, ShouldBeNil)
				So(out.Status, ShouldEqual, rating.StatusCommitted)
				So(h.enc.instances.Load(), ShouldEqual, 0)
				So(h.enc.encrypted(), ShouldBeEmpty)
			})
		})

		Convey("When rating on a real chain", func() {
			id := h.createOn(h.sepolia, sepoliaChain)
			h.sessions.useSigner(h.alice)
			out, err := h.coord.SubmitRating(h.ctx, id, goodScores)

			Convey("Then six values are encrypted in dimension order and opened by the contract", func() {
				So(err, ShouldBeNil)
				So(out.Status, ShouldEqual, rating.StatusCommitted)
				So(h.enc.encrypted(), ShouldResemble, goodScores[:])

				scores, err := h.coord.UserRating(h.ctx, id, h.alice.Address())
				So(err, ShouldBeNil)
				So(scores, ShouldResemble, goodScores)
			})
		})

		Convey("When the third encryption fails on a real chain", func() {
			id := h.createOn(h.sepolia, sepoliaChain)
			h.enc.failAt = 3
			out, err := h.coord.SubmitRating(h.ctx, id, goodScores)

			Convey("Then the sequence stops there and nothing is sent", func() {
				So(errors.Is(err, errRelayerDown), ShouldBeTrue)
				So(err.Error(), ShouldStartWith, "encrypt amenities:")
				So(out.Status, ShouldEqual, rating.StatusFailed)
				So(h.enc.encrypts.Load(), ShouldEqual, 3)
				So(h.enc.encrypted(), ShouldResemble, goodScores[:2])
				So(len(h.sepolia.sent), ShouldEqual, 0)
				So(h.coord.RatedLocally(id), ShouldBeFalse)
				So(h.coord.State().Message, ShouldStartWith, "Failed to submit rating: encrypt amenities:")
			})
		})

		Convey("When the encryption instance is not ready on a real chain", func() {
			id := h.createOn(h.sepolia, sepoliaChain)
			h.enc.err = fhe.ErrNotReady
			out, err := h.coord.SubmitRating(h.ctx, id, goodScores)

			Convey("Then nothing is sent", func() {
				So(errors.Is(err, rating.ErrEncryptionNotReady), ShouldBeTrue)
				So(out.Status, ShouldEqual, rating.StatusFailed)
				So(len(h.sepolia.sent), ShouldEqual, 0)
			})
		})
	})
}

func TestRefreshProjects(t *testing.T) {
	Convey("Given an empty contract", t, func() {
		h := newHarness()

		Convey("When refreshing", func() {
			out, err := h.coord.RefreshProjects(h.ctx)

			Convey("Then the list is empty and no project is fetched", func() {
				So(err, ShouldBeNil)
				So(out.ProjectCount, ShouldEqual, 0)
				So(h.coord.State().Projects, ShouldBeEmpty)
				So(h.mock.infoCalls.Load(), ShouldEqual, 0)
			})
		})

		Convey("When nothing is deployed on the chain", func() {
			h.sessions.switchTo(5, nil)
			_, err := h.coord.RefreshProjects(h.ctx)

			Convey("Then the list is cleared with a deployment message", func() {
				So(errors.Is(err, rating.ErrNotDeployed), ShouldBeTrue)
				So(h.coord.State().Message, ShouldEqual, "PropertyRating deployment not found for chainId=5.")
				So(h.coord.State().Projects, ShouldBeEmpty)
			})
		})

		Convey("When a refresh is in flight and the chain loses its deployment", func() {
			h.mock.holdCount()
			done := make(chan rating.Outcome, 1)
			go func() {
				out, _ := h.coord.RefreshProjects(h.ctx)
				done <- out
			}()
			<-h.mock.counting
			before := h.coord.State().Message
			h.sessions.switchTo(5, nil)
			out, err := h.coord.RefreshProjects(h.ctx)

			Convey("Then the second refresh is dropped before touching state", func() {
				So(errors.Is(err, rating.ErrInFlight), ShouldBeTrue)
				So(out.Status, ShouldEqual, rating.StatusDropped)
				So(h.coord.State().Message, ShouldEqual, before)

				h.mock.openCount()
				So((<-done).Status, ShouldEqual, rating.StatusStale)
				So(h.coord.State().Message, ShouldEqual, before)
				So(h.coord.InFlight(flight.KindRefresh), ShouldBeFalse)
			})
		})

		Convey("When the contract changes while projects load", func() {
			_, err := h.coord.CreateProject(h.ctx, project("A", time.Hour))
			So(err, ShouldBeNil)
			<-h.mock.sent
			_, err = h.mock.Contract.CreateProject(h.ctx, h.creator, project("B", time.Hour))
			So(err, ShouldBeNil)

			other := gate(chain.NewSimulated(common.HexToAddress("0xe7f1725e7734ce288f8367e1bb143e90bb3f0512"), mockChain,
				chain.WithMockMode(true), chain.WithClock(h.clock.Now)))
			h.mock.holdCount()
			done := make(chan rating.Outcome, 1)
			go func() {
				out, _ := h.coord.RefreshProjects(h.ctx)
				done <- out
			}()
			<-h.mock.counting
			h.sessions.switchTo(mockChain, other)
			h.mock.openCount()
			out := <-done

			Convey("Then the loaded list is discarded", func() {
				So(out.Status, ShouldEqual, rating.StatusStale)
				So(h.coord.State().Projects, ShouldBeEmpty)

				h.sessions.switchTo(mockChain, h.mock)
				So(h.coord.State().Projects, ShouldHaveLength, 1)
			})
		})

		Convey("When several projects exist", func() {
			for _, name := range []string{"A", "B", "C"} {
				_, err := h.coord.CreateProject(h.ctx, project(name, time.Hour))
				So(err, ShouldBeNil)
				<-h.mock.sent
			}

			Convey("Then they are listed by id", func() {
				st := h.coord.State()
				So(st.Projects, ShouldHaveLength, 3)
				for i, p := range st.Projects {
					So(p.ID, ShouldEqual, uint64(i+1))
				}
			})

			Convey("And they are hidden after a chain change but not after an account change", func() {
				h.sessions.useSigner(h.alice)
				So(h.coord.State().Projects, ShouldHaveLength, 3)
				h.sessions.switchTo(sepoliaChain, h.sepolia)
				So(h.coord.State().Projects, ShouldBeEmpty)
			})
		})
	})
}

func TestProjectStatistics(t *testing.T) {
	Convey("Given a rated project", t, func() {
		h := newHarness()
		id := h.createOn(h.mock, mockChain)
		_, err := h.coord.SubmitRating(h.ctx, id, model.Scores{8, 8, 8, 8, 8, 8})
		So(err, ShouldBeNil)
		<-h.mock.sent
		h.sessions.useSigner(h.alice)
		_, err = h.coord.SubmitRating(h.ctx, id, model.Scores{4, 4, 4, 4, 4, 4})
		So(err, ShouldBeNil)
		<-h.mock.sent
		h.sessions.useSigner(h.creator)

		Convey("When the creator asks", func() {
			stats, err := h.coord.ProjectStatistics(h.ctx, id)

			Convey("Then real averages are returned", func() {
				So(err, ShouldBeNil)
				So(stats.Fallback, ShouldBeFalse)
				So(stats.TotalScore, ShouldEqual, uint64(72))
				So(stats.RatingCount, ShouldEqual, uint64(2))
				So(stats.AverageScore, ShouldAlmostEqual, 6.0)
				So(stats.Average(model.DimensionValue), ShouldAlmostEqual, 6.0)
				So(stats.SignatureAddress, ShouldEqual, h.creator.Address().Hex())
			})
		})

		Convey("When someone else asks", func() {
			h.sessions.useSigner(h.alice)
			stats, err := h.coord.ProjectStatistics(h.ctx, id)

			Convey("Then the flagged placeholder is returned", func() {
				So(err, ShouldBeNil)
				So(stats.Fallback, ShouldBeTrue)
				So(stats.Reason, ShouldEqual, "unauthorized")
				So(stats.TotalScore, ShouldEqual, uint64(150))
				So(stats.AverageScore, ShouldAlmostEqual, 8.3)
			})
		})

		Convey("When the encryption instance is missing", func() {
			h.enc.err = fhe.ErrNotReady
			stats, err := h.coord.ProjectStatistics(h.ctx, id)

			So(err, ShouldBeNil)
			So(stats.Fallback, ShouldBeTrue)
			So(stats.Reason, ShouldEqual, rating.ReasonEncryptionNotReady)
		})

		Convey("The raters are listed", func() {
			raters, err := h.coord.ProjectRaters(h.ctx, id)
			So(err, ShouldBeNil)
			So(raters.Raters, ShouldResemble, []common.Address{h.creator.Address(), h.alice.Address()})
		})
	})
}

func TestMockMode(t *testing.T) {
	Convey("Given deployments on each chain", t, func() {
		h := newHarness()

		Convey("Then the mock deployment reports plaintext mode", func() {
			on, err := h.coord.MockMode(h.ctx)
			So(err, ShouldBeNil)
			So(on, ShouldBeTrue)
		})

		Convey("Then the real deployment does not", func() {
			h.sessions.switchTo(sepoliaChain, h.sepolia)
			on, err := h.coord.MockMode(h.ctx)
			So(err, ShouldBeNil)
			So(on, ShouldBeFalse)
		})

		Convey("Then an undeployed chain is an error", func() {
			h.sessions.switchTo(5, nil)
			_, err := h.coord.MockMode(h.ctx)
			So(errors.Is(err, rating.ErrNotDeployed), ShouldBeTrue)
		})
	})
}
