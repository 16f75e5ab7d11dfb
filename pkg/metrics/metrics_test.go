package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewManager(t *testing.T) {
	Convey("Given a dedicated registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithLatencyBuckets([]float64{1, 10}),
				WithDeployment("ci", 31337),
				WithRegisterer(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				m.operationsStarted.WithLabelValues("create").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				So(families[0].GetName(), ShouldStartWith, "test_unit_")
				var labels []*dto.LabelPair
				for _, f := range families {
					if f.GetName() == "test_unit_operations_started_total" {
						labels = f.GetMetric()[0].GetLabel()
					}
				}
				So(labels, ShouldHaveLength, 3)
				So(labels[0].GetName(), ShouldEqual, "deployment")
				So(labels[0].GetValue(), ShouldEqual, "ci")
				So(labels[1].GetName(), ShouldEqual, "kind")
				So(labels[2].GetName(), ShouldEqual, "mock_chain_id")
				So(labels[2].GetValue(), ShouldEqual, "31337")
			})
		})
	})
}

func TestRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When an operation starts and finishes", func() {
			RecordOperationStarted("submit")

			Convey("Then the in-flight gauge follows it", func() {
				So(testutil.ToFloat64(globalManager.operationsInFlight.WithLabelValues("submit")), ShouldEqual, 1)
				RecordOperationFinished("submit", "committed", 12)
				So(testutil.ToFloat64(globalManager.operationsInFlight.WithLabelValues("submit")), ShouldEqual, 0)
			})
		})

		Convey("When counters are recorded", func() {
			before := testutil.ToFloat64(globalManager.statisticsFallbacks.WithLabelValues("signature"))
			RecordStatisticsFallback("signature")
			RecordOperationDropped("refresh")
			RecordOperationStale("create")
			RecordOperationCommitted("create")
			RecordOperationFailed("submit", "reverted")
			RecordEncryptCall("location")
			RecordEncryptFailure()
			RecordInstanceCreation("ready")
			RecordSignatureCache("hit")
			RecordWalletEvent("chain_changed")
			RecordRateLimited("/api/v1/projects")

			Convey("Then they increase", func() {
				So(testutil.ToFloat64(globalManager.statisticsFallbacks.WithLabelValues("signature")), ShouldEqual, before+1)
			})
		})

		Convey("When gauges are updated", func() {
			UpdateProjectsCached(3)
			UpdateWalletChainID(31337)
			UpdateQueueSize(2)
			UpdateQueueCapacity(8)
			UpdateQueueUtilization(0.25)

			Convey("Then they hold the last value", func() {
				So(testutil.ToFloat64(globalManager.projectsCached), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.walletChainID), ShouldEqual, 31337)
				So(testutil.ToFloat64(globalManager.queueUtilization), ShouldEqual, 0.25)
			})
		})

		Convey("Then the custom registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
