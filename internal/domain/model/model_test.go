package model

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDimensions(t *testing.T) {
	Convey("Given the fixed dimension order", t, func() {
		dims := AllDimensions()

		Convey("Then it matches the wire order", func() {
			So(dims, ShouldHaveLength, DimensionCount)
			names := make([]string, 0, len(dims))
			for _, d := range dims {
				names = append(names, d.String())
			}
			So(names, ShouldResemble, []string{"location", "quality", "amenities", "transport", "value", "potential"})
		})

		Convey("Then names parse back", func() {
			d, ok := ParseDimension("transport")
			So(ok, ShouldBeTrue)
			So(d, ShouldEqual, DimensionTransport)
			_, ok = ParseDimension("view")
			So(ok, ShouldBeFalse)
			So(Dimension(9).String(), ShouldEqual, "dimension(9)")
		})
	})
}

func TestStatisticsAdd(t *testing.T) {
	Convey("Given two ratings", t, func() {
		var stats ProjectStatistics
		stats.Add(Scores{8, 9, 7, 8, 8, 8})
		stats.Add(Scores{4, 4, 4, 4, 4, 4})

		Convey("Then totals are additive", func() {
			So(stats.RatingCount, ShouldEqual, 2)
			So(stats.TotalScore, ShouldEqual, 72)
			So(stats.DimensionTotals[DimensionQuality], ShouldEqual, 13)
		})
	})
}

func TestProjectExpired(t *testing.T) {
	Convey("Given a project with a deadline", t, func() {
		deadline := time.Unix(1_700_000_000, 0)
		p := Project{Deadline: deadline}

		So(p.Expired(deadline), ShouldBeFalse)
		So(p.Expired(deadline.Add(time.Second)), ShouldBeTrue)
	})
}
