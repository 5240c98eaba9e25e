package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should use the default refresh interval", func() {
				So(manager, ShouldNotBeNil)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(5*time.Second),
				WithPrometheusRegistry(registry),
			)
			manager.chainMutations.WithLabelValues("insert").Inc()
			manager.recomputeLatency.WithLabelValues("Hoofdwedstrijd").Observe(0.7)

			Convey("Then metric names carry the namespace and latencies the buckets", func() {
				So(manager.RefreshInterval(), ShouldEqual, 5*time.Second)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := map[string]int{}
				for _, f := range families {
					names[f.GetName()] = len(f.GetMetric())
					if f.GetName() == "test_namespace_recompute_latency_milliseconds" {
						So(f.GetMetric()[0].GetHistogram().GetBucket(), ShouldHaveLength, 3)
					}
				}
				So(names, ShouldContainKey, "test_namespace_chain_mutations_total")
				So(names, ShouldContainKey, "test_namespace_recompute_latency_milliseconds")
			})
		})

		Convey("When empty or invalid options are given", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithHistogramBuckets(nil),
				WithRefreshInterval(0),
				WithPrometheusRegistry(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "raceseries")
				So(manager.histogramBuckets, ShouldResemble, defaultLatencyBuckets)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
				So(manager.registry, ShouldEqual, registry)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When chain mutations are recorded", func() {
			inserts := testutil.ToFloat64(globalManager.chainMutations.WithLabelValues("insert"))
			removes := testutil.ToFloat64(globalManager.chainMutations.WithLabelValues("remove"))
			integrity := testutil.ToFloat64(globalManager.chainIntegrityErrors)
			RecordChainInsert()
			RecordChainInsert()
			RecordChainRemove()
			RecordChainIntegrityError()

			Convey("Then the counters advance", func() {
				So(testutil.ToFloat64(globalManager.chainMutations.WithLabelValues("insert")), ShouldEqual, inserts+2)
				So(testutil.ToFloat64(globalManager.chainMutations.WithLabelValues("remove")), ShouldEqual, removes+1)
				So(testutil.ToFloat64(globalManager.chainIntegrityErrors), ShouldEqual, integrity+1)
			})
		})

		Convey("When races are rescored", func() {
			rescored := testutil.ToFloat64(globalManager.racesRescored)
			failures := testutil.ToFloat64(globalManager.scoringErrors)
			RecordRecomputeLatency("Hoofdwedstrijd", 1.5)
			RecordRecomputeLatency("Deelname", 0.2)
			RecordScoringError()

			Convey("Then every rescored race is counted", func() {
				So(testutil.ToFloat64(globalManager.racesRescored), ShouldEqual, rescored+2)
				So(testutil.ToFloat64(globalManager.scoringErrors), ShouldEqual, failures+1)
			})
		})

		Convey("When store operations are recorded", func() {
			failed := testutil.ToFloat64(globalManager.storeErrors.WithLabelValues("memory", "CreateNode"))
			RecordStoreOperation("memory", "CreateNode", 0.1, false)
			RecordStoreOperation("memory", "CreateNode", 0.1, true)

			Convey("Then only failures count as errors", func() {
				So(testutil.ToFloat64(globalManager.storeErrors.WithLabelValues("memory", "CreateNode")),
					ShouldEqual, failed+1)
			})
		})

		Convey("When entity totals are updated", func() {
			UpdateEntityTotal("persons", 12)
			UpdateEntityTotal("persons", 7)

			Convey("Then the gauge holds the last value", func() {
				So(testutil.ToFloat64(globalManager.entityTotals.WithLabelValues("persons")), ShouldEqual, 7)
			})
		})

		Convey("When HTTP, error and system metrics are recorded", func() {
			So(func() {
				RecordHTTPRequest("/persons", "GET", "200")
				RecordHTTPRequestDuration("/persons", "GET", "200", 3.2)
				RecordErrorByComponent("api", "not_found")
				RecordErrorByEndpoint("/persons/{id}", "GET", "not_found")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)

			Convey("Then the custom registry exposes them", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				for _, f := range families {
					So(strings.HasPrefix(f.GetName(), "raceseries_"), ShouldBeTrue)
				}
			})
		})

		Convey("When the global refresh interval is read", func() {
			Convey("Then it matches the global manager", func() {
				So(RefreshInterval(), ShouldEqual, globalManager.RefreshInterval())
			})
		})
	})
}

func TestMetricsEdgeCases(t *testing.T) {
	Convey("Given metrics edge cases", t, func() {
		Convey("When recording zero, negative and empty values", func() {
			So(func() {
				UpdateEntityTotal("races", 0)
				UpdateEntityTotal("races", -1)
				RecordRecomputeLatency("", 0)
				RecordStoreOperation("", "", 0, false)
				RecordHTTPRequest("", "", "200")
				RecordErrorByComponent("", "")
				RecordErrorByEndpoint("", "", "")
			}, ShouldNotPanic)
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given metrics concurrency", t, func() {
		Convey("When recording metrics concurrently", func() {
			before := testutil.ToFloat64(globalManager.chainMutations.WithLabelValues("insert"))
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 100; j++ {
						RecordChainInsert()
						RecordStoreOperation("sqlite", "Node", float64(j), false)
						RecordHTTPRequest("/standings/{sex}", "GET", "200")
					}
				}()
			}
			wg.Wait()

			Convey("Then no increment is lost", func() {
				So(testutil.ToFloat64(globalManager.chainMutations.WithLabelValues("insert")), ShouldEqual, before+1000)
			})
		})
	})
}
