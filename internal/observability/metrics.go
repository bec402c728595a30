package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/hoc-contagion/model"
)

// SimulationCollector bundles Prometheus metrics for HOC identification and
// contagion runs. It satisfies core.HOCMetricsRecorder and
// core.SimulationMetricsRecorder so the engines can drive it directly.
type SimulationCollector struct {
	gatherer prometheus.Gatherer

	StepsTotal             prometheus.Counter
	Population             *prometheus.GaugeVec
	SkippedOrders          *prometheus.CounterVec
	IdentificationDuration prometheus.Histogram
	Components             *prometheus.GaugeVec
	RunsTotal              *prometheus.CounterVec
}

// NewSimulationCollector registers simulator metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimulationCollector(reg prometheus.Registerer) (*SimulationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	steps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hocsim_simulation_steps_total",
		Help: "Total number of contagion steps executed across all runs.",
	}), "hocsim_simulation_steps_total")
	if err != nil {
		return nil, err
	}

	population, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hocsim_population",
		Help: "Node count per status after the most recent step.",
	}, []string{"status"}), "hocsim_population")
	if err != nil {
		return nil, err
	}

	skipped, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hocsim_skipped_orders_total",
		Help: "Overlap orders that had HOCs but no configured infection rate, labeled by order.",
	}, []string{"order"}), "hocsim_skipped_orders_total")
	if err != nil {
		return nil, err
	}

	identification, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hocsim_hoc_identification_duration_seconds",
		Help:    "Duration of HOC identification passes.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}), "hocsim_hoc_identification_duration_seconds")
	if err != nil {
		return nil, err
	}

	components, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hocsim_hoc_components",
		Help: "Number of high-order components found by the last identification pass, labeled by order.",
	}, []string{"order"}), "hocsim_hoc_components")
	if err != nil {
		return nil, err
	}

	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hocsim_runs_total",
		Help: "Completed experiment runs, labeled by kind and outcome.",
	}, []string{"kind", "outcome"}), "hocsim_runs_total")
	if err != nil {
		return nil, err
	}

	return &SimulationCollector{
		gatherer:               gatherer,
		StepsTotal:             steps,
		Population:             population,
		SkippedOrders:          skipped,
		IdentificationDuration: identification,
		Components:             components,
		RunsTotal:              runs,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimulationCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimulationCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveStep counts a step and publishes its status counts.
func (c *SimulationCollector) ObserveStep(counts model.StatusCounts) {
	if c == nil {
		return
	}
	if c.StepsTotal != nil {
		c.StepsTotal.Inc()
	}
	if c.Population != nil {
		for _, st := range []model.Status{model.Susceptible, model.Infected, model.Recovered} {
			c.Population.WithLabelValues(string(st)).Set(float64(counts.Get(st)))
		}
	}
}

// IncSkippedOrder records an order that ran without a rate.
func (c *SimulationCollector) IncSkippedOrder(order int) {
	if c == nil || c.SkippedOrders == nil {
		return
	}
	c.SkippedOrders.WithLabelValues(strconv.Itoa(order)).Inc()
}

// ObserveIdentification records how long an identification pass took and
// replaces the per-order component gauges with its result.
func (c *SimulationCollector) ObserveIdentification(d time.Duration, componentsPerOrder map[int]int) {
	if c == nil {
		return
	}
	if c.IdentificationDuration != nil {
		c.IdentificationDuration.Observe(d.Seconds())
	}
	if c.Components != nil {
		c.Components.Reset()
		for order, n := range componentsPerOrder {
			c.Components.WithLabelValues(strconv.Itoa(order)).Set(float64(n))
		}
	}
}

// IncRun counts a finished run. Outcome is "ok" when err is nil and "error"
// otherwise.
func (c *SimulationCollector) IncRun(kind string, err error) {
	if c == nil || c.RunsTotal == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.RunsTotal.WithLabelValues(kind, outcome).Inc()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
