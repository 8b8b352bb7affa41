// Package metrics exposes training progress as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "gazequad"

type Training struct {
	Epochs          *prometheus.CounterVec
	Samples         *prometheus.CounterVec
	ValidationError *prometheus.GaugeVec
	ValidationCost  *prometheus.GaugeVec
	RunsCompleted   prometheus.Counter
	RunsFailed      prometheus.Counter
}

// NewTraining registers the training collectors with reg.
func NewTraining(reg prometheus.Registerer) *Training {
	var m = &Training{
		Epochs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "epochs_total",
			Help:      "Training epochs finished.",
		}, []string{"run"}),
		Samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_trained_total",
			Help:      "Samples passed through back propagation.",
		}, []string{"run"}),
		ValidationError: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "validation_error",
			Help:      "Misclassification rate on the validation set after the last epoch.",
		}, []string{"run"}),
		ValidationCost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "validation_cost",
			Help:      "Mean cross entropy on the validation set after the last epoch.",
		}, []string{"run"}),
		RunsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_completed_total",
			Help:      "Sweep runs that finished training.",
		}),
		RunsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_failed_total",
			Help:      "Sweep runs that stopped with an error.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Epochs, m.Samples, m.ValidationError, m.ValidationCost,
			m.RunsCompleted, m.RunsFailed)
	}
	return m
}

// EpochDone records the result of one epoch of a run.
func (m *Training) EpochDone(run string, samples int, validationError, validationCost float64) {
	if m == nil {
		return
	}
	m.Epochs.WithLabelValues(run).Inc()
	m.Samples.WithLabelValues(run).Add(float64(samples))
	m.ValidationError.WithLabelValues(run).Set(validationError)
	m.ValidationCost.WithLabelValues(run).Set(validationCost)
}

func (m *Training) RunDone(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.RunsFailed.Inc()
		return
	}
	m.RunsCompleted.Inc()
}

// Serve exposes gatherer on addr/metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var mux = http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	var srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	var errc = make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	logger.Info("Serving metrics", zap.String("addr", addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		var shutdownCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var err = srv.Shutdown(shutdownCtx)
		if serveErr := <-errc; !errors.Is(serveErr, http.ErrServerClosed) && err == nil {
			err = serveErr
		}
		return err
	}
}
