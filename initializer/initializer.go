// Package initializer initializes the ad provider once per process and marks the
// readiness signal when it completes.
package initializer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
	"github.com/monsterutils/adrefresh/adprovider"
	"github.com/monsterutils/adrefresh/config"
	"github.com/monsterutils/adrefresh/metrics"
	"github.com/monsterutils/adrefresh/readiness"
)

var errNoAdapterReady = errors.New("no mediation adapter is ready")

type Initializer struct {
	provider adprovider.Provider
	signal   *readiness.Signal
	metrics  metrics.MetricsEngine
	cfg      config.Initializer

	once sync.Once
	done chan struct{}

	mu       sync.Mutex
	status   adprovider.InitializationStatus
	attempts int
}

func New(provider adprovider.Provider, signal *readiness.Signal, metricsEngine metrics.MetricsEngine, cfg config.Initializer) *Initializer {
	return &Initializer{
		provider: provider,
		signal:   signal,
		metrics:  metricsEngine,
		cfg:      cfg,
		done:     make(chan struct{}),
	}
}

// Start initializes the provider in the background. Calls after the first do nothing.
// A failed initialization is logged and still marks the signal ready.
func (i *Initializer) Start(ctx context.Context) {
	i.once.Do(func() {
		go i.run(ctx)
	})
}

// Done is closed once the initialization finished or ctx ended.
func (i *Initializer) Done() <-chan struct{} {
	return i.done
}

// Status returns the last reported adapter statuses.
func (i *Initializer) Status() adprovider.InitializationStatus {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// Attempts returns how many times the provider was asked to initialize.
func (i *Initializer) Attempts() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.attempts
}

func (i *Initializer) run(ctx context.Context) {
	defer close(i.done)

	var policy backoff.BackOff = backoff.NewConstantBackOff(time.Duration(i.cfg.RetryIntervalMS) * time.Millisecond)
	policy = backoff.WithContext(backoff.WithMaxRetries(policy, uint64(i.cfg.MaxRetries)), ctx)

	operation := func() error {
		status, err := i.initialize(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		i.report(status)
		if len(status) > 0 && !status.AnyReady() {
			return errNoAdapterReady
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		glog.Warningf("Ad provider initialization incomplete: %v. Retrying in %v", err, wait)
	}

	err := backoff.RetryNotify(operation, policy, notify)
	if ctx.Err() != nil {
		glog.Warningf("Ad provider initialization abandoned: %v", ctx.Err())
		return
	}
	if err != nil {
		glog.Errorf("Ad provider initialization failed: %v", err)
	}
	i.signal.MarkReady()
	glog.Info("Ad provider initialization complete")
}

// initialize runs one provider initialization and waits for its report.
func (i *Initializer) initialize(ctx context.Context) (adprovider.InitializationStatus, error) {
	i.mu.Lock()
	i.attempts++
	i.mu.Unlock()

	reports := make(chan adprovider.InitializationStatus, 1)
	i.provider.Initialize(ctx, func(status adprovider.InitializationStatus) {
		reports <- status
	})

	select {
	case status := <-reports:
		return status, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (i *Initializer) report(status adprovider.InitializationStatus) {
	i.mu.Lock()
	i.status = status
	i.mu.Unlock()

	for _, name := range status.AdapterNames() {
		s := status[name]
		glog.Infof("[%s, InitializationState: %s, Description: %s, Latency: %v]", name, s.State, s.Description, s.Latency)
		i.metrics.RecordAdapterInit(name, s.State, s.Latency)
	}
}
