// Package worker runs background jobs over stored subscriptions.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chainsplit/chainsplit-backend/internal/apperr"
	"github.com/chainsplit/chainsplit-backend/internal/metrics"
	"github.com/chainsplit/chainsplit-backend/internal/models"
	"github.com/chainsplit/chainsplit-backend/internal/repository"
	"github.com/chainsplit/chainsplit-backend/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Renewal outcomes.
const (
	OutcomeRenewed = "renewed"
	OutcomeExpired = "expired"
	OutcomeFailed  = "failed"
)

const defaultBatchSize = 200

// RenewalWorker periodically rolls due subscriptions into their next billing
// period. Subscriptions shared through a chain that stopped renewing are
// expired instead.
type RenewalWorker struct {
	subs     repository.SubscriptionRepositoryInterface
	chains   repository.ChainRepositoryInterface
	metrics  *metrics.Metrics
	log      *logrus.Entry
	interval time.Duration
	batch    int
	nowFunc  func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewRenewalWorker(
	subs repository.SubscriptionRepositoryInterface,
	chains repository.ChainRepositoryInterface,
	m *metrics.Metrics,
	interval time.Duration,
	log logrus.FieldLogger,
) *RenewalWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RenewalWorker{
		subs:     subs,
		chains:   chains,
		metrics:  m,
		log:      logger.Component(log, "renewals"),
		interval: interval,
		batch:    defaultBatchSize,
		nowFunc:  time.Now,
	}
}

// Start runs one pass immediately and then one per interval until Stop.
func (w *RenewalWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("renewal worker is already running")
	}
	w.running = true

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(runCtx)
	}()

	w.log.WithField("interval", w.interval).Info("Renewal worker started")
	return nil
}

// Stop cancels the loop and waits for the pass in flight.
func (w *RenewalWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.cancel()
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.log.Info("Renewal worker stopped")
		return nil
	case <-ctx.Done():
		w.log.Warn("Timeout waiting for renewal worker to stop")
		return ctx.Err()
	}
}

func (w *RenewalWorker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.log.WithError(err).Error("Renewal pass failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce processes one batch of due subscriptions and returns how many it
// touched.
func (w *RenewalWorker) RunOnce(ctx context.Context) (int, error) {
	now := w.nowFunc()
	due, err := w.subs.FindDue(now, w.batch)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range due {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		sub := &due[i]
		outcome, err := w.process(sub, now)
		w.metrics.Renewal(outcome)
		if err != nil {
			w.log.WithError(err).WithField("subscription_id", sub.ID).Error("Renewal failed")
			continue
		}
		processed++
	}

	if processed > 0 {
		w.log.WithFields(logrus.Fields{"processed": processed, "due": len(due)}).Info("Renewal pass finished")
	}
	return processed, nil
}

func (w *RenewalWorker) process(sub *models.Subscription, now time.Time) (string, error) {
	fields := logrus.Fields{
		"subscription_id": sub.ID,
		"user_id":         sub.UserID,
		"renewal_date":    sub.NextRenewalDate,
	}

	if stop, reason, err := w.chainStopsRenewal(sub); err != nil {
		return OutcomeFailed, err
	} else if stop {
		sub.Status = models.SubscriptionExpired
		if err := w.subs.Update(sub); err != nil {
			return OutcomeFailed, err
		}
		w.log.WithFields(fields).WithField("reason", reason).Info("Subscription expired")
		return OutcomeExpired, nil
	}

	for !sub.NextRenewalDate.After(now) {
		previous := sub.NextRenewalDate
		sub.Renew()
		if !sub.NextRenewalDate.After(previous) {
			return OutcomeFailed, fmt.Errorf("frequency %q does not advance", sub.Frequency)
		}
	}
	if err := w.subs.Update(sub); err != nil {
		return OutcomeFailed, err
	}

	// Stands in for the user notification.
	w.log.WithFields(fields).WithField("next_renewal_date", sub.NextRenewalDate).Info("renewal due")
	return OutcomeRenewed, nil
}

// chainStopsRenewal reports whether the chain a subscription is shared through
// no longer renews it. A chain that no longer exists does not stop renewal.
func (w *RenewalWorker) chainStopsRenewal(sub *models.Subscription) (bool, string, error) {
	if !sub.IsShared || sub.ChainID == nil {
		return false, "", nil
	}
	chain, err := w.chains.FindByID(*sub.ChainID)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	switch {
	case chain.Status != models.ChainActive:
		return true, "chain " + string(chain.Status), nil
	case !chain.Rules.AutoRenew:
		return true, "auto renew disabled", nil
	}
	return false, "", nil
}
