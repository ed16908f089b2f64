package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const recountJobTimeout = 30 * time.Second

// RecountWorker drains the recount queue on a schedule and reconciles every
// counter once an hour.
type RecountWorker struct {
	cron      *cron.Cron
	recounter *Recounter
}

// NewRecountWorker registers both jobs. retrySpec uses cron syntax or
// descriptors such as "@every 1m".
func NewRecountWorker(recounter *Recounter, retrySpec string) (*RecountWorker, error) {
	w := &RecountWorker{cron: cron.New(), recounter: recounter}

	if _, err := w.cron.AddFunc(retrySpec, w.flush); err != nil {
		return nil, fmt.Errorf("schedule recount retry %q: %w", retrySpec, err)
	}
	if _, err := w.cron.AddFunc("@hourly", w.reconcile); err != nil {
		return nil, fmt.Errorf("schedule reconcile: %w", err)
	}
	return w, nil
}

func (w *RecountWorker) Start() {
	w.cron.Start()
	log.Info().Msg("recount worker started")
}

// Stop waits for a running job to finish.
func (w *RecountWorker) Stop() {
	<-w.cron.Stop().Done()
}

func (w *RecountWorker) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), recountJobTimeout)
	defer cancel()
	if err := w.recounter.Flush(ctx); err != nil {
		log.Error().Err(err).Int("pending", w.recounter.Queue().Len()).Msg("recount retry failed")
	}
}

func (w *RecountWorker) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), recountJobTimeout)
	defer cancel()
	if err := w.recounter.ReconcileAll(ctx); err != nil {
		log.Error().Err(err).Msg("counter reconciliation failed")
		return
	}
	log.Debug().Msg("counters reconciled")
}
