package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Laisky/zap"

	"github.com/llmgateway/llmgateway/common/config"
	"github.com/llmgateway/llmgateway/common/logger"
	"github.com/llmgateway/llmgateway/common/random"
	"github.com/llmgateway/llmgateway/model"
	"github.com/llmgateway/llmgateway/monitor"
)

// Worker drains the log queue into the database and runs the periodic credit
// sweep and auto top-up passes. Several replicas may run at once; the database
// lock rows keep the sweeps single-flight.
type Worker struct {
	owner string
	stop  chan struct{}
	done  chan struct{}
}

func New() *Worker {
	host, _ := os.Hostname()
	return &Worker{
		owner: fmt.Sprintf("%s-%s", host, random.GetRandomString(8)),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start launches the tick loop.
func (w *Worker) Start() {
	go w.run()
}

// Stop signals the loop and waits up to the shutdown timeout for the current
// tick to drain.
func (w *Worker) Stop() {
	close(w.stop)
	select {
	case <-w.done:
	case <-time.After(time.Duration(config.ShutdownTimeoutSec) * time.Second):
		logger.Logger.Warn("worker did not drain before deadline")
	}
}

func (w *Worker) run() {
	defer close(w.done)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	logger.Logger.Info("worker started", zap.String("owner", w.owner))

	tick := 0
	for {
		select {
		case <-w.stop:
			// Final drain so queued records survive a restart even when the
			// queue is the in-memory fallback.
			w.drain(context.Background())
			return
		case <-ticker.C:
		}
		tick++

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		w.drain(ctx)
		monitor.LogQueueDepth.Set(float64(model.QueueDepth(ctx)))
		cancel()

		if tick%config.CreditBatchIntervalTicks == 0 {
			if err := SweepCredits(w.owner); err != nil {
				logger.Logger.Error("credit sweep failed", zap.Error(err))
			}
		}
		if tick%config.AutoTopUpIntervalTicks == 0 {
			if err := ProcessAutoTopUp(w.owner); err != nil {
				logger.Logger.Error("auto top-up pass failed", zap.Error(err))
			}
		}
	}
}

// drain moves queued log records into the database. Retained content is
// stripped again here: the ingress side already strips, but records queued
// before an organization flipped retention off must not land with content.
func (w *Worker) drain(ctx context.Context) {
	retention := make(map[string]string)
	for {
		logs, err := model.DequeueLogs(ctx, config.CreditBatchSize)
		if err != nil {
			logger.Logger.Error("dequeue logs failed", zap.Error(err))
			return
		}
		if len(logs) == 0 {
			return
		}

		for _, l := range logs {
			level, ok := retention[l.OrganizationId]
			if !ok {
				level = model.RetentionAll
				if org, err := model.GetOrganizationById(l.OrganizationId); err == nil {
					level = org.RetentionLevel
				}
				retention[l.OrganizationId] = level
			}
			if level == model.RetentionNone {
				l.StripRetainedContent()
			}
		}

		if err := model.InsertLogs(logs); err != nil {
			logger.Logger.Error("insert logs failed, requeueing batch",
				zap.Int("count", len(logs)), zap.Error(err))
			model.RequeueLogs(ctx, logs)
			return
		}
		if len(logs) < config.CreditBatchSize {
			return
		}
	}
}
