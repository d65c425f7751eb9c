package worker

import (
	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"gorm.io/gorm"

	"github.com/llmgateway/llmgateway/common/config"
	"github.com/llmgateway/llmgateway/common/logger"
	"github.com/llmgateway/llmgateway/model"
	"github.com/llmgateway/llmgateway/monitor"
)

const creditLockKey = "credit_processing"

// SweepCredits applies unprocessed log costs to organization credits and
// per-key usage inside one locked transaction. Lock contention with another
// worker replica is not an error; the next tick retries.
func SweepCredits(owner string) error {
	ok, err := model.AcquireLock(creditLockKey, owner)
	if err != nil {
		monitor.WorkerSweepsTotal.WithLabelValues("failed").Inc()
		return errors.Wrap(err, "acquire credit lock")
	}
	if !ok {
		monitor.WorkerSweepsTotal.WithLabelValues("contended").Inc()
		return nil
	}
	defer func() {
		if err := model.ReleaseLock(creditLockKey, owner); err != nil {
			logger.Logger.Warn("failed to release credit lock", zap.Error(err))
		}
	}()

	if err := model.DB.Transaction(sweepBatch); err != nil {
		monitor.WorkerSweepsTotal.WithLabelValues("failed").Inc()
		return errors.Wrap(err, "credit sweep")
	}
	monitor.WorkerSweepsTotal.WithLabelValues("processed").Inc()
	return nil
}

// sweepBatch reads one batch of unprocessed logs, aggregates cost per
// organization (credits mode only) and per API key (all modes), applies both
// and stamps the rows processed. Cached hits and zero-cost rows are stamped
// without billing.
func sweepBatch(tx *gorm.DB) error {
	logs, err := model.GetUnprocessedLogs(tx, config.CreditBatchSize)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		return nil
	}

	orgCost := make(map[string]float64)
	keyCost := make(map[string]float64)
	ids := make([]int, 0, len(logs))
	for _, l := range logs {
		ids = append(ids, l.Id)
		if l.Cached || l.Cost <= 0 {
			continue
		}
		if l.ApiKeyId != "" {
			keyCost[l.ApiKeyId] += l.Cost
		}
		if l.UsedMode == model.ModeCredits && l.OrganizationId != "" {
			orgCost[l.OrganizationId] += l.Cost
		}
	}

	for orgId, amount := range orgCost {
		if err := model.DeductCredits(tx, orgId, amount); err != nil {
			return err
		}
	}
	for keyId, amount := range keyCost {
		if err := model.IncrementUsage(tx, keyId, amount); err != nil {
			return err
		}
	}
	if err := model.MarkLogsProcessed(tx, ids); err != nil {
		return err
	}

	logger.Logger.Debug("credit sweep complete",
		zap.Int("logs", len(logs)),
		zap.Int("organizations", len(orgCost)),
		zap.Int("keys", len(keyCost)))
	return nil
}
