package model

import (
	"context"
	"encoding/json"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/llmgateway/llmgateway/common"
	"github.com/llmgateway/llmgateway/common/logger"
)

const logQueueKey = "llmgateway:log_queue"

// logQueueChan buffers records in process when Redis is unavailable. Enqueue
// never blocks the request path; on a full buffer the record is dropped and
// counted as lost.
var logQueueChan = make(chan *Log, 10000)

// EnqueueLog hands a finished request record to the worker. Called from the
// hot path, so failures degrade to the in-process channel rather than error.
func EnqueueLog(log *Log) {
	if common.IsRedisEnabled() {
		raw, err := json.Marshal(log)
		if err == nil {
			if err := common.RDB.RPush(context.Background(), logQueueKey, raw).Err(); err == nil {
				return
			}
			logger.Logger.Warn("redis enqueue failed, falling back to channel",
				zap.String("request_id", log.RequestId))
		}
	}
	select {
	case logQueueChan <- log:
	default:
		logger.Logger.Error("log queue full, dropping record",
			zap.String("request_id", log.RequestId))
	}
}

// DequeueLogs pulls up to max pending records, preferring Redis.
func DequeueLogs(ctx context.Context, max int) ([]*Log, error) {
	if common.IsRedisEnabled() {
		return dequeueRedis(ctx, max)
	}
	return dequeueChan(max), nil
}

func dequeueRedis(ctx context.Context, max int) ([]*Log, error) {
	raws, err := common.RDB.LPopCount(ctx, logQueueKey, max).Result()
	if err != nil {
		if common.IsRedisNil(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "pop log queue")
	}
	logs := make([]*Log, 0, len(raws))
	for _, raw := range raws {
		var log Log
		if err := json.Unmarshal([]byte(raw), &log); err != nil {
			logger.Logger.Error("malformed log queue entry, dropping", zap.Error(err))
			continue
		}
		logs = append(logs, &log)
	}
	return logs, nil
}

func dequeueChan(max int) []*Log {
	var logs []*Log
	for len(logs) < max {
		select {
		case log := <-logQueueChan:
			logs = append(logs, log)
		default:
			return logs
		}
	}
	return logs
}

// RequeueLogs returns records to the head of the queue after a failed insert
// so the next drain retries them instead of losing the rows.
func RequeueLogs(ctx context.Context, logs []*Log) {
	if common.IsRedisEnabled() {
		// Push in reverse so the batch keeps its original order at the head.
		for i := len(logs) - 1; i >= 0; i-- {
			raw, err := json.Marshal(logs[i])
			if err != nil {
				continue
			}
			if err := common.RDB.LPush(ctx, logQueueKey, raw).Err(); err == nil {
				continue
			}
			logger.Logger.Warn("redis requeue failed, falling back to channel",
				zap.String("request_id", logs[i].RequestId))
			requeueChan(logs[i])
		}
		return
	}
	for _, log := range logs {
		requeueChan(log)
	}
}

func requeueChan(log *Log) {
	select {
	case logQueueChan <- log:
	default:
		logger.Logger.Error("log queue full, dropping record",
			zap.String("request_id", log.RequestId))
	}
}

// QueueDepth reports the pending record count, for metrics and drain checks.
func QueueDepth(ctx context.Context) int {
	if common.IsRedisEnabled() {
		if n, err := common.RDB.LLen(ctx, logQueueKey).Result(); err == nil {
			return int(n)
		}
	}
	return len(logQueueChan)
}
