package model

import (
	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/llmgateway/llmgateway/common"
	"github.com/llmgateway/llmgateway/common/helper"
)

// Log is the per-request usage record. Exactly one row exists per terminated
// request, including failed and canceled ones. ProcessedAt is set exactly once
// by the worker sweep.
type Log struct {
	Id             int    `json:"id" gorm:"primaryKey;autoIncrement"`
	RequestId      string `json:"request_id" gorm:"index;default:''"`
	OrganizationId string `json:"organization_id" gorm:"index"`
	ProjectId      string `json:"project_id" gorm:"index"`
	ApiKeyId       string `json:"api_key_id" gorm:"index"`

	UsedMode          string `json:"used_mode" gorm:"default:''"`
	UsedModel         string `json:"used_model" gorm:"index;default:''"`
	UsedProvider      string `json:"used_provider" gorm:"index;default:''"`
	RequestedModel    string `json:"requested_model" gorm:"default:''"`
	RequestedProvider string `json:"requested_provider" gorm:"default:''"`

	Duration     int64 `json:"duration" gorm:"default:0"` // ms
	ResponseSize int   `json:"response_size" gorm:"default:0"`

	Messages         *string `json:"messages"`
	Content          *string `json:"content"`
	ReasoningContent *string `json:"reasoning_content"`
	ToolResults      *string `json:"tool_results"`

	FinishReason        string `json:"finish_reason" gorm:"default:''"`
	UnifiedFinishReason string `json:"unified_finish_reason" gorm:"default:''"`

	PromptTokens     int `json:"prompt_tokens" gorm:"default:0"`
	CompletionTokens int `json:"completion_tokens" gorm:"default:0"`
	TotalTokens      int `json:"total_tokens" gorm:"default:0"`
	ReasoningTokens  int `json:"reasoning_tokens" gorm:"default:0"`
	CachedTokens     int `json:"cached_tokens" gorm:"default:0"`

	HasError     bool    `json:"has_error" gorm:"default:false"`
	Streamed     bool    `json:"streamed" gorm:"default:false"`
	Canceled     bool    `json:"canceled" gorm:"default:false"`
	ErrorDetails *string `json:"error_details"`

	Cost            float64 `json:"cost" gorm:"type:decimal(20,10);default:0"`
	InputCost       float64 `json:"input_cost" gorm:"type:decimal(20,10);default:0"`
	OutputCost      float64 `json:"output_cost" gorm:"type:decimal(20,10);default:0"`
	CachedInputCost float64 `json:"cached_input_cost" gorm:"type:decimal(20,10);default:0"`
	RequestCost     float64 `json:"request_cost" gorm:"type:decimal(20,10);default:0"`
	EstimatedCost   bool    `json:"estimated_cost" gorm:"default:false"`
	Cached          bool    `json:"cached" gorm:"default:false"`

	Source        string  `json:"source" gorm:"default:''"`
	CustomHeaders *string `json:"custom_headers"`
	RawRequest    *string `json:"raw_request"`
	RawResponse   *string `json:"raw_response"`

	ProcessedAt *int64 `json:"processed_at" gorm:"index"`
	CreatedAt   int64  `json:"created_at" gorm:"bigint;index"`
}

// StripRetainedContent drops message/content fields for organizations with
// retentionLevel=none. The row itself is kept for accounting.
func (l *Log) StripRetainedContent() {
	l.Messages = nil
	l.Content = nil
	l.ReasoningContent = nil
	l.ToolResults = nil
	l.RawRequest = nil
	l.RawResponse = nil
}

// InsertLogs bulk-inserts one worker batch.
func InsertLogs(logs []*Log) error {
	if len(logs) == 0 {
		return nil
	}
	for _, l := range logs {
		if l.CreatedAt == 0 {
			l.CreatedAt = helper.GetTimestamp()
		}
	}
	if err := LOG_DB.CreateInBatches(logs, 100).Error; err != nil {
		return errors.Wrap(err, "bulk insert logs")
	}
	return nil
}

// GetUnprocessedLogs selects the oldest unprocessed logs inside the sweep
// transaction. On engines that support it the rows are locked with
// FOR UPDATE SKIP LOCKED so concurrent sweeps never double-bill.
func GetUnprocessedLogs(tx *gorm.DB, limit int) ([]*Log, error) {
	q := tx.Where("processed_at IS NULL").Order("created_at ASC").Limit(limit)
	if !common.UsingSQLite {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var logs []*Log
	if err := q.Find(&logs).Error; err != nil {
		return nil, errors.Wrap(err, "select unprocessed logs")
	}
	return logs, nil
}

// MarkLogsProcessed stamps processedAt for the swept rows.
func MarkLogsProcessed(tx *gorm.DB, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	now := helper.GetTimestamp()
	err := tx.Model(&Log{}).Where("id IN ?", ids).Update("processed_at", now).Error
	return errors.Wrap(err, "mark logs processed")
}

// GetLogByRequestId fetches one log row, mainly for tests and debugging.
func GetLogByRequestId(requestId string) (*Log, error) {
	var log Log
	if err := LOG_DB.Where("request_id = ?", requestId).First(&log).Error; err != nil {
		return nil, errors.Wrapf(err, "get log by request id %s", requestId)
	}
	return &log, nil
}
