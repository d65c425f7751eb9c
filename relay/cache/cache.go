package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/Laisky/zap"
	gocache "github.com/patrickmn/go-cache"

	"github.com/llmgateway/llmgateway/common"
	"github.com/llmgateway/llmgateway/common/logger"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
)

const (
	responseKeyPrefix = "llmgateway:cache:response:"
	streamKeyPrefix   = "llmgateway:cache:stream:"
)

// Fingerprint derives the cache key from the request fields that affect the
// completion. Field order is fixed so identical requests hash identically.
func Fingerprint(request *relaymodel.GeneralRequest) string {
	normalized := struct {
		Model            string                     `json:"model"`
		Messages         []relaymodel.Message       `json:"messages"`
		Temperature      *float64                   `json:"temperature"`
		MaxTokens        *int                       `json:"max_tokens"`
		TopP             *float64                   `json:"top_p"`
		FrequencyPenalty *float64                   `json:"frequency_penalty"`
		PresencePenalty  *float64                   `json:"presence_penalty"`
		ResponseFormat   *relaymodel.ResponseFormat `json:"response_format"`
	}{
		Model:            request.Model,
		Messages:         request.Messages,
		Temperature:      request.Temperature,
		MaxTokens:        request.MaxTokens,
		TopP:             request.TopP,
		FrequencyPenalty: request.FrequencyPenalty,
		PresencePenalty:  request.PresencePenalty,
		ResponseFormat:   request.ResponseFormat,
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// StreamChunk is one recorded SSE frame. Timestamp is milliseconds from
// stream start, used to approximate pacing on replay.
type StreamChunk struct {
	Data      string `json:"data"`
	Event     string `json:"event,omitempty"`
	EventId   int    `json:"event_id"`
	Timestamp int64  `json:"timestamp"`
}

type StreamMetadata struct {
	FinishReason string `json:"finish_reason"`
	TotalChunks  int    `json:"total_chunks"`
	Duration     int64  `json:"duration"`
	Completed    bool   `json:"completed"`
}

// StreamRecording is a completed stream captured for replay.
type StreamRecording struct {
	Chunks   []StreamChunk  `json:"chunks"`
	Metadata StreamMetadata `json:"metadata"`
}

// Store keeps the one-shot and streaming caches. Redis when available, an
// in-process TTL cache otherwise; entries are soft and per-replica divergence
// is acceptable.
type Store struct {
	local *gocache.Cache
}

func NewStore() *Store {
	return &Store{local: gocache.New(time.Minute, 5*time.Minute)}
}

func (s *Store) GetResponse(key string) ([]byte, bool) {
	if key == "" {
		return nil, false
	}
	if common.IsRedisEnabled() {
		raw, err := common.RedisGet(responseKeyPrefix + key)
		if err != nil {
			return nil, false
		}
		return []byte(raw), true
	}
	if v, ok := s.local.Get(responseKeyPrefix + key); ok {
		return v.([]byte), true
	}
	return nil, false
}

func (s *Store) SetResponse(key string, body []byte, ttl time.Duration) {
	if key == "" {
		return
	}
	if common.IsRedisEnabled() {
		if err := common.RedisSet(responseKeyPrefix+key, string(body), ttl); err != nil {
			logger.Logger.Warn("failed to cache response", zap.Error(err))
		}
		return
	}
	s.local.Set(responseKeyPrefix+key, body, ttl)
}

func (s *Store) GetStream(key string) (*StreamRecording, bool) {
	if key == "" {
		return nil, false
	}
	if common.IsRedisEnabled() {
		raw, err := common.RedisGet(streamKeyPrefix + key)
		if err != nil {
			return nil, false
		}
		var rec StreamRecording
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, false
		}
		return &rec, true
	}
	if v, ok := s.local.Get(streamKeyPrefix + key); ok {
		return v.(*StreamRecording), true
	}
	return nil, false
}

func (s *Store) SetStream(key string, rec *StreamRecording, ttl time.Duration) {
	if key == "" || rec == nil || !rec.Metadata.Completed {
		return
	}
	if common.IsRedisEnabled() {
		raw, err := json.Marshal(rec)
		if err != nil {
			return
		}
		if err := common.RedisSet(streamKeyPrefix+key, string(raw), ttl); err != nil {
			logger.Logger.Warn("failed to cache stream recording", zap.Error(err))
		}
		return
	}
	s.local.Set(streamKeyPrefix+key, rec, ttl)
}
