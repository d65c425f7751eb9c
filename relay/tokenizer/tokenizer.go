package tokenizer

import (
	"encoding/json"
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	relaymodel "github.com/llmgateway/llmgateway/relay/model"
)

// Tokenizer estimates token counts locally when upstream usage is missing.
// The gpt-4 encoder is used for every provider; it over-estimates for
// non-OpenAI models but is the single supported fallback.
type Tokenizer interface {
	CountText(text string) int
	CountMessages(messages []relaymodel.Message, tools []relaymodel.Tool) int
}

type tiktokenTokenizer struct {
	encoder *tiktoken.Tiktoken
}

var defaultTokenizer Tokenizer = charEstimator{}

// Init loads the tiktoken encoder. Must be called once at startup; before
// Init (and in tests that skip it) the char-estimate fallback is used.
func Init() {
	encoder, err := tiktoken.EncodingForModel("gpt-4")
	if err != nil {
		panic(fmt.Sprintf("failed to get gpt-4 token encoder: %s, "+
			"set TIKTOKEN_CACHE_DIR to use pre-downloaded encoder files in offline environments", err.Error()))
	}
	defaultTokenizer = &tiktokenTokenizer{encoder: encoder}
}

// Default returns the process-wide tokenizer.
func Default() Tokenizer { return defaultTokenizer }

// SetDefault swaps the tokenizer; tests inject deterministic counters.
func SetDefault(t Tokenizer) { defaultTokenizer = t }

func (t *tiktokenTokenizer) CountText(text string) int {
	if text == "" {
		return 0
	}
	return len(t.encoder.Encode(text, nil, nil))
}

// CountMessages follows the OpenAI cookbook accounting: every message costs
// 3 tokens of framing plus its content, with 3 tokens priming the reply.
func (t *tiktokenTokenizer) CountMessages(messages []relaymodel.Message, tools []relaymodel.Tool) int {
	const tokensPerMessage = 3
	tokenNum := 0
	for _, message := range messages {
		tokenNum += tokensPerMessage
		tokenNum += t.CountText(message.Role)
		tokenNum += t.CountText(message.StringContent())
		if message.Name != "" {
			tokenNum += t.CountText(message.Name) + 1
		}
		for _, tc := range message.ToolCalls {
			if tc.Function != nil {
				tokenNum += t.CountText(tc.Function.Name)
				tokenNum += t.CountText(tc.Function.Arguments)
			}
		}
	}
	for _, tool := range tools {
		if tool.Function != nil {
			tokenNum += t.CountText(tool.Function.Name)
			tokenNum += t.CountText(tool.Function.Description)
			tokenNum += countJSONish(t, tool.Function.Parameters)
		}
	}
	tokenNum += 3 // every reply is primed with assistant framing
	return tokenNum
}

func countJSONish(t Tokenizer, v any) int {
	if v == nil {
		return 0
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return t.CountText(string(raw))
}

// charEstimator approximates tokens as len/4, the same floor the streaming
// path uses when the encoder is unavailable.
type charEstimator struct{}

func (charEstimator) CountText(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}

func (e charEstimator) CountMessages(messages []relaymodel.Message, tools []relaymodel.Tool) int {
	tokenNum := 0
	for _, message := range messages {
		tokenNum += 3
		tokenNum += e.CountText(message.StringContent())
		for _, tc := range message.ToolCalls {
			if tc.Function != nil {
				tokenNum += e.CountText(tc.Function.Arguments)
			}
		}
	}
	for _, tool := range tools {
		if tool.Function != nil {
			tokenNum += e.CountText(tool.Function.Name) + e.CountText(tool.Function.Description)
		}
	}
	return tokenNum + 3
}
