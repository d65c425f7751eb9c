package cache

import "time"

// Recorder captures a live stream's frames with relative timestamps so the
// recording can later be replayed with approximate original pacing.
type Recorder struct {
	start  time.Time
	chunks []StreamChunk
}

func NewRecorder() *Recorder {
	return &Recorder{start: time.Now()}
}

// Record appends one outgoing frame. Event is empty for plain data frames.
func (r *Recorder) Record(event, data string) {
	r.chunks = append(r.chunks, StreamChunk{
		Data:      data,
		Event:     event,
		EventId:   len(r.chunks),
		Timestamp: time.Since(r.start).Milliseconds(),
	})
}

// Finish seals the recording. Only completed streams are cacheable.
func (r *Recorder) Finish(finishReason string) *StreamRecording {
	return &StreamRecording{
		Chunks: r.chunks,
		Metadata: StreamMetadata{
			FinishReason: finishReason,
			TotalChunks:  len(r.chunks),
			Duration:     time.Since(r.start).Milliseconds(),
			Completed:    true,
		},
	}
}
