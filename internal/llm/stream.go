package llm

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

const maxStreamLine = 1024 * 1024

// StreamParser handles parsing of Server-Sent Events (SSE) streams
type StreamParser struct {
	scanner *bufio.Scanner
}

// NewStreamParser creates a new stream parser
func NewStreamParser(reader io.Reader) *StreamParser {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)
	return &StreamParser{
		scanner: scanner,
	}
}

// StreamChunk represents a single chunk from the stream
type StreamChunk struct {
	Content      string
	FinishReason string
	Done         bool
}

// Next reads the next chunk from the stream
func (p *StreamParser) Next() (*StreamChunk, error) {
	for p.scanner.Scan() {
		line := p.scanner.Text()

		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		if data == "[DONE]" {
			return &StreamChunk{Done: true}, nil
		}

		var resp Response
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			// Skip invalid JSON lines
			continue
		}

		if resp.Error != nil && resp.Error.Message != "" {
			return nil, errors.New(resp.Error.Message)
		}

		if len(resp.Choices) > 0 {
			choice := resp.Choices[0]
			return &StreamChunk{
				Content:      choice.Delta.Content,
				FinishReason: choice.FinishReason,
				Done:         choice.FinishReason != "",
			}, nil
		}
	}

	if err := p.scanner.Err(); err != nil {
		return nil, err
	}

	// End of stream
	return &StreamChunk{Done: true}, nil
}

// Collect reads all chunks and returns the concatenated content
func (p *StreamParser) Collect() (string, error) {
	var sb strings.Builder
	for {
		chunk, err := p.Next()
		if err != nil {
			return "", err
		}

		// The final chunk may still carry content
		sb.WriteString(chunk.Content)

		if chunk.Done {
			break
		}
	}

	return sb.String(), nil
}
