package domain

import "time"

// PageImage represents a single rasterized PDF page
type PageImage struct {
	PageNumber int
	ImagePath  string // Path to temporary JPG file
	Width      int
	Height     int
}

// RenderOptions controls page rasterization.
type RenderOptions struct {
	Scale   float64 // 1.0 renders at 72 DPI
	Quality int     // JPEG quality, 1-100
}

// DPI returns the render resolution implied by Scale.
func (o RenderOptions) DPI() float64 {
	return 72 * o.Scale
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart          EventType = "start"
	EventRasterized     EventType = "rasterized" // Payload is the page count
	EventPageProcessing EventType = "page_processing"
	EventPageComplete   EventType = "page_complete"
	EventError          EventType = "error"
	EventComplete       EventType = "complete"
)

// StreamEvent represents an event emitted during processing
type StreamEvent struct {
	Type       EventType   `json:"type"`
	PageNumber int         `json:"page_number,omitempty"`
	Payload    interface{} `json:"payload,omitempty"` // Status message, page markdown or error text
	Timestamp  time.Time   `json:"timestamp"`
}

// ProcessingStats contains metadata about the conversion run
type ProcessingStats struct {
	TotalTime       time.Duration
	PagesProcessed  int
	SuccessfulPages int
	FailedPages     int
}
