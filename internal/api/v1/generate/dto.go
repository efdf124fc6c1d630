package generate

import "packforge-backend/internal/services"

// GenerateRequest is the body of the generation endpoint. Preview mode
// returns the structured file list instead of the archive and never consumes
// credit.
type GenerateRequest struct {
	Prompt   string `json:"prompt" binding:"required"`
	PackName string `json:"pack_name"`
	Preview  bool   `json:"preview"`
}

// PreviewResponse is the structured form of a generated pack.
type PreviewResponse struct {
	PackName string                   `json:"pack_name"`
	Files    []services.GeneratedFile `json:"files"`
}

// ChatRequest is the body of the chat pass-through endpoint.
type ChatRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// ChatResponse carries the raw completion text.
type ChatResponse struct {
	Text string `json:"text"`
}

// MalformedData attaches the raw model text to a malformed-response error for
// debuggability. Logging-grade detail, not a stable contract.
type MalformedData struct {
	Raw string `json:"raw"`
}

// UpstreamData carries sanitized upstream diagnostics.
type UpstreamData struct {
	Details string `json:"details,omitempty"`
}
