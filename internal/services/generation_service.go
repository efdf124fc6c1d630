package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"packforge-backend/internal/utils"

	"go.uber.org/zap"
)

// SystemInstructions pins the backend to structured-only output. The
// extraction scanner still tolerates surrounding prose, because backends
// sometimes produce it anyway.
const SystemInstructions = `You generate Minecraft datapack file bundles. Respond with ONLY a single JSON object, no prose, no markdown fences. Schema: {"pack_name": "<short name>", "files": [{"path": "<relative file path>", "content": "<file content>"}]}. Every file path is relative to the pack root.`

// MalformedResponseError carries the raw model text for diagnostics when
// extraction, parsing or the schema check fails.
type MalformedResponseError struct {
	Raw    string
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %s", e.Reason)
}

// GeneratedFile is one validated entry of a pack.
type GeneratedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// GenerationResult is the validated file set, either returned as preview data
// or handed to the archive builder.
type GenerationResult struct {
	RootName string          `json:"pack_name"`
	Files    []GeneratedFile `json:"files"`
}

// Completer abstracts the completion backend so handlers and tests can swap
// the transport out.
type Completer interface {
	Complete(ctx context.Context, systemInstructions, userInstructions string) (string, error)
}

// GenerationService runs the prompt-to-pack pipeline downstream of the
// entitlement check.
type GenerationService struct {
	Completer Completer
}

// Generate obtains raw text from the backend and validates it into a result.
// It never touches the credit balance; charging is the caller's step so that
// preview requests stay strictly read-only.
func (s *GenerationService) Generate(ctx context.Context, prompt, packLabel string) (*GenerationResult, error) {
	raw, err := s.Completer.Complete(ctx, SystemInstructions, prompt)
	if err != nil {
		return nil, err
	}
	return ParseGenerationResponse(raw, packLabel)
}

// ParseGenerationResponse extracts the JSON payload embedded in raw model
// text and enforces the pack schema. Individual file entries that are missing
// a path or content are dropped rather than failing the whole result; a
// zero-file result is legal at this layer.
func ParseGenerationResponse(raw, fallbackLabel string) (*GenerationResult, error) {
	candidate := ExtractJSONObject(raw)

	var payload struct {
		PackName json.RawMessage `json:"pack_name"`
		Files    json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return nil, &MalformedResponseError{Raw: raw, Reason: "response is not a JSON object"}
	}
	if payload.Files == nil || string(payload.Files) == "null" {
		return nil, &MalformedResponseError{Raw: raw, Reason: "missing files array"}
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(payload.Files, &elements); err != nil {
		return nil, &MalformedResponseError{Raw: raw, Reason: "files is not an array"}
	}

	rootName := utils.SanitizePackName(fallbackLabel)
	if payload.PackName != nil {
		var name string
		if err := json.Unmarshal(payload.PackName, &name); err == nil && name != "" {
			rootName = utils.SanitizePackName(name)
		}
	}

	files := make([]GeneratedFile, 0, len(elements))
	for _, element := range elements {
		var entry struct {
			Path    json.RawMessage `json:"path"`
			Content json.RawMessage `json:"content"`
		}
		if err := json.Unmarshal(element, &entry); err != nil {
			continue
		}

		var filePath, content string
		if entry.Path == nil || json.Unmarshal(entry.Path, &filePath) != nil || filePath == "" {
			continue
		}
		if entry.Content == nil || json.Unmarshal(entry.Content, &content) != nil {
			continue
		}
		if escapesRoot(filePath) {
			zap.L().Warn("dropping generated file with unsafe path", zap.String("path", filePath))
			continue
		}
		files = append(files, GeneratedFile{Path: filePath, Content: content})
	}

	return &GenerationResult{RootName: rootName, Files: files}, nil
}

// escapesRoot rejects absolute paths and anything that climbs out of the
// archive root after normalization.
func escapesRoot(p string) bool {
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return true
	}
	if strings.Contains(p, "\\") {
		// Windows separators would survive path.Clean untouched.
		return true
	}
	cleaned := path.Clean(p)
	return cleaned == ".." || strings.HasPrefix(cleaned, "../") || cleaned == "."
}

// ExtractJSONObject locates the first complete top-level JSON object in noisy
// text using a bracket-depth scan that tracks string and escape state, so
// braces inside string literals cannot confuse it. When no complete object is
// found the full input is returned and the parse step reports the failure.
func ExtractJSONObject(raw string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(raw); i++ {
		ch := raw[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return raw[start : i+1]
				}
			}
		}
	}

	return raw
}
