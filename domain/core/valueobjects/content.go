package valueobjects

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"braindump/domain/config"
	pkgerrors "braindump/pkg/errors"
)

// IdeaContent is a value object for a node's textual content.
// The text is authored by the user; the summary is derived by the
// enrichment service and may lag behind the text.
type IdeaContent struct {
	text    string
	summary string
}

// NewIdeaContent creates content with validation using default configuration
func NewIdeaContent(text string) (IdeaContent, error) {
	return NewIdeaContentWithConfig(text, config.DefaultEngineConfig())
}

// NewIdeaContentWithConfig creates content with validation and configuration
func NewIdeaContentWithConfig(text string, cfg *config.EngineConfig) (IdeaContent, error) {
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return IdeaContent{}, pkgerrors.NewValidationError("text cannot be empty")
	}

	if utf8.RuneCountInString(text) > cfg.MaxTextLength {
		return IdeaContent{}, pkgerrors.NewValidationError(
			fmt.Sprintf("text exceeds maximum length of %d characters", cfg.MaxTextLength))
	}

	return IdeaContent{text: text}, nil
}

// ReconstructIdeaContent restores content from persisted data without
// re-running authoring validation
func ReconstructIdeaContent(text, summary string) IdeaContent {
	return IdeaContent{text: text, summary: summary}
}

// Text returns the user-authored text
func (c IdeaContent) Text() string {
	return c.text
}

// Summary returns the derived summary, empty until enrichment completes
func (c IdeaContent) Summary() string {
	return c.summary
}

// WithSummary returns a copy of the content carrying the derived summary
func (c IdeaContent) WithSummary(summary string) IdeaContent {
	return IdeaContent{text: c.text, summary: summary}
}

// IsEmpty checks if content is empty
func (c IdeaContent) IsEmpty() bool {
	return c.text == ""
}

// Equals checks if two contents have the same text.
// The derived summary is deliberately excluded: an unchanged text with a
// refreshed summary is not a user-visible edit.
func (c IdeaContent) Equals(other IdeaContent) bool {
	return c.text == other.text
}

// NeedsEnrichment reports whether the text is long enough to warrant
// asynchronous summarization
func (c IdeaContent) NeedsEnrichment(cfg *config.EngineConfig) bool {
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	}
	return utf8.RuneCountInString(c.text) >= cfg.EnrichmentThreshold
}

// WordCount returns the approximate word count
func (c IdeaContent) WordCount() int {
	return len(strings.Fields(c.text))
}

// Preview returns a truncated preview of the text
func (c IdeaContent) Preview(maxLength int) string {
	if maxLength <= 0 {
		return ""
	}
	if utf8.RuneCountInString(c.text) <= maxLength {
		return c.text
	}
	runes := []rune(c.text)
	return string(runes[:maxLength-3]) + "..."
}
