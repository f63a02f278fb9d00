// Package docparse loads uploaded documents and extracts their text.
//
// Supported formats are plain text, Markdown, HTML and PDF. Every failure is
// reported as core.ErrDocumentParse so the training orchestrator can fail
// the affected source.
package docparse
