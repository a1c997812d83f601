package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Action completed successfully
	SymbolFail     = "✗" // Action failed
	SymbolPending  = "○" // Not yet started
	SymbolProgress = "◐" // In progress
	SymbolComplete = "●" // Done (alternative to success)
	SymbolSkipped  = "⊘" // Skipped
)
