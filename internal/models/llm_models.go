package models

// Prompt is one chat completion request to the local model.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}
