package models

// TokenUsage is the prompt/completion token split reported by the model API.
type TokenUsage struct {
	Prompt     int `json:"prompt_tokens"`
	Completion int `json:"completion_tokens"`
}

// Total returns the combined token count.
func (u TokenUsage) Total() int { return u.Prompt + u.Completion }

// Add accumulates another usage report into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.Prompt += other.Prompt
	u.Completion += other.Completion
}

// ModelCallResult is the outcome of one Generate call. FallbackIndex is the
// position in the model chain that answered (0 = primary). When the whole
// chain is exhausted, usage from failed attempts is still reported alongside
// the terminal error.
type ModelCallResult struct {
	ModelIDUsed   string     `json:"model_id_used"`
	Content       string     `json:"content"`
	Usage         TokenUsage `json:"token_usage"`
	FallbackIndex int        `json:"fallback_index"`
}
