package llm

// Usage reports token accounting as the provider billed it. Fields are
// pointers because providers routinely omit some or all counts.
type Usage struct {
	InputTokens       *int64 `json:"input_tokens,omitempty"`
	OutputTokens      *int64 `json:"output_tokens,omitempty"`
	ReasoningTokens   *int64 `json:"reasoning_tokens,omitempty"`
	CachedInputTokens *int64 `json:"cached_input_tokens,omitempty"`
	TotalTokens       *int64 `json:"total_tokens,omitempty"`
}

// DerivedTotalTokens prefers the reported total and otherwise sums the input
// and output counts, treating missing values as zero.
func (u Usage) DerivedTotalTokens() int64 {
	if u.TotalTokens != nil {
		return *u.TotalTokens
	}

	var total int64
	if u.InputTokens != nil {
		total += *u.InputTokens
	}

	if u.OutputTokens != nil {
		total += *u.OutputTokens
	}

	return total
}

// IsZero reports whether no count was populated at all.
func (u Usage) IsZero() bool {
	return u.InputTokens == nil && u.OutputTokens == nil && u.ReasoningTokens == nil &&
		u.CachedInputTokens == nil && u.TotalTokens == nil
}

type PricingSource string

const (
	PricingSourceConfigured       PricingSource = "configured"
	PricingSourceProviderReported PricingSource = "provider_reported"
	PricingSourceMixed            PricingSource = "mixed"
)

// Cost is the estimated charge for one response, in Currency units.
type Cost struct {
	Currency      string        `json:"currency"`
	InputCost     float64       `json:"input_cost"`
	OutputCost    float64       `json:"output_cost"`
	ReasoningCost *float64      `json:"reasoning_cost,omitempty"`
	TotalCost     float64       `json:"total_cost"`
	PricingSource PricingSource `json:"pricing_source"`
}
