package llm

import "strings"

// ModelPrice is the USD rate per million tokens for one model.
type ModelPrice struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultPrice is applied to models missing from the table.
var DefaultPrice = ModelPrice{InputPerMillion: 1.00, OutputPerMillion: 2.00}

// Pricing maps model ids to their per-million-token USD rates.
// Ids follow the provider/model convention of model-routing APIs.
var Pricing = map[string]ModelPrice{
	"openai/gpt-4o":                      {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"openai/gpt-4o-mini":                 {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"openai/gpt-4.1":                     {InputPerMillion: 2.00, OutputPerMillion: 8.00},
	"openai/gpt-4.1-mini":                {InputPerMillion: 0.40, OutputPerMillion: 1.60},
	"anthropic/claude-sonnet-4":          {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"anthropic/claude-3.5-haiku":         {InputPerMillion: 0.80, OutputPerMillion: 4.00},
	"google/gemini-2.0-flash-001":        {InputPerMillion: 0.10, OutputPerMillion: 0.40},
	"google/gemini-2.5-pro":              {InputPerMillion: 1.25, OutputPerMillion: 10.00},
	"meta-llama/llama-3.1-8b-instruct":   {InputPerMillion: 0.02, OutputPerMillion: 0.03},
	"meta-llama/llama-3.3-70b-instruct":  {InputPerMillion: 0.12, OutputPerMillion: 0.30},
	"mistralai/mistral-small-3.1-24b":    {InputPerMillion: 0.10, OutputPerMillion: 0.30},
	"deepseek/deepseek-chat-v3":          {InputPerMillion: 0.27, OutputPerMillion: 1.10},
}

// IsFree reports whether the model id is a free-tier variant.
// Routing APIs mark these with a ":free" suffix.
func IsFree(model string) bool {
	return strings.HasSuffix(model, ":free")
}

// PriceFor returns the rate for a model, falling back to DefaultPrice for
// unknown ids. Free-tier ids price at zero.
func PriceFor(model string) ModelPrice {
	if IsFree(model) {
		return ModelPrice{}
	}
	if p, ok := Pricing[model]; ok {
		return p
	}
	return DefaultPrice
}

// Cost computes the USD cost of a completion from its token counts.
func Cost(model string, promptTokens, completionTokens int) float64 {
	p := PriceFor(model)
	return float64(promptTokens)*p.InputPerMillion/1e6 + float64(completionTokens)*p.OutputPerMillion/1e6
}
