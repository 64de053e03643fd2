package llm

import "unicode/utf8"

// EstimateTokens approximates a token count at four characters per token,
// for providers that do not report usage.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// Usage returns the billed token counts of resp, estimating from prompt and
// completion text when the provider reported none.
func Usage(prompt string, resp *Response) (in, out int) {
	if resp == nil {
		return EstimateTokens(prompt), 0
	}
	in, out = resp.InputTokens, resp.OutputTokens
	if in == 0 {
		in = EstimateTokens(prompt)
	}
	if out == 0 {
		out = EstimateTokens(resp.Text)
	}
	return in, out
}
