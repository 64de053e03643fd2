package patch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_FencedWithProse(t *testing.T) {
	raw := "Sure! ```{\"patches\":[{\"search\":\"A\",\"replace\":\"B\"}]}```"

	batch, err := Extract(raw)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, Patch{Search: "A", Replace: "B"}, batch[0])
}

func TestExtract_FenceIgnoresBracesInTrailingProse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "json fence",
			raw:  "```json\n{\"patches\":[{\"search\":\"Go\",\"replace\":\"Go 1.24\"}]}\n```\nI also wrapped it as \\textbf{Go} {see above}.",
		},
		{
			name: "bare fence",
			raw:  "```\n{\"patches\":[{\"search\":\"Go\",\"replace\":\"Go 1.24\"}]}\n```\nNote: {braces} here are prose.",
		},
		{
			name: "second fence after the batch",
			raw:  "```json\n{\"patches\":[{\"search\":\"Go\",\"replace\":\"Go 1.24\"}]}\n```\nResult:\n```latex\n\\textbf{Go 1.24}\n```",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := Extract(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, Batch{{Search: "Go", Replace: "Go 1.24"}}, batch)
		})
	}
}

func TestFencedObject(t *testing.T) {
	body, ok := fencedObject("  ```json\n{\"patches\":[]}\n```  ")
	assert.True(t, ok)
	assert.Equal(t, `{"patches":[]}`, body)

	body, ok = fencedObject("```{\"patches\":[]}```")
	assert.True(t, ok)
	assert.Equal(t, `{"patches":[]}`, body)

	_, ok = fencedObject(`{"patches":[]}`)
	assert.False(t, ok, "no fence")

	_, ok = fencedObject("```json\n{\"patches\":[\n```")
	assert.False(t, ok, "truncated body falls back to the brace scan")
}

func TestExtract_RealisticResponses(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Batch
	}{
		{
			name: "bare object",
			raw:  `{"patches":[{"search":"x","replace":"y"}]}`,
			want: Batch{{Search: "x", Replace: "y"}},
		},
		{
			name: "json fence with trailing note",
			raw:  "```json\n{\n  \"patches\": [\n    {\"search\": \"\\\\textbf{Go}\", \"replace\": \"\\\\textbf{Go 1.24}\"}\n  ]\n}\n```\nLet me know if you need more.",
			want: Batch{{Search: `\textbf{Go}`, Replace: `\textbf{Go 1.24}`}},
		},
		{
			name: "nested braces in latex payload",
			raw:  `Here you go: {"patches":[{"search":"\\section{Skills}","replace":"\\section{Technical Skills}"}]}`,
			want: Batch{{Search: `\section{Skills}`, Replace: `\section{Technical Skills}`}},
		},
		{
			name: "empty batch",
			raw:  `{"patches":[]}`,
			want: Batch{},
		},
		{
			name: "multiple patches keep order",
			raw:  `{"patches":[{"search":"a","replace":"b"},{"search":"b","replace":"c"}]}`,
			want: Batch{{Search: "a", Replace: "b"}, {Search: "b", Replace: "c"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		message string
	}{
		{"no braces", "I could not find anything to change.", "no JSON object"},
		{"closing before opening", "} oops {", "no JSON object"},
		{"truncated json", `{"patches":[{"search":"a","replace":"b"}`, "malformed"},
		{"two objects", `{"patches":[]} and also {"patches":[]}`, "malformed"},
		{"missing patches", `{"edits":[{"search":"a","replace":"b"}]}`, "schema"},
		{"missing replace", `{"patches":[{"search":"a"}]}`, "schema"},
		{"top-level list", `[{"search":"a","replace":"b"}]`, "schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.raw)
			require.Error(t, err)

			var extractErr *ExtractionError
			require.ErrorAs(t, err, &extractErr)
			assert.Equal(t, tt.raw, extractErr.Raw)
			assert.Contains(t, extractErr.Error(), tt.message)
		})
	}
}

func TestApply_SequentialUniqueMatches(t *testing.T) {
	doc := "Hello World"

	got, err := Apply(doc, Batch{{Search: "World", Replace: "Resume"}})
	require.NoError(t, err)
	assert.Equal(t, "Hello Resume", got)
}

func TestApply_LaterPatchesSeeEarlierEffects(t *testing.T) {
	doc := "alpha beta"
	batch := Batch{
		{Search: "alpha", Replace: "gamma"},
		{Search: "gamma beta", Replace: "delta"},
	}

	got, err := Apply(doc, batch)
	require.NoError(t, err)
	assert.Equal(t, "delta", got)
}

func TestApply_MatchesSequentialReplacement(t *testing.T) {
	doc := `\name{Jane}{Doe} \email{jane@example.com} \item Built things`
	batch := Batch{
		{Search: `\name{Jane}{Doe}`, Replace: `\name{Jane}{Smith}`},
		{Search: "jane@example.com", Replace: "jane@smith.dev"},
		{Search: `\item Built things`, Replace: `\item Built and shipped things`},
	}

	want := doc
	for _, p := range batch {
		want = strings.Replace(want, p.Search, p.Replace, 1)
	}

	got, err := Apply(doc, batch)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestApply_AmbiguousRejectsBatch(t *testing.T) {
	doc := "X X"

	got, err := Apply(doc, Batch{{Search: "X", Replace: "Y"}})
	require.Error(t, err)
	assert.Empty(t, got)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, Ambiguous, conflict.Reason)
	assert.Equal(t, 2, conflict.Count)
	assert.Equal(t, 0, conflict.Index)
	assert.Equal(t, "X X", doc)
}

func TestApply_NotFoundMidBatch(t *testing.T) {
	doc := "one two three"
	batch := Batch{
		{Search: "one", Replace: "1"},
		{Search: "four", Replace: "4"},
		{Search: "three", Replace: "3"},
	}

	_, err := Apply(doc, batch)
	require.Error(t, err)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, NotFound, conflict.Reason)
	assert.Equal(t, 1, conflict.Index)
	assert.Equal(t, "four", conflict.Search)
	assert.Contains(t, err.Error(), "not found")
}

func TestApply_AmbiguityCreatedByEarlierPatch(t *testing.T) {
	_, err := Apply("cat dog", Batch{
		{Search: "dog", Replace: "cat"},
		{Search: "cat", Replace: "bird"},
	})

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, Ambiguous, conflict.Reason)
	assert.Equal(t, 1, conflict.Index)
}

func TestApply_EmptySearchIsNotFound(t *testing.T) {
	_, err := Apply("text", Batch{{Search: "", Replace: "x"}})

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, NotFound, conflict.Reason)
}

func TestApply_LiteralMatching(t *testing.T) {
	doc := `cost: $5 (approx.) \$ [a-z]+`

	got, err := Apply(doc, Batch{{Search: "[a-z]+", Replace: "regex"}, {Search: "(approx.)", Replace: "~"}})
	require.NoError(t, err)
	assert.Equal(t, `cost: $5 ~ \$ regex`, got)
}

func TestApply_CRLFFallback(t *testing.T) {
	doc := "\\begin{itemize}\r\n\\item Go\r\n\\end{itemize}\r\n"

	got, err := Apply(doc, Batch{{Search: "\\item Go\n\\end{itemize}", Replace: "\\item Go\n\\item Rust\n\\end{itemize}"}})
	require.NoError(t, err)
	assert.Equal(t, "\\begin{itemize}\n\\item Go\n\\item Rust\n\\end{itemize}\n", got)
}

func TestApply_EmptyBatchIsIdentity(t *testing.T) {
	got, err := Apply("unchanged", Batch{})
	require.NoError(t, err)
	assert.Equal(t, "unchanged", got)
}

func TestConflictError_TruncatesSearch(t *testing.T) {
	err := &ConflictError{Reason: NotFound, Search: strings.Repeat("a", 500)}
	assert.Len(t, err.SearchPreview(), maxSearchPreview+3)
	assert.Less(t, len(err.Error()), 200)
}
