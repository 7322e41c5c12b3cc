package protocol

// Decision actions produced by the research loop.
const (
	ActionSearch = "search"
	ActionAnswer = "answer"
)

// RetryQuery marks a decision synthesized from unparseable model output.
const RetryQuery = "RETRY"

// Freshness is a coarse recency filter for web search results.
type Freshness string

const (
	FreshnessOneDay   Freshness = "oneDay"
	FreshnessOneWeek  Freshness = "oneWeek"
	FreshnessOneMonth Freshness = "oneMonth"
	FreshnessOneYear  Freshness = "oneYear"
	FreshnessNoLimit  Freshness = "noLimit"
)

// Valid reports whether f is one of the known freshness values.
func (f Freshness) Valid() bool {
	switch f {
	case FreshnessOneDay, FreshnessOneWeek, FreshnessOneMonth, FreshnessOneYear, FreshnessNoLimit:
		return true
	}
	return false
}

// Decision is the research loop's choice between searching and answering.
// Query holds the search query or, for ActionAnswer, the final answer.
type Decision struct {
	Action    string    `json:"action"`
	Freshness Freshness `json:"freshness,omitempty"`
	Query     string    `json:"query"`
}

// IsRetry reports whether the decision is the synthesized retry marker.
func (d Decision) IsRetry() bool {
	return d.Action == ActionSearch && d.Query == RetryQuery
}
