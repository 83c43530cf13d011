package names

const (
	Normalize    = "normalize"
	Dedupe       = "dedupe"
	QueryFilter  = "filter_query"
	WindowFilter = "filter_window"
	Redirect     = "redirect"
	ExtractText  = "extract_text"
	Related      = "related"
	Summary      = "summary"
)

// Discard reasons reported by the normalizer.
const (
	ReasonMissingTitle = "missing_title"
	ReasonMissingLink  = "missing_link"
	ReasonInvalidLink  = "invalid_link"
	ReasonOutOfWindow  = "out_of_window"
	ReasonUndated      = "undated"
	ReasonNoMatch      = "no_query_match"
)
