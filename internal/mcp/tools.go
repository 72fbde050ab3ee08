package mcp

// SearchInput defines the input schema for the search_courseware tool.
type SearchInput struct {
	Query       string `json:"query" jsonschema:"words every result must contain"`
	Course      string `json:"course,omitempty" jsonschema:"restrict results to one course key, e.g. course-v1:edX+DemoX+2024"`
	Library     string `json:"library,omitempty" jsonschema:"search a content library instead of courses"`
	ContentType string `json:"content_type,omitempty" jsonschema:"filter by content type: Text, Video, CAPA, Discussion, Sequence"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
}

// SearchOutput defines the output schema for the search_courseware tool.
type SearchOutput struct {
	Total   int                  `json:"total" jsonschema:"number of matching blocks"`
	Results []SearchResultOutput `json:"results" jsonschema:"the first page of matches"`
}

// SearchResultOutput is one matching block.
type SearchResultOutput struct {
	ID          string  `json:"id" jsonschema:"usage key of the block"`
	Scope       string  `json:"scope" jsonschema:"course or library key"`
	DisplayName string  `json:"display_name,omitempty"`
	Location    string  `json:"location,omitempty" jsonschema:"containing sections, outermost first"`
	ContentType string  `json:"content_type,omitempty"`
	Snippet     string  `json:"snippet,omitempty" jsonschema:"start of the block's text"`
	Score       float64 `json:"score"`
}

// ReindexInput defines the input schema for the reindex_course tool.
type ReindexInput struct {
	Course string `json:"course" jsonschema:"course or library key to reindex"`
	Since  string `json:"since,omitempty" jsonschema:"RFC 3339 time; only blocks edited since then are rewritten"`
	Wait   bool   `json:"wait,omitempty" jsonschema:"run now and report counts instead of queueing"`
}

// ReindexOutput defines the output schema for the reindex_course tool.
type ReindexOutput struct {
	Scope   string `json:"scope"`
	Queued  bool   `json:"queued"`
	TaskID  string `json:"task_id,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Indexed int    `json:"indexed"`
	Removed int    `json:"removed"`
	Skipped int    `json:"skipped"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Backend string       `json:"backend"`
	Indexes []string     `json:"indexes"`
	Queue   *QueueOutput `json:"queue,omitempty"`
}

// QueueOutput summarizes background reindex work.
type QueueOutput struct {
	Status    string `json:"status"`               // "idle", "busy" or "stopped"
	Pending   int    `json:"pending"`
	Running   int    `json:"running"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	LastError string `json:"last_error,omitempty"`
}
