package domain

// Track is an immutable descriptor of a playable track. For searched tracks
// the fields come from the search result; for direct URLs the URL doubles as
// the title until the engine resolves metadata.
type Track struct {
	ID       string
	Title    string
	Uploader string
	URL      string
}
