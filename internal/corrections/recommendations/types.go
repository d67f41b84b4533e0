package recommendations

// Resource is one study material from the static catalogue.
type Resource struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	URL      string   `json:"url,omitempty"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}
