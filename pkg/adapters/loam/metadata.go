package loam

// DiagramMetadata is the frontmatter of a diagram document.
// The document body is the description text.
type DiagramMetadata struct {
	ID    string   `json:"id" mapstructure:"id"`
	Title string   `json:"title,omitempty" mapstructure:"title"`
	Tags  []string `json:"tags,omitempty" mapstructure:"tags"`
}
