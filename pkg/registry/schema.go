// pkg/registry/schema.go
package registry

// Catalog lists the form schemas shipped with the workers.
type Catalog struct {
	Version     string  `json:"version"`
	LastUpdated string  `json:"lastUpdated"`
	Schemas     []Entry `json:"schemas"`
}

// Entry points at one schema file, relative to the catalog.
type Entry struct {
	Key         string   `json:"key"`
	File        string   `json:"file"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version"`
	Status      string   `json:"status"` // draft, published, retired
	Prestations []string `json:"prestations,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Entry statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusRetired   = "retired"
)
