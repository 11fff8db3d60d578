package types

import "time"

// GalleryItemType distinguishes gallery entries.
type GalleryItemType string

const (
	GalleryItemImage     GalleryItemType = "image"
	GalleryItemComponent GalleryItemType = "component"
)

// GalleryItem is one entry of the chronological gallery of generated
// artefacts, either an image on disk or a registry component.
type GalleryItem struct {
	ID        string          `json:"id"`
	Type      GalleryItemType `json:"type"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"createdAt"`
	URL       string          `json:"url"`
	Prompt    string          `json:"prompt,omitempty"`
}
