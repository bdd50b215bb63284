// Package models defines core data structures for datasets, chunks, queries,
// and retrieval results.
package models

import "time"

// Dataset is a named, isolated collection of chunks with user-facing metadata.
// DocumentCount is the number of distinct source documents, not chunks; it is
// recomputed from chunk metadata after every mutation rather than trusted as
// an incremental counter.
type Dataset struct {
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	Author             string    `json:"author,omitempty"`
	Topic              string    `json:"topic,omitempty"`
	LinkedInURL        string    `json:"linkedin_url,omitempty"`
	CustomInstructions string    `json:"custom_instructions,omitempty"`
	DocumentCount      int       `json:"document_count"`
	CreatedAt          time.Time `json:"created_at"`
	LastUpdateDate     time.Time `json:"last_update_date"`
}

// DeleteStatus reports the outcome of a dataset deletion. The collection and
// the metadata record are removed independently; a partial failure (one
// succeeded, the other did not) is a distinct state the caller must surface.
type DeleteStatus struct {
	CollectionDeleted bool   `json:"collection_deleted"`
	MetadataDeleted   bool   `json:"metadata_deleted"`
	Detail            string `json:"detail,omitempty"`
}

// Complete reports whether both the collection and the metadata record were removed.
func (s DeleteStatus) Complete() bool {
	return s.CollectionDeleted && s.MetadataDeleted
}
