package model

import "time"

// Category classifies what kind of collectible an item is.
type Category string

const (
	CategoryBooks Category = "Books"
	CategoryMusic Category = "Music"
	CategoryCards Category = "Cards"
	CategoryArt   Category = "Art"
)

// Item represents a collectible item submitted for appraisal. Everything
// except Title is optional; experts fill gaps from photos and identifiers.
type Item struct {
	ID          string            `json:"id,omitempty"`
	Category    Category          `json:"category,omitempty"` // owner's hint, not authoritative
	Title       string            `json:"title"`
	Author      string            `json:"author,omitempty"` // author, artist, or maker
	Publisher   string            `json:"publisher,omitempty"`
	Year        int               `json:"year,omitempty"`
	Format      string            `json:"format,omitempty"` // hardcover, LP, PSA slab, ...
	Condition   string            `json:"condition,omitempty"`
	Identifiers map[string]string `json:"identifiers,omitempty"` // isbn, catalog_no, cert_no
	Photos      []string          `json:"photos,omitempty"`
	Notes       string            `json:"notes,omitempty"`
}

// Evaluation is the combined outcome of one appraisal request.
type Evaluation struct {
	ID           string             `json:"id"`
	Item         Item               `json:"item"`
	Consensus    *ConsensusResult   `json:"consensus"`
	Price        *ConsolidatedPrice `json:"price,omitempty"`
	Experts      SourceAccounting   `json:"experts"`
	PriceSources SourceAccounting   `json:"price_sources"`
	DurationMS   int64              `json:"duration_ms"`
	CreatedAt    time.Time          `json:"created_at"`
}

// SourceAccounting reports how many adapters were queried for one stage and
// which of them failed, so partial confidence is judgeable even on failure.
type SourceAccounting struct {
	Queried   int             `json:"queried"`
	Succeeded int             `json:"succeeded"`
	Failures  []SourceFailure `json:"failures,omitempty"`
}

// SourceFailure records one isolated adapter failure.
type SourceFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}
