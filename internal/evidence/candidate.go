package evidence

// Candidate is one retrieved documentation chunk. Score is the vector
// similarity supplied by the search collaborator (0 when absent);
// Metadata carries category, source, and free-form tags. Candidates are
// transient: produced fresh per query, never persisted here.
type Candidate struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Text     string            `json:"text,omitempty"`
}

// Category returns the category metadata, "" when unset.
func (c Candidate) Category() string {
	return c.Metadata["category"]
}
