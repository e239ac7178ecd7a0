package overlay

// SkippedWord records one word left out of the overlay and why.
type SkippedWord struct {
	Page   int    `json:"page"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// PageReport sums up the embedding outcome for one page.
type PageReport struct {
	Page     int           `json:"page"`
	Embedded int           `json:"embedded"`
	Clamped  int           `json:"clamped,omitempty"`
	Skipped  []SkippedWord `json:"skipped_words,omitempty"`

	// SkippedPage marks pages whose whole layer was dropped; Reason
	// says why.
	SkippedPage bool   `json:"skipped_page,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Report is the whole run's outcome. Pages appear in ascending page
// order; pages that had no words to embed are absent.
type Report struct {
	Pages         []PageReport `json:"pages"`
	EmbeddedWords int          `json:"embedded_words"`
	SkippedWords  int          `json:"skipped_words"`
	SkippedPages  int          `json:"skipped_pages"`
}

func (r *Report) add(pr PageReport) {
	r.Pages = append(r.Pages, pr)
	r.EmbeddedWords += pr.Embedded
	r.SkippedWords += len(pr.Skipped)
	if pr.SkippedPage {
		r.SkippedPages++
	}
}
