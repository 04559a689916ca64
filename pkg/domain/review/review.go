package review

import "strings"

// Submission is one moderation unit. The pipeline only reads it.
type Submission struct {
	ReviewID string `json:"review_id"`
	Title    string `json:"title"`
	Body     string `json:"review_text"`
	UserID   string `json:"user_id"`
	MovieID  string `json:"movie_id"`
}

const combinedTextSeparator = "\n\n"

// CombinedText joins title and body so both are checked as a single text.
func (s Submission) CombinedText() string {
	var b strings.Builder
	b.Grow(len(s.Title) + len(combinedTextSeparator) + len(s.Body))
	b.WriteString(s.Title)
	b.WriteString(combinedTextSeparator)
	b.WriteString(s.Body)
	return b.String()
}
