package evidence

import (
	"fmt"
	"strings"

	"sceneid/internal/textutil"
)

// Kind labels the source capability that produced a signal.
type Kind string

const (
	KindDialogueText  Kind = "dialogue_text"
	KindDialogueEmbed Kind = "dialogue_embedding"
	KindVisual        Kind = "visual"
	KindOnScreenText  Kind = "onscreen_text"
	KindActorIdentity Kind = "actor_identity"
)

// Signal is one piece of weak evidence linking a clip to a candidate title.
// Signals are ephemeral: built per request, discarded with it.
type Signal struct {
	Kind     Kind
	Title    string
	Year     int
	TMDBID   int64
	Strength float64
	Payload  string
}

// CandidateKey returns the identity signals group under: the external id when
// known, otherwise the normalized title plus year.
func (s Signal) CandidateKey() string {
	if s.TMDBID > 0 {
		return fmt.Sprintf("tmdb:%d", s.TMDBID)
	}
	key := textutil.CompareKey(s.Title)
	if s.Year > 0 {
		return fmt.Sprintf("title:%s|%d", key, s.Year)
	}
	return "title:" + key
}

// Candidate is a distinct title identity accumulating weighted signal
// strengths within one request.
type Candidate struct {
	Key        string
	Title      string
	Year       int
	TMDBID     int64
	Score      float64
	Confidence float64
	Kinds      []Kind
}

// HasKind reports whether the candidate accumulated a signal of the given kind.
func (c Candidate) HasKind(kind Kind) bool {
	for _, k := range c.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Display renders "Title (Year)" for logs and explanations.
func (c Candidate) Display() string {
	title := strings.TrimSpace(c.Title)
	if c.Year > 0 {
		return fmt.Sprintf("%s (%d)", title, c.Year)
	}
	return title
}
