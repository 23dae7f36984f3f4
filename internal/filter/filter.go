package filter

import (
	"fmt"
	"strings"

	"book_harvester/internal/config"
)

const (
	GenreFilterName  = "genre"
	AuthorFilterName = "author"
)

// Decision is the outcome of running an item through the enabled gates.
// A rejection names the gate, the reason and the offending field value.
type Decision struct {
	Passed     bool
	FilterName string
	Reason     string
	FieldValue string
}

// Engine gates items on genre and author allow-lists. An enabled gate with
// an empty allow-list lets everything through; misconfiguration must not
// black out ingestion.
type Engine struct {
	cfg config.FilterConfig
}

func NewEngine(cfg config.FilterConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate applies the genre gate and then the author gate. When both are
// enabled an item has to pass both.
func (e *Engine) Evaluate(author string, genres []string) Decision {
	if e.cfg.EnableGenreFilter && len(e.cfg.AllowedGenres) > 0 {
		if !intersects(genres, e.cfg.AllowedGenres) {
			return Decision{
				FilterName: GenreFilterName,
				Reason:     fmt.Sprintf("no genre in allow-list %v", e.cfg.AllowedGenres),
				FieldValue: strings.Join(genres, ", "),
			}
		}
	}

	if e.cfg.EnableAuthorFilter && len(e.cfg.AllowedAuthors) > 0 {
		if !authorAllowed(author, e.cfg.AllowedAuthors) {
			return Decision{
				FilterName: AuthorFilterName,
				Reason:     fmt.Sprintf("author does not match allow-list %v", e.cfg.AllowedAuthors),
				FieldValue: author,
			}
		}
	}

	return Decision{Passed: true}
}

// intersects does exact, case-sensitive matching against the fixed genre
// taxonomy.
func intersects(genres, allowed []string) bool {
	for _, g := range genres {
		for _, a := range allowed {
			if g == a {
				return true
			}
		}
	}
	return false
}

// authorAllowed passes when any allow-list entry is a case-insensitive
// substring of the item's author string.
func authorAllowed(author string, allowed []string) bool {
	lowered := strings.ToLower(author)
	for _, a := range allowed {
		if strings.Contains(lowered, strings.ToLower(a)) {
			return true
		}
	}
	return false
}
