package gutendex

// ListResponse represents the Gutendex books API response structure.
type ListResponse struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []Book  `json:"results"`
}

type Book struct {
	ID        int64             `json:"id"`
	Title     string            `json:"title"`
	Authors   []Person          `json:"authors"`
	Summaries []string          `json:"summaries"`
	Languages []string          `json:"languages"`
	Formats   map[string]string `json:"formats"`
}

type Person struct {
	Name      string `json:"name"`
	BirthYear *int   `json:"birth_year"`
	DeathYear *int   `json:"death_year"`
}
