package openlibrary

// SearchResponse represents the Open Library search API response structure.
type SearchResponse struct {
	NumFound int   `json:"numFound"`
	Start    int   `json:"start"`
	Docs     []Doc `json:"docs"`
}

type Doc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	Language         []string `json:"language"`
	FirstSentence    []string `json:"first_sentence"`
	IA               []string `json:"ia"`
	CoverI           int64    `json:"cover_i"`
}
