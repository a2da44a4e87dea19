package models

// Movie is the subset of a catalog result the client renders. The proxy
// itself never decodes results; it passes them through as returned.
type Movie struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	PosterPath  *string `json:"poster_path"`
	ReleaseDate string  `json:"release_date,omitempty"`
}

// Poster returns the poster path or "" when the catalog has none.
func (m Movie) Poster() string {
	if m.PosterPath == nil {
		return ""
	}
	return *m.PosterPath
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
