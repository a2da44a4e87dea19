package ui

import (
	"github.com/mark-c-hall/posterpalette/internal/models"
	"github.com/mark-c-hall/posterpalette/internal/palette"
)

// moviesLoadedMsg carries one grid fetch, tagged with the generation it was
// issued under.
type moviesLoadedMsg struct {
	generation uint64
	movies     []models.Movie
	err        error
}

type genresLoadedMsg struct {
	genres []models.Genre
	err    error
}

type paletteExtractedMsg struct {
	generation uint64
	palette    palette.Palette
	err        error
}
