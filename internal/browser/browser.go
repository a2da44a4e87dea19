// Package browser is the movie-browsing controller: query state, grid
// contents, the selected poster and the applied palette theme.
//
// Every operation that needs data returns a Request stamped with a
// generation. Results are handed back with that generation and anything
// older than the latest request is discarded, so overlapping fetches can
// never paint a stale grid.
package browser

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mark-c-hall/posterpalette/internal/models"
	"github.com/mark-c-hall/posterpalette/internal/palette"
)

const (
	PosterBaseURL = "https://media.themoviedb.org/t/p/w220_and_h330_face"
	Placeholder   = "placeholder.svg"

	extractingText = "Extracting colors..."
)

type Mode int

const (
	ModeDiscover Mode = iota
	ModeSearch
)

func (m Mode) String() string {
	if m == ModeSearch {
		return "search"
	}
	return "discover"
}

type Filters struct {
	GenreID   string
	StartYear int
	EndYear   int
}

// Request is one fetch the controller wants performed.
type Request struct {
	Generation uint64
	Mode       Mode
	Filters    Filters
	Page       int
	Query      string
}

// Card is one rendered grid entry.
type Card struct {
	Title     string
	PosterURL string
	HasPoster bool
}

type State struct {
	Filters    Filters
	Page       int
	Query      string
	Mode       Mode
	Generation uint64
	Loading    bool
	Cards      []Card
	Selected   *Card
	LastError  error
}

type Controller struct {
	state State

	extractGen  uint64
	extracting  bool
	paletteText string
	theme       palette.Theme
}

func New(f Filters) *Controller {
	return &Controller{state: State{Filters: f, Page: 1}}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	s := c.state
	s.Cards = append([]Card(nil), c.state.Cards...)
	if c.state.Selected != nil {
		sel := *c.state.Selected
		s.Selected = &sel
	}
	return s
}

func (c *Controller) Theme() *palette.Theme {
	return &c.theme
}

// PaletteText is the extracted palette as indented JSON, a progress note
// while extracting, or "" before the first extraction.
func (c *Controller) PaletteText() string {
	return c.paletteText
}

func (c *Controller) Extracting() bool {
	return c.extracting
}

// Load issues a discovery fetch for the current filters and page.
func (c *Controller) Load() Request {
	c.state.Mode = ModeDiscover
	return c.issue()
}

// SetFilters resets to page 1 and fetches the new filter tuple.
func (c *Controller) SetFilters(f Filters) Request {
	c.state.Filters = f
	c.state.Page = 1
	return c.Load()
}

// Submit searches for the lower-cased query. Blank queries are ignored.
func (c *Controller) Submit(query string) (Request, bool) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return Request{}, false
	}
	c.state.Query = query
	c.state.Page = 1
	c.state.Mode = ModeSearch
	return c.issue(), true
}

// PrevPage steps back one discovery page. At page 1 nothing changes and
// nothing is fetched.
func (c *Controller) PrevPage() (Request, bool) {
	if c.state.Page <= 1 {
		return Request{}, false
	}
	c.state.Page--
	return c.Load(), true
}

// NextPage has no upper bound; past the last page the catalog answers with
// an empty grid.
func (c *Controller) NextPage() Request {
	c.state.Page++
	return c.Load()
}

func (c *Controller) issue() Request {
	c.state.Generation++
	c.state.Loading = true
	c.state.Cards = nil
	c.state.LastError = nil
	return Request{
		Generation: c.state.Generation,
		Mode:       c.state.Mode,
		Filters:    c.state.Filters,
		Page:       c.state.Page,
		Query:      c.state.Query,
	}
}

// Receive applies the result of a fetch. It reports false when the result
// belongs to a superseded request and was dropped.
func (c *Controller) Receive(generation uint64, movies []models.Movie, err error) bool {
	if generation != c.state.Generation {
		return false
	}
	c.state.Loading = false
	if err != nil {
		c.state.LastError = err
		return true
	}
	c.state.Cards = Render(movies)
	return true
}

// Render turns catalog movies into grid cards.
func Render(movies []models.Movie) []Card {
	cards := make([]Card, 0, len(movies))
	for _, m := range movies {
		poster := m.Poster()
		cards = append(cards, Card{
			Title:     m.Title,
			PosterURL: PosterURL(poster),
			HasPoster: poster != "",
		})
	}
	return cards
}

// PosterURL is the displayed image for a poster path, falling back to the
// local placeholder.
func PosterURL(path string) string {
	if path == "" {
		return Placeholder
	}
	return PosterBaseURL + path
}

// Select marks card i as the poster to extract from.
func (c *Controller) Select(i int) (Card, bool) {
	if i < 0 || i >= len(c.state.Cards) {
		return Card{}, false
	}
	card := c.state.Cards[i]
	c.state.Selected = &card
	return card, true
}

// ExtractionRequest is a palette extraction the controller wants run.
type ExtractionRequest struct {
	Generation uint64
	PosterURL  string
}

// BeginExtraction starts extracting from the selected poster. It fails when
// nothing with a real poster is selected.
func (c *Controller) BeginExtraction() (ExtractionRequest, error) {
	sel := c.state.Selected
	if sel == nil {
		return ExtractionRequest{}, fmt.Errorf("no poster selected")
	}
	if !sel.HasPoster {
		return ExtractionRequest{}, fmt.Errorf("%q has no poster to extract from", sel.Title)
	}
	c.extractGen++
	c.extracting = true
	c.paletteText = extractingText
	return ExtractionRequest{Generation: c.extractGen, PosterURL: sel.PosterURL}, nil
}

// FinishExtraction applies a palette result. On error, or if the palette
// does not validate, the theme keeps its previous values and the error is
// returned for logging. Stale results are ignored.
func (c *Controller) FinishExtraction(generation uint64, p palette.Palette, err error) error {
	if generation != c.extractGen {
		return nil
	}
	c.extracting = false
	if err == nil {
		err = c.theme.Apply(p)
	}
	if err != nil {
		c.paletteText = c.currentPaletteText()
		return fmt.Errorf("error extracting colors: %w", err)
	}
	c.paletteText = c.currentPaletteText()
	return nil
}

func (c *Controller) currentPaletteText() string {
	p, ok := c.theme.Palette()
	if !ok {
		return ""
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}
