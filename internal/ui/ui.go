package ui

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/mark-c-hall/posterpalette/internal/browser"
	"github.com/mark-c-hall/posterpalette/internal/models"
	"github.com/mark-c-hall/posterpalette/internal/palette"
	"github.com/mark-c-hall/posterpalette/internal/proxyclient"
)

// Proxy is the subset of [proxyclient.Client] the UI calls.
type Proxy interface {
	Discover(ctx context.Context, q proxyclient.DiscoverQuery) ([]models.Movie, error)
	Search(ctx context.Context, query string) ([]models.Movie, error)
	Genres(ctx context.Context) ([]models.Genre, error)
	ExtractPalette(ctx context.Context, posterURL string) (palette.Palette, error)
}

type inputMode int

const (
	inputNone inputMode = iota
	inputSearch
	inputFilter
)

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	proxy      Proxy
	controller *browser.Controller
	logger     *log.Logger
	list       list.Model
	input      textinput.Model
	inputMode  inputMode
	genres     []models.Genre
	notice     string
	styles     Styles
	help       help.Model
	keys       keyMap
	width      int
	height     int
}

// NewModel creates a model that starts discovering with the given filters.
// A nil logger discards log output.
func NewModel(ctx context.Context, proxy Proxy, filters browser.Filters, logger *log.Logger) *Model {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	styles := NewStyles(nil)

	l := list.New(nil, styles.Delegate(), 80, 20)
	l.Title = "Movies"
	l.Styles.Title = styles.title
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)

	input := textinput.New()
	input.CharLimit = 120

	return &Model{
		ctx:        ctx,
		proxy:      proxy,
		controller: browser.New(filters),
		logger:     logger,
		list:       l,
		input:      input,
		styles:     styles,
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Init loads the first discovery page and the genre list.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.load(m.controller.Load()), m.fetchGenres())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(max(msg.Width-40, 30), max(msg.Height-10, 8))
		return m, nil

	case tea.KeyMsg:
		if m.inputMode != inputNone {
			return m.handleInputKeys(msg)
		}
		return m.handleKeys(msg)

	case moviesLoadedMsg:
		if !m.controller.Receive(msg.generation, msg.movies, msg.err) {
			m.logger.Debug("dropped stale page", "generation", msg.generation)
			return m, nil
		}
		if msg.err != nil {
			m.logger.Error("error loading movies", "err", msg.err)
		}
		cmd := m.list.SetItems(cardItems(m.controller.State().Cards))
		m.list.Select(0)
		return m, cmd

	case genresLoadedMsg:
		if msg.err != nil {
			m.logger.Warn("error loading genres", "err", msg.err)
			return m, nil
		}
		m.genres = msg.genres
		return m, nil

	case paletteExtractedMsg:
		if err := m.controller.FinishExtraction(msg.generation, msg.palette, msg.err); err != nil {
			m.logger.Error("palette extraction failed", "err", err)
			m.notice = "Could not extract colors from this poster"
			return m, nil
		}
		m.applyTheme()
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the header, grid, palette panel and help.
func (m *Model) View() string {
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		m.styles.title.Render("posterpalette"), " ", m.styles.status.Render(m.statusLine()))

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.list.View(), "  ", m.renderPalette())

	sections := []string{header, body}
	if m.inputMode != inputNone {
		sections = append(sections, m.input.View())
	}
	if err := m.controller.State().LastError; err != nil {
		sections = append(sections, m.styles.err.Render(fmt.Sprintf("Error: %v", err)))
	}
	if m.notice != "" {
		sections = append(sections, m.styles.muted.Render(m.notice))
	}
	sections = append(sections, m.help.ShortHelpView(m.keys.ShortHelp()))

	return m.styles.app.Render(strings.Join(sections, "\n\n"))
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.prev):
		req, ok := m.controller.PrevPage()
		if !ok {
			return m, nil
		}
		return m, m.load(req)
	case key.Matches(msg, m.keys.next):
		return m, m.load(m.controller.NextPage())
	case key.Matches(msg, m.keys.reload):
		return m, m.load(m.controller.Load())
	case key.Matches(msg, m.keys.choose):
		if card, ok := m.controller.Select(m.list.Index()); ok {
			m.notice = "Selected " + card.Title
		}
		return m, nil
	case key.Matches(msg, m.keys.extract):
		req, err := m.controller.BeginExtraction()
		if err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.notice = ""
		return m, m.extract(req)
	case key.Matches(msg, m.keys.search):
		return m, m.openInput(inputSearch, "title", "")
	case key.Matches(msg, m.keys.filter):
		return m, m.openInput(inputFilter, "genre start end, e.g. action 1990 1999",
			formatFilters(m.controller.State().Filters, m.genres))
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.cancel):
		m.closeInput()
		return m, nil
	case msg.Type == tea.KeyEnter:
		value, mode := m.input.Value(), m.inputMode
		m.closeInput()

		switch mode {
		case inputSearch:
			req, ok := m.controller.Submit(value)
			if !ok {
				return m, nil
			}
			return m, m.load(req)
		case inputFilter:
			f, err := parseFilters(value, m.genres)
			if err != nil {
				m.notice = err.Error()
				return m, nil
			}
			return m, m.load(m.controller.SetFilters(f))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) openInput(mode inputMode, placeholder, value string) tea.Cmd {
	m.inputMode = mode
	m.input.Placeholder = placeholder
	m.input.Prompt = "> "
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.notice = ""
	return m.input.Focus()
}

func (m *Model) closeInput() {
	m.inputMode = inputNone
	m.input.Blur()
	m.input.Reset()
}

// load clears the grid and fetches req.
func (m *Model) load(req browser.Request) tea.Cmd {
	m.list.SetItems(nil)
	return func() tea.Msg {
		var movies []models.Movie
		var err error
		switch req.Mode {
		case browser.ModeSearch:
			movies, err = m.proxy.Search(m.ctx, req.Query)
		default:
			movies, err = m.proxy.Discover(m.ctx, proxyclient.DiscoverQuery{
				GenreID:   req.Filters.GenreID,
				StartYear: req.Filters.StartYear,
				EndYear:   req.Filters.EndYear,
				Page:      req.Page,
			})
		}
		return moviesLoadedMsg{generation: req.Generation, movies: movies, err: err}
	}
}

func (m *Model) fetchGenres() tea.Cmd {
	return func() tea.Msg {
		genres, err := m.proxy.Genres(m.ctx)
		return genresLoadedMsg{genres: genres, err: err}
	}
}

func (m *Model) extract(req browser.ExtractionRequest) tea.Cmd {
	return func() tea.Msg {
		p, err := m.proxy.ExtractPalette(m.ctx, req.PosterURL)
		return paletteExtractedMsg{generation: req.Generation, palette: p, err: err}
	}
}

func (m *Model) applyTheme() {
	m.styles = NewStyles(m.controller.Theme())
	m.list.SetDelegate(m.styles.Delegate())
	m.list.Styles.Title = m.styles.title
}

func (m *Model) statusLine() string {
	s := m.controller.State()

	var parts []string
	if s.Mode == browser.ModeSearch {
		parts = append(parts, fmt.Sprintf("search %q", s.Query))
	} else {
		parts = append(parts, "discover")
		if s.Filters.GenreID != "" {
			parts = append(parts, "genre "+genreName(s.Filters.GenreID, m.genres))
		}
		if s.Filters.StartYear != 0 || s.Filters.EndYear != 0 {
			parts = append(parts, yearLabel(s.Filters.StartYear)+"-"+yearLabel(s.Filters.EndYear))
		}
		parts = append(parts, fmt.Sprintf("page %d", s.Page))
	}
	if s.Loading {
		parts = append(parts, "loading...")
	}
	return strings.Join(parts, " | ")
}

func (m *Model) renderPalette() string {
	var lines []string
	if sel := m.controller.State().Selected; sel != nil {
		lines = append(lines, m.styles.status.Render("Poster: "+sel.Title))
	} else {
		lines = append(lines, m.styles.muted.Render("No poster selected"))
	}
	lines = append(lines, m.styles.button.Render("x Extract colors"), "")

	text := m.controller.PaletteText()
	p, active := m.controller.Theme().Palette()
	switch {
	case m.controller.Extracting():
		lines = append(lines, m.styles.muted.Render(text))
	case active:
		for _, k := range palette.Keys {
			lines = append(lines, fmt.Sprintf("%s %-10s %s", Swatch(p.Get(k)), k, p.Get(k)))
		}
		lines = append(lines, "", m.styles.normal.Render(text))
	default:
		lines = append(lines, m.styles.muted.Render("Select a poster and press x."))
	}

	return m.styles.panel.Render(strings.Join(lines, "\n"))
}

// parseFilters reads "genre start end". Genres match by id or by name,
// case-insensitively, with spaces in names written as hyphens. "-" or a
// missing field leaves that filter open.
func parseFilters(s string, genres []models.Genre) (browser.Filters, error) {
	fields := strings.Fields(s)
	if len(fields) > 3 {
		return browser.Filters{}, fmt.Errorf("expected at most: genre start-year end-year")
	}
	field := func(i int) string {
		if i < len(fields) && fields[i] != "-" {
			return fields[i]
		}
		return ""
	}

	var f browser.Filters
	if g := field(0); g != "" {
		id, err := resolveGenre(g, genres)
		if err != nil {
			return browser.Filters{}, err
		}
		f.GenreID = id
	}
	for i, dst := range []*int{&f.StartYear, &f.EndYear} {
		v := field(i + 1)
		if v == "" {
			continue
		}
		year, err := strconv.Atoi(v)
		if err != nil || year < 1800 || year > 9999 {
			return browser.Filters{}, fmt.Errorf("invalid year %q", v)
		}
		*dst = year
	}
	if f.StartYear != 0 && f.EndYear != 0 && f.StartYear > f.EndYear {
		return browser.Filters{}, fmt.Errorf("start year %d is after end year %d", f.StartYear, f.EndYear)
	}
	return f, nil
}

func resolveGenre(g string, genres []models.Genre) (string, error) {
	if _, err := strconv.Atoi(g); err == nil {
		return g, nil
	}
	for _, genre := range genres {
		if strings.EqualFold(genreToken(genre.Name), g) || strings.EqualFold(genre.Name, g) {
			return strconv.Itoa(genre.ID), nil
		}
	}
	return "", fmt.Errorf("unknown genre %q", g)
}

func formatFilters(f browser.Filters, genres []models.Genre) string {
	genre := "-"
	if f.GenreID != "" {
		genre = strings.ToLower(genreToken(genreName(f.GenreID, genres)))
	}
	return strings.Join([]string{genre, yearLabel(f.StartYear), yearLabel(f.EndYear)}, " ")
}

func genreToken(name string) string {
	return strings.ReplaceAll(name, " ", "-")
}

func genreName(id string, genres []models.Genre) string {
	for _, g := range genres {
		if strconv.Itoa(g.ID) == id {
			return g.Name
		}
	}
	return id
}

func yearLabel(year int) string {
	if year == 0 {
		return "-"
	}
	return strconv.Itoa(year)
}
