// Command catalog prints what the proxy would serve for a query straight
// from the catalog API, one movie per line with its poster URL.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/goccy/go-json"

	"github.com/mark-c-hall/posterpalette/internal/browser"
	"github.com/mark-c-hall/posterpalette/internal/config"
	"github.com/mark-c-hall/posterpalette/internal/models"
	"github.com/mark-c-hall/posterpalette/internal/tmdb"
)

var pagesFlag = flag.Int("pages", 1, "number of discovery pages to list (around 20 results per page)")
var firstFlag = flag.Int("first", 1, "first discovery page to list")
var allFlag = flag.Bool("all", false, "list all available pages (overrides -pages)")
var genreFlag = flag.String("genre", "", "genre id to filter by")
var startFlag = flag.Int("start-year", 0, "lower release year bound, 0 for none")
var endFlag = flag.Int("end-year", 0, "upper release year bound, 0 for none")
var queryFlag = flag.String("query", "", "search by title instead of discovering")
var genresFlag = flag.Bool("genres", false, "list genre ids and exit")

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalln("Error loading config:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := tmdb.NewClient(cfg.Catalog, nil)
	out := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer out.Flush()

	switch {
	case *genresFlag:
		genres, err := client.GetGenres(ctx)
		if err != nil {
			log.Fatalln("Error fetching genres:", err)
		}
		for _, g := range genres {
			fmt.Fprintf(out, "%d\t%s\n", g.ID, g.Name)
		}
		return
	case *queryFlag != "":
		resp, err := client.SearchMovies(ctx, *queryFlag)
		if err != nil {
			log.Fatalln("Error searching movies:", err)
		}
		printMovies(out, resp.Results)
		return
	}

	firstPage := tmdb.ClampPage(*firstFlag)
	lastPage := firstPage + *pagesFlag - 1
	if *allFlag {
		lastPage = math.MaxInt
	}
	if firstPage > lastPage {
		log.Printf("Nothing to do: first page %d > last page %d", firstPage, lastPage)
		return
	}

	for page := firstPage; page <= lastPage; page++ {
		if ctx.Err() != nil {
			log.Println("Interrupted, stopping")
			break
		}

		resp, err := client.DiscoverMovies(ctx, tmdb.DiscoverParams{
			GenreID:   *genreFlag,
			StartYear: *startFlag,
			EndYear:   *endFlag,
			Page:      page,
		})
		if err != nil {
			log.Printf("Error fetching discovery page %d, skipping: %v", page, err)
			continue
		}
		if resp.TotalPages < lastPage {
			lastPage = resp.TotalPages
		}

		log.Printf("Page %d/%d", page, lastPage)
		printMovies(out, resp.Results)
	}
}

func printMovies(out *tabwriter.Writer, results []json.RawMessage) {
	for _, raw := range results {
		var m models.Movie
		if err := json.Unmarshal(raw, &m); err != nil {
			log.Printf("Error decoding movie, skipping: %v", err)
			continue
		}
		fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", m.ID, m.Title, m.ReleaseDate, browser.PosterURL(m.Poster()))
	}
	out.Flush()
}
