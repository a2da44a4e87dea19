package ui

import (
	"github.com/charmbracelet/bubbles/list"

	"github.com/mark-c-hall/posterpalette/internal/browser"
)

var _ list.Item = cardItem{}

// cardItem wraps [browser.Card] to implement [list.Item].
type cardItem struct {
	card browser.Card
}

func (i cardItem) FilterValue() string { return i.card.Title }
func (i cardItem) Title() string       { return i.card.Title }
func (i cardItem) Description() string {
	if !i.card.HasPoster {
		return "no poster"
	}
	return i.card.PosterURL
}

func cardItems(cards []browser.Card) []list.Item {
	items := make([]list.Item, len(cards))
	for i, c := range cards {
		items[i] = cardItem{card: c}
	}
	return items
}
