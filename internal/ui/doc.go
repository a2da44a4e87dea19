// Package ui is the terminal front end for the posterpalette proxy, built
// on bubbletea's Init/Update/View loop.
//
// The [Model] drives a [browser.Controller]: key presses become controller
// operations, and the fetches they ask for run as commands whose results come
// back as messages stamped with the generation they were issued under. The
// controller drops anything stale, so paging quickly never shows an older
// page over a newer one.
//
// Once a palette has been extracted from the selected poster, the styles are
// rebuilt from the theme's seven custom properties, so the terminal picks up
// the same colors the browser bundle applies as CSS variables.
package ui
