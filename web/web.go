// Package web holds the browser front end served at "/".
package web

import "embed"

//go:embed index.html app.js styles.css placeholder.svg
var FS embed.FS
