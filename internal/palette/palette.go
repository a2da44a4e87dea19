// Package palette defines the seven-color poster palette, the structured
// output request that asks a vision model for one, and the theme it drives.
package palette

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mark-c-hall/posterpalette/internal/vision"
)

const (
	DefaultModel = "gpt-4o"
	SchemaName   = "poster_palette_schema"

	SystemPrompt = "You are a color extraction assistant. Return seven hex-coded colors " +
		"(background, hover, button, darkOne, darkTwo, lightOne, lightTwo) derived from the uploaded poster. " +
		"Always choose a dark color for the background. Ensure all other colors provide good, " +
		"accessible contrast on the dark background from the poster composition."
	UserPrompt = "Extract color palette from this image as JSON following the defined roles."
)

// Keys lists the palette roles in display order.
var Keys = []string{"background", "hover", "button", "darkOne", "darkTwo", "lightOne", "lightTwo"}

var ErrInvalidPalette = errors.New("invalid palette")

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

type Palette struct {
	Background string `json:"background"`
	Hover      string `json:"hover"`
	Button     string `json:"button"`
	DarkOne    string `json:"darkOne"`
	DarkTwo    string `json:"darkTwo"`
	LightOne   string `json:"lightOne"`
	LightTwo   string `json:"lightTwo"`
}

// Get returns the color for a role key, or "" for an unknown key.
func (p Palette) Get(key string) string {
	switch key {
	case "background":
		return p.Background
	case "hover":
		return p.Hover
	case "button":
		return p.Button
	case "darkOne":
		return p.DarkOne
	case "darkTwo":
		return p.DarkTwo
	case "lightOne":
		return p.LightOne
	case "lightTwo":
		return p.LightTwo
	}
	return ""
}

func (p Palette) Validate() error {
	for _, key := range Keys {
		if !hexColor.MatchString(p.Get(key)) {
			return fmt.Errorf("%w: %s is not a hex color: %q", ErrInvalidPalette, key, p.Get(key))
		}
	}
	return nil
}

// Parse decodes model output into a Palette. The object must carry exactly
// the seven role keys, each a hex color; a missing leading '#' is added.
func Parse(content string) (Palette, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Palette{}, fmt.Errorf("%w: %v", ErrInvalidPalette, err)
	}
	if len(raw) != len(Keys) {
		return Palette{}, fmt.Errorf("%w: expected %d keys, got %d", ErrInvalidPalette, len(Keys), len(raw))
	}

	values := make(map[string]string, len(Keys))
	for _, key := range Keys {
		v, ok := raw[key]
		if !ok {
			return Palette{}, fmt.Errorf("%w: missing %s", ErrInvalidPalette, key)
		}
		s, ok := v.(string)
		if !ok {
			return Palette{}, fmt.Errorf("%w: %s is not a string", ErrInvalidPalette, key)
		}
		s = strings.TrimSpace(s)
		if s != "" && !strings.HasPrefix(s, "#") {
			s = "#" + s
		}
		values[key] = s
	}

	p := Palette{
		Background: values["background"],
		Hover:      values["hover"],
		Button:     values["button"],
		DarkOne:    values["darkOne"],
		DarkTwo:    values["darkTwo"],
		LightOne:   values["lightOne"],
		LightTwo:   values["lightTwo"],
	}
	if err := p.Validate(); err != nil {
		return Palette{}, err
	}
	return p, nil
}

// ParseResponse pulls the palette out of a chat-completions response body.
func ParseResponse(body []byte) (Palette, error) {
	content, err := vision.FirstContent(body)
	if err != nil {
		return Palette{}, err
	}
	return Parse(content)
}

// OutputSchema is the strict JSON schema constraining the model reply.
func OutputSchema() *vision.JSONSchema {
	noExtra := false
	props := make(map[string]vision.Schema, len(Keys))
	for _, key := range Keys {
		props[key] = vision.Schema{Type: "string"}
	}
	return &vision.JSONSchema{
		Name:   SchemaName,
		Strict: true,
		Schema: vision.Schema{
			Type:                 "object",
			AdditionalProperties: &noExtra,
			Required:             append([]string(nil), Keys...),
			Properties:           props,
		},
	}
}

// BuildRequest assembles the extraction chat request for an image.
func BuildRequest(image []byte, mimeType, model string) vision.ChatRequest {
	if model == "" {
		model = DefaultModel
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	return vision.ChatRequest{
		Model: model,
		ResponseFormat: &vision.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: OutputSchema(),
		},
		Messages: []vision.Message{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: []vision.ContentPart{
				{Type: "text", Text: UserPrompt},
				{Type: "image_url", ImageURL: &vision.ImageURL{URL: dataURL}},
			}},
		},
	}
}
