package palette

import (
	"fmt"
	"strings"
)

// Theme is the set of CSS custom properties a palette drives. The zero
// value is an unthemed document.
type Theme struct {
	vars    map[string]string
	current *Palette
}

// Apply validates p and then sets every --key property. An invalid
// palette leaves the theme exactly as it was.
func (t *Theme) Apply(p Palette) error {
	if err := p.Validate(); err != nil {
		return err
	}
	vars := make(map[string]string, len(Keys))
	for _, key := range Keys {
		vars[Property(key)] = p.Get(key)
	}
	t.vars = vars
	t.current = &p
	return nil
}

// Property is the CSS custom property name for a palette key.
func Property(key string) string {
	return "--" + key
}

// Var returns a property value and whether it is set.
func (t *Theme) Var(name string) (string, bool) {
	v, ok := t.vars[name]
	return v, ok
}

func (t *Theme) Vars() map[string]string {
	out := make(map[string]string, len(t.vars))
	for k, v := range t.vars {
		out[k] = v
	}
	return out
}

// Active reports whether a palette has been applied.
func (t *Theme) Active() bool {
	return t.current != nil
}

func (t *Theme) Palette() (Palette, bool) {
	if t.current == nil {
		return Palette{}, false
	}
	return *t.current, true
}

// CSS renders the theme as a :root rule, properties in key order.
func (t *Theme) CSS() string {
	if !t.Active() {
		return ""
	}
	var b strings.Builder
	b.WriteString(":root {\n")
	for _, key := range Keys {
		fmt.Fprintf(&b, "  %s: %s;\n", Property(key), t.vars[Property(key)])
	}
	b.WriteString("}\n")
	return b.String()
}
