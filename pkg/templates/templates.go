// Package templates materializes the built-in site templates.
//
// Every template produces the same three files. Markup is rendered with
// html/template and scripts with JS-string escaping, so project names and
// domains are never interpolated raw.
package templates

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// Template ids
const (
	ShopDemo     = "shop-demo"
	LandingClean = "landing-clean"
	Empty        = "empty"
)

// Output paths, relative to the site root
const (
	IndexPath  = "index.html"
	StylePath  = "assets/style.css"
	ScriptPath = "assets/app.js"
)

// Kind is the layout actually rendered. Landing is the default variant.
type Kind int

const (
	Landing Kind = iota
	Shop
)

func (k Kind) String() string {
	switch k {
	case Shop:
		return "shop"
	default:
		return "landing"
	}
}

// Resolve maps a template id to the layout that renders it.
// ok is false when the id is not in the catalog; such ids fall back
// to Landing and callers are expected to report the fallback.
func Resolve(templateID string) (kind Kind, ok bool) {
	switch templateID {
	case ShopDemo:
		return Shop, true
	case LandingClean, Empty:
		return Landing, true
	default:
		return Landing, false
	}
}

// Site holds the values interpolated into a template
type Site struct {
	Name       string
	Domain     string
	TemplateID string
}

// File is one materialized file
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// layout is the set of templates for one Kind
type layout struct {
	index  *htmltemplate.Template
	style  string
	script *texttemplate.Template
}

var layouts = map[Kind]layout{
	Shop: {
		index:  htmltemplate.Must(htmltemplate.New("shop-index").Parse(shopIndex)),
		style:  shopStyle,
		script: texttemplate.Must(texttemplate.New("shop-script").Parse(shopScript)),
	},
	Landing: {
		index:  htmltemplate.Must(htmltemplate.New("landing-index").Parse(landingIndex)),
		style:  landingStyle,
		script: texttemplate.Must(texttemplate.New("landing-script").Parse(landingScript)),
	},
}

// Build renders the files for site. It is a pure function of the site
// values: identical input always yields identical output, in the order
// index.html, assets/style.css, assets/app.js.
func Build(site Site) ([]File, error) {
	kind, _ := Resolve(site.TemplateID)
	l := layouts[kind]

	var index bytes.Buffer
	if err := l.index.Execute(&index, site); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", IndexPath, err)
	}

	var script bytes.Buffer
	if err := l.script.Execute(&script, site); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", ScriptPath, err)
	}

	return []File{
		{Path: IndexPath, Content: index.String()},
		{Path: StylePath, Content: l.style},
		{Path: ScriptPath, Content: script.String()},
	}, nil
}

// Entry describes one template in the catalog
type Entry struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Features []string `json:"features"`
}

// Catalog returns the templates offered to the UI
func Catalog() []Entry {
	return []Entry{
		{ID: ShopDemo, Name: "Магазин — демо", Features: []string{"Каталог", "Кошик", "Checkout"}},
		{ID: LandingClean, Name: "Лендінг — чистий", Features: []string{"Секції", "Форми", "Галерея"}},
		{ID: Empty, Name: "Порожній шаблон", Features: []string{}},
	}
}
