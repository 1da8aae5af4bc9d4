// Package catalog lists the predefined packages a visitor can pick in chat.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wolfman30/studio-booking-platform/internal/domain"
)

//go:embed packages.yaml
var defaultPackages []byte

// ErrEmptyCatalog is returned when a catalog file lists no packages.
var ErrEmptyCatalog = errors.New("catalog: no packages defined")

// Entry is one predefined package.
type Entry struct {
	ID          string  `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	Price       float64 `yaml:"price" json:"price"`
	Description string  `yaml:"description" json:"description"`
}

// Package converts the entry to the domain variant.
func (e Entry) Package() domain.Package {
	return domain.NewPredefined(e.ID, e.Name, e.Price)
}

// Catalog is an ordered, read-only package list.
type Catalog struct {
	entries []Entry
	byKey   map[string]Entry
}

type catalogFile struct {
	Packages []Entry `yaml:"packages"`
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultPackages)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded packages invalid: %v", err))
	}
	return c
}

// Load reads a YAML catalog from path, or returns the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML into a catalog.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if len(file.Packages) == 0 {
		return nil, ErrEmptyCatalog
	}
	c := &Catalog{byKey: make(map[string]Entry)}
	for _, e := range file.Packages {
		e.ID = strings.TrimSpace(e.ID)
		e.Name = strings.TrimSpace(e.Name)
		if e.ID == "" || e.Name == "" {
			return nil, fmt.Errorf("catalog: package needs id and name: %+v", e)
		}
		if domain.IsCustomPackageID(e.ID) {
			return nil, fmt.Errorf("catalog: id %q uses the reserved custom prefix", e.ID)
		}
		if _, dup := c.byKey[normalize(e.ID)]; dup {
			return nil, fmt.Errorf("catalog: duplicate package id %q", e.ID)
		}
		c.entries = append(c.entries, e)
		c.byKey[normalize(e.ID)] = e
		c.byKey[normalize(e.Name)] = e
	}
	return c, nil
}

// Entries returns the packages in display order.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Lookup finds a package by id or name, case-insensitively.
func (c *Catalog) Lookup(key string) (Entry, bool) {
	e, ok := c.byKey[normalize(key)]
	return e, ok
}

// Match resolves a visitor's free text to a package. It accepts the list
// position ("2"), an exact id or name, or text containing a package name.
func (c *Catalog) Match(text string) (Entry, bool) {
	norm := normalize(text)
	if norm == "" {
		return Entry{}, false
	}
	if n, err := strconv.Atoi(norm); err == nil {
		if n >= 1 && n <= len(c.entries) {
			return c.entries[n-1], true
		}
		return Entry{}, false
	}
	if e, ok := c.byKey[norm]; ok {
		return e, true
	}
	for _, e := range c.entries {
		if strings.Contains(norm, normalize(e.Name)) {
			return e, true
		}
	}
	return Entry{}, false
}

// Menu renders the numbered list used in bot prompts.
func (c *Catalog) Menu() string {
	var b strings.Builder
	for i, e := range c.entries {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, e.Name, domain.FormatINR(e.Price))
	}
	return strings.TrimRight(b.String(), "\n")
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
