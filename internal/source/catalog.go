// Package source provides the catalog of externally-owned raw tables that
// staging models read from. Sources are declared in a YAML file grouped by
// namespace; the catalog resolves (namespace, table) pairs to queryable
// relations and can verify the declared tables against the warehouse.
package source

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Table declares one raw table inside a namespace.
type Table struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Identifier overrides the physical table name when it differs from
	// the declared name.
	Identifier string `yaml:"identifier"`
}

// Namespace groups the raw tables owned by one upstream extraction.
type Namespace struct {
	Name        string `yaml:"namespace"`
	Description string `yaml:"description"`
	// Schema overrides the physical schema; defaults to the namespace name.
	Schema string  `yaml:"schema"`
	Tables []Table `yaml:"tables"`
}

// catalogFile is the on-disk document shape.
type catalogFile struct {
	Sources []Namespace `yaml:"sources"`
}

// Relation is a resolved reference to a raw table.
type Relation struct {
	Namespace string
	Table     string
	// Schema and Identifier are the physical coordinates.
	Schema     string
	Identifier string
}

// Qualified returns the relation name as it appears in SQL.
func (r Relation) Qualified() string {
	return r.Schema + "." + r.Identifier
}

// Catalog is an immutable registry of declared sources.
type Catalog struct {
	namespaces map[string]*Namespace
	tables     map[string]map[string]*Table
}

// Empty returns a catalog with no declared sources. Resolve always fails
// with a NotFoundError.
func Empty() *Catalog {
	return &Catalog{
		namespaces: map[string]*Namespace{},
		tables:     map[string]map[string]*Table{},
	}
}

// Load reads and parses a sources file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from project config
	if err != nil {
		return nil, fmt.Errorf("reading sources file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a sources document. Unknown fields, duplicate namespaces
// and duplicate tables are rejected.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc catalogFile
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid sources document: %w", err)
	}

	c := Empty()
	for i := range doc.Sources {
		ns := &doc.Sources[i]
		if ns.Name == "" {
			return nil, fmt.Errorf("source entry %d: namespace is required", i)
		}
		if _, dup := c.namespaces[ns.Name]; dup {
			return nil, fmt.Errorf("duplicate source namespace %q", ns.Name)
		}
		if ns.Schema == "" {
			ns.Schema = ns.Name
		}

		byName := make(map[string]*Table, len(ns.Tables))
		for j := range ns.Tables {
			tbl := &ns.Tables[j]
			if tbl.Name == "" {
				return nil, fmt.Errorf("namespace %q: table entry %d has no name", ns.Name, j)
			}
			if _, dup := byName[tbl.Name]; dup {
				return nil, fmt.Errorf("namespace %q: duplicate table %q", ns.Name, tbl.Name)
			}
			byName[tbl.Name] = tbl
		}

		c.namespaces[ns.Name] = ns
		c.tables[ns.Name] = byName
	}
	return c, nil
}

// Resolve looks up a declared (namespace, table) pair. Unknown pairs fail
// with a *NotFoundError satisfying errors.Is(err, ErrNotFound).
func (c *Catalog) Resolve(namespace, table string) (Relation, error) {
	ns, ok := c.namespaces[namespace]
	if !ok {
		return Relation{}, &NotFoundError{Namespace: namespace, Table: table}
	}
	tbl, ok := c.tables[namespace][table]
	if !ok {
		return Relation{}, &NotFoundError{Namespace: namespace, Table: table}
	}

	identifier := tbl.Identifier
	if identifier == "" {
		identifier = tbl.Name
	}
	return Relation{
		Namespace:  namespace,
		Table:      table,
		Schema:     ns.Schema,
		Identifier: identifier,
	}, nil
}

// Namespaces returns the declared namespaces sorted by name.
func (c *Catalog) Namespaces() []*Namespace {
	out := make([]*Namespace, 0, len(c.namespaces))
	for _, ns := range c.namespaces {
		out = append(out, ns)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the total number of declared tables.
func (c *Catalog) Len() int {
	n := 0
	for _, tables := range c.tables {
		n += len(tables)
	}
	return n
}
