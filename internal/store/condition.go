package store

import "strings"

// Condition filters items during Scan. Backends that can push a condition to
// the server translate it; the rest evaluate Match client side.
type Condition interface {
	Match(item Item) bool
}

// Eq matches a string attribute equal to Value.
type Eq struct {
	Attr  string
	Value string
}

func (c Eq) Match(item Item) bool {
	s, ok := item[c.Attr].(string)
	return ok && s == c.Value
}

// BeginsWith matches a string attribute starting with Prefix.
type BeginsWith struct {
	Attr   string
	Prefix string
}

func (c BeginsWith) Match(item Item) bool {
	s, ok := item[c.Attr].(string)
	return ok && strings.HasPrefix(s, c.Prefix)
}

// Contains matches a list attribute holding Value.
type Contains struct {
	Attr  string
	Value string
}

func (c Contains) Match(item Item) bool {
	switch list := item[c.Attr].(type) {
	case []any:
		for _, v := range list {
			if s, ok := v.(string); ok && s == c.Value {
				return true
			}
		}
	case []string:
		for _, s := range list {
			if s == c.Value {
				return true
			}
		}
	}
	return false
}

type And []Condition

func (c And) Match(item Item) bool {
	for _, sub := range c {
		if !sub.Match(item) {
			return false
		}
	}
	return true
}

type Or []Condition

func (c Or) Match(item Item) bool {
	for _, sub := range c {
		if sub.Match(item) {
			return true
		}
	}
	return false
}

// Filter keeps the items matching cond.
func Filter(items []Item, cond Condition) []Item {
	if cond == nil {
		return items
	}
	out := items[:0:0]
	for _, it := range items {
		if cond.Match(it) {
			out = append(out, it)
		}
	}
	return out
}
