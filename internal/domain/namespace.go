package domain

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// NamespaceSet is the ordered list of namespaces active in the view.
// Order is kept for display; refresh decisions compare it as a set.
type NamespaceSet []string

// NewNamespaceSet builds a set from names, dropping blanks and duplicates
// while keeping first-seen order
func NewNamespaceSet(names ...string) NamespaceSet {
	seen := sets.New[string]()
	set := make(NamespaceSet, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen.Has(name) {
			continue
		}
		seen.Insert(name)
		set = append(set, name)
	}
	return set
}

// ParseNamespaceSet splits a comma-separated list
func ParseNamespaceSet(s string) NamespaceSet {
	if s == "" {
		return NamespaceSet{}
	}
	return NewNamespaceSet(strings.Split(s, ",")...)
}

// Equal reports set-equality by name, ignoring order
func (s NamespaceSet) Equal(other NamespaceSet) bool {
	return sets.New(s...).Equal(sets.New(other...))
}

// Empty returns true when no namespace is active
func (s NamespaceSet) Empty() bool {
	return len(s) == 0
}

// Names returns a copy of the names in display order
func (s NamespaceSet) Names() []string {
	names := make([]string, len(s))
	copy(names, s)
	return names
}

// String joins the names with commas, as the backend expects them
func (s NamespaceSet) String() string {
	return strings.Join(s, ",")
}
