package pipeline

import (
	"fmt"
	"strings"
)

// Kind names a technique family and the backend route that runs it.
type Kind string

const (
	Preprocess Kind = "preprocess"
	Augment    Kind = "augment"
)

// ParseKind accepts "preprocess" or "augment".
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Preprocess, Augment:
		return k, nil
	}
	return "", fmt.Errorf("pipeline: unknown technique kind %q", s)
}

func (k Kind) String() string { return string(k) }

// Selection is an ordered set of technique ids.
type Selection []string

// NewSelection keeps the first occurrence of each non-blank id.
func NewSelection(ids ...string) Selection {
	seen := make(map[string]struct{}, len(ids))
	out := make(Selection, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Empty reports whether no technique is selected.
func (s Selection) Empty() bool { return len(s) == 0 }
