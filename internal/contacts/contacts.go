// Package contacts defines the identity collaborators the query
// engine consumes: display-name resolution for raw identifiers and
// expansion of contact groups into the conversation ids they cover.
// Both are black boxes from the indexing subsystem's point of view;
// the implementations here are the simple map-backed ones used by the
// CLI and tests.
package contacts

// Resolver resolves a raw identifier (phone number, email, chat id)
// to a human-readable display name. Implementations must not fail:
// when no name is known they return the identifier unchanged.
type Resolver interface {
	DisplayName(identifier string) string
}

// GroupResolver expands opaque contact-group identifiers into the set
// of raw conversation ids they cover.
type GroupResolver interface {
	Conversations(groupIDs []string) []string
}

// Directory is a map-backed Resolver.
type Directory struct {
	names map[string]string
}

// NewDirectory creates a Directory from an identifier -> name map.
func NewDirectory(names map[string]string) *Directory {
	return &Directory{names: names}
}

// DisplayName returns the known name for identifier, or the
// identifier itself when none is known.
func (d *Directory) DisplayName(identifier string) string {
	if d != nil {
		if name, ok := d.names[identifier]; ok && name != "" {
			return name
		}
	}
	return identifier
}

// Passthrough is a Resolver that echoes identifiers unchanged.
type Passthrough struct{}

func (Passthrough) DisplayName(identifier string) string { return identifier }

// StaticGroups is a map-backed GroupResolver. Group ids with no
// mapping resolve to themselves, so callers may pass raw conversation
// ids and group ids interchangeably.
type StaticGroups struct {
	groups map[string][]string
}

// NewStaticGroups creates a StaticGroups from a group -> conversations map.
func NewStaticGroups(groups map[string][]string) *StaticGroups {
	return &StaticGroups{groups: groups}
}

// Conversations expands groupIDs into their member conversation ids,
// deduplicated, preserving first-seen order.
func (g *StaticGroups) Conversations(groupIDs []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, gid := range groupIDs {
		members := []string{gid}
		if g != nil {
			if m, ok := g.groups[gid]; ok {
				members = m
			}
		}
		for _, id := range members {
			add(id)
		}
	}
	return out
}
