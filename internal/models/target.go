package models

import (
	"fmt"
	"strings"
)

// Family is the packaging ecosystem a target publishes to.
type Family string

const (
	FamilyAPT Family = "apt"
	FamilyYum Family = "yum"
)

// Snapshot is one of the three directory roles of a reconciliation cycle.
type Snapshot string

const (
	SnapshotBase     Snapshot = "base"
	SnapshotIncoming Snapshot = "incoming"
	SnapshotMerged   Snapshot = "merged"
)

// Target identifies one publishable unit.
//
// For APT targets Codename is the suite codename (e.g. "bookworm") and
// Component is the archive section. For Yum targets Codename holds the
// release version (e.g. "9") and Component is unused.
type Target struct {
	Family        Family
	Distribution  string
	Codename      string
	Component     string
	Architectures []string
}

// ID returns a stable identifier such as "apt-debian-bookworm".
func (t Target) ID() string {
	return strings.Join([]string{string(t.Family), t.Distribution, t.Codename}, "-")
}

func (t Target) String() string {
	if t.Family == FamilyAPT {
		return fmt.Sprintf("%s (%s/%s/%s)", t.ID(), t.Distribution, t.Codename, t.Component)
	}
	return fmt.Sprintf("%s (%s/%s)", t.ID(), t.Distribution, t.Codename)
}

// HasArchitecture reports whether arch is part of the target's fixed set.
func (t Target) HasArchitecture(arch string) bool {
	for _, a := range t.Architectures {
		if a == arch {
			return true
		}
	}
	return false
}
