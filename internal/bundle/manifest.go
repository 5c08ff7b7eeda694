package bundle

import (
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// Destination of pinned entries: the bundle root.
const Root = "."

// A destination directory and the files copied into it.
//
// Pinned entries keep their file names and land exactly at Dest; the
// freezer must not rename or relocate them because other binaries link to
// them by path.
type Entry struct {
	Dest    string   `yaml:"dest"`
	Sources []string `yaml:"sources"`
	Pinned  bool     `yaml:"pinned,omitempty"`
}

// Ordered, append-only mapping of bundle destinations to source files.
//
// Adding a (destination, source) pair that is already present is a no-op,
// so conditional blocks can only append. A pair added unpinned cannot be
// pinned later. Once sealed the manifest rejects further additions.
type Manifest struct {
	Script   string   `yaml:"script,omitempty"`   // Entry point frozen into the executable.
	Entries  []Entry  `yaml:"data_files"`         // Data files in insertion order.
	Includes []string `yaml:"includes,omitempty"` // Modules the freezer must bundle.
	Excludes []string `yaml:"excludes,omitempty"` // Binaries the freezer must not process itself.

	index  map[entryKey]int
	pairs  map[pairKey]bool // Present pairs, true when pinned.
	sealed bool
}

type entryKey struct {
	dest   string
	pinned bool
}

type pairKey struct {
	dest   string
	source string
}

// A single destination/source pair.
type Pair struct {
	Dest   string
	Source string
	Pinned bool
}

// Creates an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		index: make(map[entryKey]int),
		pairs: make(map[pairKey]bool),
	}
}

// Sets the entry point script. The first call wins.
func (m *Manifest) SetScript(script string) error {
	if m.sealed {
		return ErrSealed
	}
	if m.Script == "" {
		m.Script = script
	}
	return nil
}

// Appends sources to the destination directory.
func (m *Manifest) Add(dest string, sources ...string) error {
	return m.add(dest, false, sources)
}

// Appends sources that must land at dest unrenamed.
func (m *Manifest) AddPinned(dest string, sources ...string) error {
	return m.add(dest, true, sources)
}

// Appends modules to the freezer includes.
func (m *Manifest) Include(modules ...string) error {
	if m.sealed {
		return ErrSealed
	}
	m.Includes = appendNew(m.Includes, modules)
	return nil
}

// Appends binaries the freezer must leave alone.
func (m *Manifest) Exclude(binaries ...string) error {
	if m.sealed {
		return ErrSealed
	}
	m.Excludes = appendNew(m.Excludes, binaries)
	return nil
}

// Marks the manifest complete.
func (m *Manifest) Seal() {
	m.sealed = true
}

// Reports whether the manifest is sealed.
func (m *Manifest) Sealed() bool {
	return m.sealed
}

// Returns every destination/source pair in insertion order.
func (m *Manifest) Pairs() []Pair {
	var out []Pair
	for _, e := range m.Entries {
		for _, s := range e.Sources {
			out = append(out, Pair{Dest: e.Dest, Source: s, Pinned: e.Pinned})
		}
	}
	return out
}

// Returns the destination directories in insertion order.
func (m *Manifest) Destinations() []string {
	var out []string
	for _, e := range m.Entries {
		if !slices.Contains(out, e.Dest) {
			out = append(out, e.Dest)
		}
	}
	return out
}

func (m *Manifest) add(dest string, pinned bool, sources []string) error {
	if m.sealed {
		return ErrSealed
	}
	if m.index == nil {
		m.index = make(map[entryKey]int)
		m.pairs = make(map[pairKey]bool)
	}

	dest = cleanDest(dest)
	key := entryKey{dest: dest, pinned: pinned}

	if pinned {
		for _, src := range sources {
			if p, ok := m.pairs[pairKey{dest: dest, source: src}]; ok && !p {
				return fmt.Errorf("%w: %s in %s", ErrPinConflict, src, dest)
			}
		}
	}

	for _, src := range sources {
		pk := pairKey{dest: dest, source: src}
		if _, ok := m.pairs[pk]; ok {
			continue
		}
		m.pairs[pk] = pinned

		i, ok := m.index[key]
		if !ok {
			i = len(m.Entries)
			m.index[key] = i
			m.Entries = append(m.Entries, Entry{Dest: dest, Pinned: pinned})
		}
		m.Entries[i].Sources = append(m.Entries[i].Sources, src)
	}
	return nil
}

// Normalizes a destination to a clean slash-separated relative path.
func cleanDest(dest string) string {
	dest = path.Clean(filepath.ToSlash(dest))
	dest = strings.TrimPrefix(dest, "./")
	if dest == "" {
		return Root
	}
	return dest
}

func appendNew(list, items []string) []string {
	for _, it := range items {
		if !slices.Contains(list, it) {
			list = append(list, it)
		}
	}
	return list
}
