// Package vocab loads and indexes the known-language vocabulary that
// candidate spans are aligned against. Entries are filtered to the
// configured word-length window, and every distinct character unit across
// the kept entries is assigned a stable id into a shared embedding table.
package vocab

import (
	"fmt"
	"sort"

	"golang.org/x/exp/maps"

	"github.com/wordseek/wordseek/util"
)

// Entry is a single vocabulary word together with its per-position unit ids.
type Entry struct {
	Word   string
	Length int
	// Units holds the unit id of each character, padded with zeros to the
	// vocabulary-wide max entry length. Positions >= Length are padding and
	// are never read by the aligner because the DP terminal gather stops at
	// Length.
	Units []int
}

// Vocabulary is the static alignment target set. It is immutable once built;
// only the external trainer replaces the unit embeddings between scoring
// calls.
type Vocabulary struct {
	Entries   []Entry
	MaxLength int

	// IDToUnit maps unit id -> character unit, sorted for determinism.
	IDToUnit []string
	UnitToID map[string]int
}

// FromWords builds a vocabulary from raw words, keeping only those whose
// character length falls within [minLength, maxLength]. An empty post-filter
// vocabulary is a fatal configuration error.
func FromWords(words []string, minLength, maxLength int) (*Vocabulary, error) {
	if minLength > maxLength {
		return nil, fmt.Errorf("min word length %d exceeds max word length %d", minLength, maxLength)
	}

	seen := map[string]bool{}
	var kept [][]string
	var keptWords []string
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		units := splitUnits(w)
		if len(units) < minLength || len(units) > maxLength {
			continue
		}
		kept = append(kept, units)
		keptWords = append(keptWords, w)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("vocabulary is empty after filtering to lengths [%d, %d]", minLength, maxLength)
	}

	unitSet := map[string]bool{}
	maxLen := 0
	for _, units := range kept {
		if len(units) > maxLen {
			maxLen = len(units)
		}
		for _, u := range units {
			unitSet[u] = true
		}
	}
	idToUnit := maps.Keys(unitSet)
	sort.Strings(idToUnit)
	unitToID := make(map[string]int, len(idToUnit))
	for i, u := range idToUnit {
		unitToID[u] = i
	}

	entries := make([]Entry, len(kept))
	for i, units := range kept {
		indexed := make([]int, maxLen)
		for j, u := range units {
			indexed[j] = unitToID[u]
		}
		entries[i] = Entry{
			Word:   keptWords[i],
			Length: len(units),
			Units:  indexed,
		}
	}

	return &Vocabulary{
		Entries:   entries,
		MaxLength: maxLen,
		IDToUnit:  idToUnit,
		UnitToID:  unitToID,
	}, nil
}

// Load reads a newline-delimited word list from a local path or afs URL and
// builds the vocabulary from it.
func Load(path string, minLength, maxLength int) (*Vocabulary, error) {
	words, err := util.ReadFileLines(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary from %s: %w", path, err)
	}
	voc, err := FromWords(words, minLength, maxLength)
	if err != nil {
		return nil, fmt.Errorf("building vocabulary from %s: %w", path, err)
	}
	return voc, nil
}

// Size returns the number of vocabulary entries.
func (v *Vocabulary) Size() int {
	return len(v.Entries)
}

// NumUnits returns the size of the shared unit inventory.
func (v *Vocabulary) NumUnits() int {
	return len(v.IDToUnit)
}

// Lengths returns the per-entry lengths in entry order.
func (v *Vocabulary) Lengths() []int {
	lengths := make([]int, len(v.Entries))
	for i, e := range v.Entries {
		lengths[i] = e.Length
	}
	return lengths
}

// IndexSequence maps each character unit of a raw sequence to its unit id.
// Units absent from the vocabulary inventory map to -1; callers decide how
// to embed unknown units.
func (v *Vocabulary) IndexSequence(seq string) []int {
	units := splitUnits(seq)
	ids := make([]int, len(units))
	for i, u := range units {
		if id, ok := v.UnitToID[u]; ok {
			ids[i] = id
		} else {
			ids[i] = -1
		}
	}
	return ids
}

// splitUnits decomposes a word into its character units. Units are runes;
// a combining-character scheme would slot in here without touching callers.
func splitUnits(w string) []string {
	var units []string
	for _, r := range w {
		units = append(units, string(r))
	}
	return units
}
