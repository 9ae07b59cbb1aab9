package launcher

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// launcherSource exposes each launcher's name and triggers to fuzzy
// matching; index i of the source maps back to owners[i].
type launcherSource struct {
	words  []string
	owners []Launcher
}

func (s launcherSource) String(i int) string { return s.words[i] }
func (s launcherSource) Len() int            { return len(s.words) }

// Match returns the launchers whose name or a trigger fuzzily matches the
// partial input, best first. An empty input returns every launcher.
func (r *Registry) Match(partial string) []Launcher {
	all := r.All()
	if partial == "" {
		return all
	}

	var src launcherSource
	for _, l := range all {
		src.words = append(src.words, l.Name())
		src.owners = append(src.owners, l)
		for _, trigger := range l.CommandTriggers() {
			src.words = append(src.words, trigger)
			src.owners = append(src.owners, l)
		}
	}

	matches := fuzzy.FindFrom(partial, src)
	lower := strings.ToLower(partial)
	sort.SliceStable(matches, func(i, j int) bool {
		pi := strings.HasPrefix(strings.ToLower(matches[i].Str), lower)
		pj := strings.HasPrefix(strings.ToLower(matches[j].Str), lower)
		if pi != pj {
			return pi
		}
		return matches[i].Score > matches[j].Score
	})

	seen := make(map[string]bool)
	var out []Launcher
	for _, m := range matches {
		l := src.owners[m.Index]
		if seen[l.Name()] {
			continue
		}
		seen[l.Name()] = true
		out = append(out, l)
	}
	return out
}
