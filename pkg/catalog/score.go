// Package catalog implements the remote-catalog side of wowplug: name
// resolution against one or more addon providers with fuzzy-matched,
// scored candidates, and fetching of resolved candidates into a staging
// directory.
package catalog

import (
	"regexp"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/wowplug/wowplug/pkg/errors"
	"github.com/wowplug/wowplug/pkg/types"
)

var nonWordRe = regexp.MustCompile(`(\W|_)+`)

// Normalize lowercases a name, collapses punctuation to spaces, and
// drops tokens from the blacklist (generic words like "ui" or "options"
// that only add noise to similarity scoring).
func Normalize(name string, blacklist []string) string {
	name = strings.ToLower(name)
	name = strings.TrimSpace(nonWordRe.ReplaceAllString(name, " "))
	if len(blacklist) == 0 {
		return name
	}
	drop := make(map[string]bool, len(blacklist))
	for _, w := range blacklist {
		drop[strings.ToLower(w)] = true
	}
	var kept []string
	for _, tok := range strings.Fields(name) {
		if !drop[tok] {
			kept = append(kept, tok)
		}
	}
	if len(kept) == 0 {
		return name
	}
	return strings.Join(kept, " ")
}

// Similarity returns a name-similarity confidence in [0,1]: 1 for an
// exact match after normalization (separator differences like
// "WeakAuras" vs "weak-auras" do not count), falling off with
// Levenshtein distance.
func Similarity(a, b string, blacklist []string) float64 {
	na, nb := Normalize(a, blacklist), Normalize(b, blacklist)
	if na == nb || squash(na) == squash(nb) {
		return 1.0
	}
	longest := len(na)
	if len(nb) > longest {
		longest = len(nb)
	}
	if longest == 0 {
		return 0
	}
	dist := fuzzy.LevenshteinDistance(na, nb)
	score := 1.0 - float64(dist)/float64(longest)
	if score < 0 {
		return 0
	}
	return score
}

// squash removes the token separators Normalize leaves behind, so
// names that differ only in word boundaries compare equal.
func squash(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

// Rank scores each candidate against name, orders them by descending
// confidence (ties broken by name for determinism), and truncates to
// max entries when max > 0.
func Rank(name string, cands []types.Candidate, blacklist []string, max int) []types.Candidate {
	ranked := make([]types.Candidate, len(cands))
	copy(ranked, cands)
	for i := range ranked {
		ranked[i].Confidence = Similarity(name, ranked[i].Name, blacklist)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].Name < ranked[j].Name
	})
	if max > 0 && len(ranked) > max {
		ranked = ranked[:max]
	}
	return ranked
}

// Pick applies the acceptance rule: the top candidate wins only when its
// confidence reaches minScore and beats the runner-up by at least
// minMargin. Anything else is ambiguous and must be left to the user,
// never auto-picked.
func Pick(cands []types.Candidate, minScore, minMargin float64) (types.Candidate, error) {
	if len(cands) == 0 {
		return types.Candidate{}, errors.New(errors.ErrNotFound, "no catalog candidates")
	}
	top := cands[0]
	if top.Confidence < minScore {
		return types.Candidate{}, errors.Newf(errors.ErrResolutionAmbiguous,
			"best match %q scores %.2f, below threshold %.2f", top.Name, top.Confidence, minScore)
	}
	if len(cands) > 1 && top.Confidence-cands[1].Confidence < minMargin {
		return types.Candidate{}, errors.Newf(errors.ErrResolutionAmbiguous,
			"matches %q (%.2f) and %q (%.2f) are too close to call",
			top.Name, top.Confidence, cands[1].Name, cands[1].Confidence)
	}
	return top, nil
}
