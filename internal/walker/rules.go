package walker

import (
	"path"
	"path/filepath"
	"strings"
)

// FilterRules are the inclusion and exclusion rule sets applied while
// walking. Exclusions are an absolute veto. When any inclusion set is
// non-empty, a file must also match at least one inclusion rule.
//
// File and directory rules match an entry's base name or its slash-separated
// path relative to the walk root, using path.Match glob syntax. Extension
// rules are case-insensitive and may be written with or without the dot.
type FilterRules struct {
	IncludedFiles       []string
	IncludedDirectories []string
	IncludedExtensions  []string
	ExcludedFiles       []string
	ExcludedDirectories []string
	ExcludedExtensions  []string
}

// HasInclusions reports whether inclusion acts as a positive filter.
func (r FilterRules) HasInclusions() bool {
	return len(r.IncludedFiles) > 0 || len(r.IncludedDirectories) > 0 || len(r.IncludedExtensions) > 0
}

// compiledRules holds normalised rule sets so each entry is matched without
// re-normalising.
type compiledRules struct {
	includedFiles []string
	includedDirs  []string
	includedExts  map[string]struct{}
	excludedFiles []string
	excludedDirs  []string
	excludedExts  map[string]struct{}
	hasInclusions bool
}

func compile(r FilterRules) compiledRules {
	return compiledRules{
		includedFiles: normalizePatterns(r.IncludedFiles),
		includedDirs:  normalizePatterns(r.IncludedDirectories),
		includedExts:  normalizeExtensions(r.IncludedExtensions),
		excludedFiles: normalizePatterns(r.ExcludedFiles),
		excludedDirs:  normalizePatterns(r.ExcludedDirectories),
		excludedExts:  normalizeExtensions(r.ExcludedExtensions),
		hasInclusions: r.HasInclusions(),
	}
}

func normalizePatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(filepath.ToSlash(p))
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func normalizeExtensions(exts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out[e] = struct{}{}
	}
	return out
}

// excludesDir reports whether a directory must be skipped along with its
// subtree. rel is slash-separated and relative to the root.
func (c compiledRules) excludesDir(name, rel string) bool {
	return matchAny(c.excludedDirs, name, rel)
}

func (c compiledRules) excludesFile(name, rel string) bool {
	if matchAny(c.excludedFiles, name, rel) {
		return true
	}
	if len(c.excludedExts) > 0 {
		if _, ok := c.excludedExts[extension(name)]; ok {
			return true
		}
	}
	return false
}

// includesFile applies the positive filter. It is only consulted once the
// file survived exclusion.
func (c compiledRules) includesFile(name, rel string) bool {
	if !c.hasInclusions {
		return true
	}
	if matchAny(c.includedFiles, name, rel) {
		return true
	}
	if len(c.includedExts) > 0 {
		if _, ok := c.includedExts[extension(name)]; ok {
			return true
		}
	}
	return c.ancestorMatches(c.includedDirs, rel)
}

// ancestorMatches checks every directory on the way from the root to rel
// against patterns, both by base name and by relative path.
func (c compiledRules) ancestorMatches(patterns []string, rel string) bool {
	if len(patterns) == 0 {
		return false
	}
	dir := path.Dir(rel)
	for dir != "." && dir != "/" && dir != "" {
		if matchAny(patterns, path.Base(dir), dir) {
			return true
		}
		dir = path.Dir(dir)
	}
	return false
}

func matchAny(patterns []string, name, rel string) bool {
	for _, p := range patterns {
		if p == name || p == rel {
			return true
		}
		if ok, _ := path.Match(p, name); ok {
			return true
		}
		if strings.Contains(p, "/") {
			if ok, _ := path.Match(p, rel); ok {
				return true
			}
		}
	}
	return false
}

func extension(name string) string {
	return strings.ToLower(path.Ext(name))
}

// isHidden reports whether a base name is hidden by the dot-file convention.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
