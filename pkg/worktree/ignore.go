package worktree

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	billy "gopkg.in/src-d/go-billy.v4"
)

// IgnoreFileName is read from the working tree root by LoadIgnore.
const IgnoreFileName = ".kbgitignore"

// Ignore decides which working tree paths Scan leaves out of a snapshot.
// Patterns follow the familiar gitignore subset: "#" comments, "!" negation,
// a trailing "/" for directories only, "*" "?" and "[...]" globs, and "**"
// across directories. The last matching pattern wins.
type Ignore struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	glob     string
	negated  bool
	dirOnly  bool
	fullPath bool
	re       *regexp.Regexp
}

// LoadIgnore parses the ignore file at the root of fs. A missing file yields
// an Ignore that matches nothing.
func LoadIgnore(fs billy.Filesystem) (*Ignore, error) {
	f, err := fs.Open(IgnoreFileName)
	if err != nil {
		if os.IsNotExist(err) {
			return &Ignore{}, nil
		}
		return nil, fmt.Errorf("open %s: %w", IgnoreFileName, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", IgnoreFileName, err)
	}
	return ParseIgnore(lines...), nil
}

// ParseIgnore builds an Ignore from pattern lines.
func ParseIgnore(lines ...string) *Ignore {
	ig := &Ignore{}
	for _, line := range lines {
		if p, ok := parseIgnoreLine(line); ok {
			ig.patterns = append(ig.patterns, p)
		}
	}
	return ig
}

func parseIgnoreLine(line string) (ignorePattern, bool) {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return ignorePattern{}, false
	}

	var p ignorePattern
	if strings.HasPrefix(line, "!") {
		p.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		line = strings.TrimLeft(line, "/")
		p.fullPath = true
	}
	if line == "" {
		return ignorePattern{}, false
	}
	p.fullPath = p.fullPath || strings.Contains(line, "/")
	p.glob = line
	if strings.Contains(line, "**") {
		re, err := regexp.Compile(globToRegexp(line))
		if err != nil {
			return ignorePattern{}, false
		}
		p.re = re
	}
	return p, true
}

// Match reports whether the slash-separated path rel is ignored. isDir tells
// whether rel names a directory.
func (ig *Ignore) Match(rel string, isDir bool) bool {
	if ig == nil {
		return false
	}
	ignored := false
	for _, p := range ig.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		target := rel
		if !p.fullPath {
			target = path.Base(rel)
		}
		if p.match(target) {
			ignored = !p.negated
		}
	}
	return ignored
}

func (p ignorePattern) match(target string) bool {
	if p.re != nil {
		return p.re.MatchString(target)
	}
	ok, _ := path.Match(p.glob, target)
	return ok
}

func globToRegexp(glob string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(glob); i++ {
		ch := glob[i]
		switch {
		case ch == '*' && i+1 < len(glob) && glob[i+1] == '*':
			if i+2 < len(glob) && glob[i+2] == '/' {
				// "**/" matches zero or more leading directories.
				b.WriteString("(?:.*/)?")
				i += 2
			} else {
				b.WriteString(".*")
				i++
			}
		case ch == '*':
			b.WriteString("[^/]*")
		case ch == '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	b.WriteString("$")
	return b.String()
}
