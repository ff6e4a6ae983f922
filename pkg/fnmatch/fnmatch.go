// Package fnmatch provides Unix shell style pattern matching compatible with
// Python's fnmatch module on POSIX systems.
//
// The translation rules follow CPython's Lib/fnmatch.py.
//
// Copyright (c) 2001-2024 Python Software Foundation.
// All Rights Reserved.
//
// This Go port is licensed under the MIT License, but includes code derived from
// Python's fnmatch module which is licensed under the Python Software Foundation License Version 2.
//
// Patterns are Unix shell style:
//
//   - "*" matches everything, including path separators
//   - "?" matches any single character
//   - "[seq]" matches any character in seq
//   - "[!seq]" matches any character not in seq
//
// Matching is case-sensitive. An unclosed [ is matched literally.
package fnmatch

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var patternCache = sync.Map{}

// Pattern is a compiled shell pattern.
type Pattern struct {
	source string
	re     *regexp.Regexp
}

// Compile translates pattern and compiles it. Compiled patterns are cached.
func Compile(pattern string) (*Pattern, error) {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*Pattern), nil
	}

	re, err := regexp.Compile(Translate(pattern))
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}

	p := &Pattern{source: pattern, re: re}
	patternCache.Store(pattern, p)
	return p, nil
}

// String returns the pattern as it was written.
func (p *Pattern) String() string {
	return p.source
}

// Match reports whether name matches the whole pattern.
func (p *Pattern) Match(name string) bool {
	return p.re.MatchString(name)
}

// Match tests whether name matches the shell pattern.
func Match(pattern, name string) (bool, error) {
	p, err := Compile(pattern)
	if err != nil {
		return false, err
	}
	return p.Match(name), nil
}

// Translate converts a shell pattern to an anchored regular expression.
func Translate(pattern string) string {
	runes := []rune(pattern)

	var b strings.Builder
	b.WriteString("(?s:^")

	for i := 0; i < len(runes); {
		c := runes[i]
		i++

		switch c {
		case '*':
			for i < len(runes) && runes[i] == '*' {
				i++
			}
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		case '[':
			class, next, ok := bracket(runes, i)
			if !ok {
				b.WriteString(`\[`)
				continue
			}
			b.WriteString(class)
			i = next
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	b.WriteString("$)")
	return b.String()
}

// emptyClass matches no character. RE2 has no (?!).
const emptyClass = `[^\x00-\x{10FFFF}]`

// bracket parses a character class whose body starts at runes[start].
// It returns the regexp for the class and the index just past the closing ].
func bracket(runes []rune, start int) (string, int, bool) {
	j := start
	if j < len(runes) && runes[j] == '!' {
		j++
	}
	// A ] right after [ or [! belongs to the set.
	if j < len(runes) && runes[j] == ']' {
		j++
	}
	for j < len(runes) && runes[j] != ']' {
		j++
	}
	if j >= len(runes) {
		return "", start, false
	}

	chunks := rangeChunks(runes[start:j])
	parts := make([]string, len(chunks))
	for k, chunk := range chunks {
		parts[k] = escapeClass(chunk)
	}
	stuff := strings.Join(parts, "-")

	switch {
	case stuff == "":
		return emptyClass, j + 1, true
	case stuff == "!":
		return ".", j + 1, true
	case stuff[0] == '!':
		stuff = "^" + stuff[1:]
	case stuff[0] == '^':
		stuff = `\` + stuff
	}
	return "[" + stuff + "]", j + 1, true
}

// rangeChunks splits a class body on the hyphens that form ranges and drops
// empty ranges such as z-a, which match nothing.
func rangeChunks(body []rune) [][]rune {
	k := 1
	if body[0] == '!' {
		k = 2
	}

	var chunks [][]rune
	i := 0
	for {
		off := indexRune(body, '-', k)
		if off < 0 {
			break
		}
		chunks = append(chunks, body[i:off])
		i = off + 1
		k = off + 3
	}

	if rest := body[i:]; len(rest) > 0 || len(chunks) == 0 {
		chunks = append(chunks, rest)
	} else {
		last := chunks[len(chunks)-1]
		chunks[len(chunks)-1] = append(append([]rune{}, last...), '-')
	}

	for k := len(chunks) - 1; k > 0; k-- {
		prev, cur := chunks[k-1], chunks[k]
		if len(prev) == 0 || len(cur) == 0 || prev[len(prev)-1] <= cur[0] {
			continue
		}
		merged := append(append([]rune{}, prev[:len(prev)-1]...), cur[1:]...)
		chunks[k-1] = merged
		chunks = append(chunks[:k], chunks[k+1:]...)
	}
	return chunks
}

func indexRune(runes []rune, r rune, from int) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

func escapeClass(chunk []rune) string {
	var b strings.Builder
	for _, r := range chunk {
		switch r {
		case '\\', ']', '[', '-':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
