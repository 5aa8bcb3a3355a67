package parse

import (
	"strconv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/runenames"
)

const cjkIdeographPrefix = "CJK UNIFIED IDEOGRAPH-"

// runesByName is the reverse of runenames.Name, built on first use.
var runesByName = sync.OnceValue(func() map[string]rune {
	m := make(map[string]rune, 1<<16)
	for r := rune(0); r <= unicode.MaxRune; r++ {
		if r >= 0xD800 && r <= 0xDFFF {
			continue
		}
		name := runenames.Name(r)
		if name == "" || name[0] == '<' {
			continue
		}
		if _, ok := m[name]; !ok {
			m[name] = r
		}
	}
	return m
})

// namedRune decodes the "{NAME}" part of a \N escape at the start of s. It
// returns the rune and the number of bytes consumed. Names are matched
// case-insensitively.
func namedRune(s string) (rune, int, bool) {
	if !strings.HasPrefix(s, "{") {
		return 0, 0, false
	}
	end := strings.IndexByte(s, '}')
	if end < 2 {
		return 0, 0, false
	}
	r, ok := lookupRuneName(s[1:end])
	if !ok {
		return 0, 0, false
	}
	return r, end + 1, true
}

func lookupRuneName(name string) (rune, bool) {
	name = strings.ToUpper(name)
	if hex, ok := strings.CutPrefix(name, cjkIdeographPrefix); ok {
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil || !unicode.Is(unicode.Han, rune(v)) {
			return 0, false
		}
		return rune(v), true
	}
	r, ok := runesByName()[name]
	return r, ok
}
