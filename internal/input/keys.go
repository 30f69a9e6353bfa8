package input

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultTriggerKey replaces a blank or undecodable trigger key.
const DefaultTriggerKey = 'p'

// NormalizeKey returns the first character of key, lowercased. Blank input,
// NUL and invalid UTF-8 give DefaultTriggerKey.
func NormalizeKey(key string) rune {
	key = strings.TrimSpace(key)
	r, _ := utf8.DecodeRuneInString(key)
	if key == "" || r == 0 || r == utf8.RuneError {
		return DefaultTriggerKey
	}
	return unicode.ToLower(r)
}

// US-layout virtual key codes for the printable keys a trigger may use.
var punctuationVK = map[rune]uint16{
	' ':  0x20,
	';':  0xBA,
	'=':  0xBB,
	',':  0xBC,
	'-':  0xBD,
	'.':  0xBE,
	'/':  0xBF,
	'`':  0xC0,
	'[':  0xDB,
	'\\': 0xDC,
	']':  0xDD,
	'\'': 0xDE,
}

// virtualKey maps a printable rune to its Windows virtual key code.
func virtualKey(ch rune) (uint16, bool) {
	switch {
	case ch >= 'a' && ch <= 'z':
		return uint16(unicode.ToUpper(ch)), true
	case ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		return uint16(ch), true
	}
	vk, ok := punctuationVK[ch]
	return vk, ok
}
