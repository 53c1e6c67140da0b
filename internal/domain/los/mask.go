package los

import (
	"strings"
	"unicode"
)

// MaskName hides a patient name for on-screen listings. A single word keeps
// its first and last letters ("JOAO" becomes "J**O"); several words become
// the first word title-cased plus the initial of the last ("JOAO SILVA
// SANTOS" becomes "Joao S.").
func MaskName(name string) string {
	words := strings.Fields(name)
	switch len(words) {
	case 0:
		return ""
	case 1:
		r := []rune(words[0])
		if len(r) <= 2 {
			return string(r[0]) + "*"
		}
		return string(r[0]) + strings.Repeat("*", len(r)-2) + string(r[len(r)-1])
	}
	last := []rune(words[len(words)-1])
	return titleWord(words[0]) + " " + string(unicode.ToUpper(last[0])) + "."
}

func titleWord(w string) string {
	r := []rune(strings.ToLower(w))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
