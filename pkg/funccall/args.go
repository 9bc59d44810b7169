package funccall

import (
	"encoding/json"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParseArguments tokenizes the argument list of one textual function call
// into a mapping from argument name to value.
//
// Grammar (scanned left to right, unmatched text is skipped):
//
//	pair  = ident "=" value ( "," | end )
//	ident = word characters (letters, digits, "_")
//	value = "'" { char | "''" } "'"
//	      | `"` { char | `""` } `"`
//	      | shortest run of non-space characters
//
// A quoted value closes at the first matching quote that is followed by a
// comma or the end of input. Each raw value is cleaned by trimming quote
// and comma characters from both ends and collapsing doubled quotes, then
// decoded as a JSON literal (number, bool, null, array, object) when
// possible. Numbers decode to json.Number. Everything else stays a string.
// A repeated name keeps the last value.
func ParseArguments(text string) map[string]any {
	args := make(map[string]any)

	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isWordRune(r) {
			i += size
			continue
		}

		nameEnd := scanWord(text, i)
		if nameEnd >= len(text) || text[nameEnd] != '=' {
			i = nameEnd
			continue
		}

		raw, end, ok := scanValue(text, nameEnd+1)
		if !ok {
			i = nameEnd
			continue
		}

		args[text[i:nameEnd]] = interpretValue(cleanValue(raw))
		i = end
	}

	return args
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// scanWord returns the end of the run of word characters starting at i.
func scanWord(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isWordRune(r) {
			break
		}
		i += size
	}
	return i
}

// atEnd reports whether position k is the end of input. A single trailing
// newline also counts as the end.
func atEnd(text string, k int) bool {
	return k == len(text) || (k == len(text)-1 && text[k] == '\n')
}

// scanValue matches one value starting at p. It returns the raw value
// including its terminating comma, if any, and the position after it.
func scanValue(text string, p int) (string, int, bool) {
	if p >= len(text) {
		return "", 0, false
	}
	if q := text[p]; q == '\'' || q == '"' {
		if end, ok := scanQuoted(text, p, q); ok {
			return text[p:end], end, true
		}
	}
	if end, ok := scanBare(text, p); ok {
		return text[p:end], end, true
	}
	return "", 0, false
}

// scanQuoted matches a value quoted with q starting at p. A doubled quote
// inside the value is an escaped quote.
func scanQuoted(text string, p int, q byte) (int, bool) {
	j := p + 1
	for j < len(text) {
		if text[j] != q {
			j++
			continue
		}
		if atEnd(text, j+1) {
			return j + 1, true
		}
		if text[j+1] == ',' {
			return j + 2, true
		}
		if text[j+1] == q {
			j += 2
			continue
		}
		return 0, false
	}
	return 0, false
}

// scanBare matches the shortest run of non-space characters starting at p
// that is followed by a comma or the end of input.
func scanBare(text string, p int) (int, bool) {
	k := p
	for k < len(text) {
		r, size := utf8.DecodeRuneInString(text[k:])
		if unicode.IsSpace(r) {
			return 0, false
		}
		k += size
		if atEnd(text, k) {
			return k, true
		}
		if text[k] == ',' {
			return k + 1, true
		}
	}
	return 0, false
}

func cleanValue(raw string) string {
	v := strings.Trim(raw, `'",`)
	v = strings.ReplaceAll(v, "''", "'")
	return strings.ReplaceAll(v, `""`, `"`)
}

// interpretValue decodes v as a single JSON value, or returns v unchanged.
func interpretValue(v string) any {
	dec := json.NewDecoder(strings.NewReader(v))
	dec.UseNumber()

	var out any
	if err := dec.Decode(&out); err != nil {
		return v
	}
	if _, err := dec.Token(); err != io.EOF {
		return v
	}
	return out
}
