package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText trims s, collapses internal whitespace and puts it in NFC
// form so composed and decomposed accents compare equal.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// FoldText is NormalizeText plus lower-casing. It is the form queries and
// names are compared in.
func FoldText(s string) string {
	return strings.ToLower(NormalizeText(s))
}

// EscapeLike escapes the LIKE wildcards in s using backslash, the default
// escape character in PostgreSQL.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Words splits s into its whitespace-delimited words
func Words(s string) []string {
	return strings.FieldsFunc(s, unicode.IsSpace)
}
