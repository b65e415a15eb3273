package features

import (
	"strings"
	"unicode"

	"github.com/iancoleman/strcase"
)

// dasherize converts "myLib", "my_lib" or "My Lib" to "my-lib". A digit
// run stays attached to the word before it, so "lib2Utils" becomes
// "lib2-utils".
func dasherize(s string) string {
	var b strings.Builder
	for _, part := range strings.Split(strcase.ToKebab(strings.ReplaceAll(s, ".", "-")), "-") {
		switch {
		case part == "":
		case b.Len() > 0 && unicode.IsDigit(rune(part[0])):
			b.WriteString(part)
		default:
			if b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteString(part)
		}
	}
	return b.String()
}

// classify converts "my-lib" or "myLib" to "MyLib".
func classify(s string) string {
	return strcase.ToCamel(dasherize(s))
}
