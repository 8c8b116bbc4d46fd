package util

import "strings"

// MaxSheetName is the longest worksheet name Excel accepts.
const MaxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")

// SafeSheetName trims name, replaces the characters Excel forbids in sheet
// names and cuts it to MaxSheetName runes.
func SafeSheetName(name string) string {
	return TruncateRunes(sheetNameReplacer.Replace(strings.TrimSpace(name)), MaxSheetName)
}

func TruncateRunes(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
