package wizard

// Rune-accurate single-line editing. Key strings arrive from bubbletea, so
// multi-rune paste chunks must insert as a unit.

// runeLen returns the number of runes in s.
func runeLen(s string) int {
	return len([]rune(s))
}

// renderCursor inserts a block cursor (█) at rune position pos within s.
func renderCursor(s string, pos int) string {
	runes := []rune(s)
	if pos >= len(runes) {
		return s + "█"
	}
	return string(runes[:pos]) + "█" + string(runes[pos:])
}

// runeInsertAt inserts text at rune position pos within s.
func runeInsertAt(s string, pos int, text string) string {
	runes := []rune(s)
	if pos >= len(runes) {
		return s + text
	}
	return string(runes[:pos]) + text + string(runes[pos:])
}

// runeDeleteAt deletes the rune before position pos, returning the new string.
func runeDeleteAt(s string, pos int) string {
	runes := []rune(s)
	if pos <= 0 || pos > len(runes) {
		return s
	}
	return string(runes[:pos-1]) + string(runes[pos:])
}

// deleteWordAt deletes the word before rune position pos, returning the new
// string and cursor position.
func deleteWordAt(s string, pos int) (string, int) {
	runes := []rune(s)
	if pos <= 0 {
		return s, 0
	}
	i := pos
	for i > 0 && runes[i-1] == ' ' {
		i--
	}
	for i > 0 && runes[i-1] != ' ' {
		i--
	}
	return string(runes[:i]) + string(runes[pos:]), i
}
