package utils

import (
	"strconv"
	"strings"
	"time"
)

// FormatNumberWithDots formats a whole number with dot separators for
// thousands, the id-ID convention (150000 -> "150.000")
func FormatNumberWithDots(num int64) string {
	negative := num < 0
	if negative {
		num = -num
	}
	integerPart := strconv.FormatInt(num, 10)

	var formatted strings.Builder
	if negative {
		formatted.WriteRune('-')
	}
	for i, c := range integerPart {
		if i > 0 && (len(integerPart)-i)%3 == 0 {
			formatted.WriteRune('.')
		}
		formatted.WriteRune(c)
	}
	return formatted.String()
}

// FormatRupiah renders an amount as "Rp 150.000"
func FormatRupiah(amount int64) string {
	return "Rp " + FormatNumberWithDots(amount)
}

// FormatDateID renders the calendar date of t in loc as d/m/yyyy without padding
func FormatDateID(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("2/1/2006")
}

// CivilDate truncates t to midnight of its calendar day in loc
func CivilDate(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// SplitMessage breaks text into chunks of at most limit runes, preferring line boundaries
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || len([]rune(text)) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0
	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		lineRunes := []rune(line)
		if currentLen+len(lineRunes) <= limit {
			current.WriteString(line)
			currentLen += len(lineRunes)
			continue
		}
		flush()
		for len(lineRunes) > limit {
			chunks = append(chunks, string(lineRunes[:limit]))
			lineRunes = lineRunes[limit:]
		}
		current.WriteString(string(lineRunes))
		currentLen = len(lineRunes)
	}
	flush()
	return chunks
}
