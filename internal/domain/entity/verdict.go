package entity

import (
	"fmt"
	"strings"
)

// MaxReasoning предел длины обоснования оракула в символах
const MaxReasoning = 200

// ParseOracleText извлекает метку из свободного текста оракула поиском ключевых слов:
// "contaminat" важнее "clean"/"pure"/"healthy", иначе uncertain.
// Обоснование: первые MaxReasoning символов ответа.
func ParseOracleText(text string) (Label, string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return LabelError, "", fmt.Errorf("empty response: %w", ErrParseFailure)
	}

	lower := strings.ToLower(trimmed)
	label := LabelUncertain
	switch {
	case strings.Contains(lower, "contaminat"):
		label = LabelContaminated
	case strings.Contains(lower, "clean"), strings.Contains(lower, "pure"), strings.Contains(lower, "healthy"):
		label = LabelClean
	}
	return label, truncateRunes(trimmed, MaxReasoning), nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
