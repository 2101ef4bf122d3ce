package generate

import (
	"fmt"
	"strings"
	"time"

	"github.com/kevinmichaelchen/gh-portfolio/internal/models"
)

// MaxPromptRepositories bounds how many repositories a prompt describes.
// The payload may hold more; only the leading entries are rendered.
const MaxPromptRepositories = 10

// TopRepositories returns at most MaxPromptRepositories entries, in payload
// order.
func TopRepositories(p models.Payload) []models.PayloadEntry {
	if len(p.Repositories) <= MaxPromptRepositories {
		return p.Repositories
	}
	return p.Repositories[:MaxPromptRepositories]
}

// Excerpt returns the first n characters of text followed by "...".
// Characters are counted as runes so multi-byte text is never split.
func Excerpt(text string, n int) string {
	runes := []rune(text)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes) + "..."
}

// readmeExcerpt is "" when the entry has no README content.
func readmeExcerpt(e models.PayloadEntry, n int) string {
	if e.Readme == nil || *e.Readme == "" {
		return ""
	}
	return Excerpt(*e.Readme, n)
}

func orFallback(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}

// koreanDate renders t like ko-KR locale dates: "2024. 1. 5.".
func koreanDate(t time.Time) string {
	if t.IsZero() {
		return "날짜 정보 없음"
	}
	t = t.UTC()
	return fmt.Sprintf("%d. %d. %d.", t.Year(), int(t.Month()), t.Day())
}

func joinTopics(topics []string, fallback string) string {
	if len(topics) == 0 {
		return fallback
	}
	return strings.Join(topics, ", ")
}
