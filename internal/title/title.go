// Package title 处理电影标题字符串：比较键、年份拆分、slug 还原。
package title

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	yearRE      = regexp.MustCompile(`\(\d{4}\)`)
	splitYearRE = regexp.MustCompile(`^(.+?)\s*\((\d{4})\)`)
)

// HasYear 判断标题里是否带有 "(YYYY)"。
func HasYear(s string) bool { return yearRE.MatchString(s) }

// Key 返回标题的比较键（只用于判等，不用于展示）。
//
// 规则：去掉 "(YYYY)" -> 转写为 ASCII -> 只保留字母/数字/空格 -> 折叠空白 -> 小写。
// Key(Key(x)) == Key(x)。
func Key(s string) string {
	s = yearRE.ReplaceAllString(s, " ")
	s = unidecode.Unidecode(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// SplitYear 把 "Name (2020)" 拆成 ("Name", "2020")；没有年份时 year 为空。
func SplitYear(s string) (name, year string) {
	s = strings.TrimSpace(s)
	m := splitYearRE.FindStringSubmatch(s)
	if m == nil {
		return s, ""
	}
	return strings.TrimSpace(m[1]), m[2]
}

// FromSlug 把 "/film/the-fountain/" 或 "the-fountain" 还原为 "The Fountain"。
func FromSlug(slug string) string {
	s := strings.TrimSpace(slug)
	s = strings.TrimPrefix(s, "/")
	s = strings.TrimPrefix(s, "film/")
	s = strings.Trim(s, "/")
	s = strings.NewReplacer("-", " ", "_", " ", "/", " ").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	// Caser 有内部状态，不能跨 goroutine 共享：每次调用新建。
	return cases.Title(language.English).String(s)
}

// DedupFold 按大小写不敏感去重，保留首次出现的原文与顺序。
func DedupFold(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		k := strings.ToLower(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}
