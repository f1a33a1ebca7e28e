// Package pool 把生成器返回的自由文本解析为候选片单。
//
// 约束：
// - 只保留包含 "(YYYY)" 的行（唯一的“像电影”判定）
// - 不合法的行静默丢弃，不报错
// - 结果可能少于请求数量，由调用方处理
package pool

import (
	"regexp"
	"strings"

	"github.com/John-Robertt/BoxRec/internal/title"
)

// 序号只认 1~3 位数字 + 分隔符，避免误伤 "2001: A Space Odyssey"、"1917 (2019)" 这类片名。
var enumRE = regexp.MustCompile(`^\d{1,3}\s*[).:\-]+\s*`)

var emphasis = strings.NewReplacer("*", "", "_", "", `"`, "", "“", "", "”", "")

// Parse 按行解析、清洗并大小写不敏感去重（保留首次出现顺序）。
func Parse(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Trim(line, "•- \t\r")
		if line == "" {
			continue
		}
		if !title.HasYear(line) {
			continue
		}
		if c := Clean(line); c != "" {
			out = append(out, c)
		}
	}
	return title.DedupFold(out)
}

// Clean 清洗单行：去序号、去强调/引号、多候选只取 "/" 之前、去尾部句点与空白。
func Clean(line string) string {
	s := strings.TrimSpace(line)
	s = enumRE.ReplaceAllString(s, "")
	s = emphasis.Replace(s)
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	s = strings.Trim(s, ".")
	return strings.TrimSpace(s)
}
