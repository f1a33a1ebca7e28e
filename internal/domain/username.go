package domain

import (
	"regexp"
	"strings"
)

// Username 是 Letterboxd 公开主页的用户名（URL 第一段）。
type Username string

var usernameRE = regexp.MustCompile(`^[A-Za-z0-9_]{1,40}$`)

// ParseUsername 校验并规范化用户名。
// 允许前导 "@" 与首尾空白；其余字符必须是字母/数字/下划线。
func ParseUsername(s string) (Username, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "@")
	if !usernameRE.MatchString(s) {
		return "", false
	}
	return Username(s), true
}
