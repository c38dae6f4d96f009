package points

import (
	"regexp"
	"strings"
)

var (
	dangerChars = regexp.MustCompile(`[<>'"]`)
	jsProto     = regexp.MustCompile(`(?i)javascript:`)
	eventAttr   = regexp.MustCompile(`(?i)on\w+=`)
	nonDigit    = regexp.MustCompile(`\D`)
	phoneKeep   = regexp.MustCompile(`[^\d()\s-]`)
	phone11     = regexp.MustCompile(`^(\d{2})(\d{5})(\d{4})$`)
	phone10     = regexp.MustCompile(`^(\d{2})(\d{4})(\d{4})$`)
)

// Sanitize：自由文本防注入清洗
// 背景：去除尖括号与引号、javascript: 前缀、内联事件属性，截断到 200 字符
// 约束：总函数，永不失败；对已清洗输入幂等（模式删除循环到不动点，截断后再裁剪空白）
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.TrimSpace(s)
	s = dangerChars.ReplaceAllString(s, "")
	for {
		next := jsProto.ReplaceAllString(s, "")
		next = eventAttr.ReplaceAllString(next, "")
		if next == s {
			break
		}
		s = next
	}
	if r := []rune(s); len(r) > 200 {
		s = string(r[:200])
	}
	return strings.TrimSpace(s)
}

// SanitizePhone：电话字段仅保留数字、括号、空格与连字符
func SanitizePhone(s string) string {
	if s == "" {
		return ""
	}
	return phoneKeep.ReplaceAllString(s, "")
}

// FormatPhone：按数字位数套用巴西固话/手机掩码
// 约束：11 位 → (DD) DDDDD-DDDD；10 位 → (DD) DDDD-DDDD；其余原样返回由校验层拒绝
func FormatPhone(s string) string {
	if s == "" {
		return ""
	}
	digits := nonDigit.ReplaceAllString(s, "")
	if phone11.MatchString(digits) {
		return phone11.ReplaceAllString(digits, "($1) $2-$3")
	}
	if phone10.MatchString(digits) {
		return phone10.ReplaceAllString(digits, "($1) $2-$3")
	}
	return s
}

// IsValidPhone：数字位数为 10 或 11 即视为可格式化
func IsValidPhone(s string) bool {
	n := len(nonDigit.ReplaceAllString(s, ""))
	return n == 10 || n == 11
}
