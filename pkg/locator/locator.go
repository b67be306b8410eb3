// Package locator 提供图片定位符的归一化与匹配，用于离线建库与在线目录之间的身份对账。
package locator

import "strings"

// Normalize 提取定位符中的稳定标识：剥离托管前缀与版本段。
//
// 托管 URL 的典型形态是 ".../upload/v{版本号}/{publicID}.{ext}"，
// 其中版本段与扩展名都会随重新上传而漂移，只有 publicID 稳定。
// 无法识别托管结构时原样返回。
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	s := raw
	if i := strings.Index(s, "/upload/"); i >= 0 {
		s = s[i+len("/upload/"):]
		// 跳过版本段 v123456/
		if len(s) > 1 && s[0] == 'v' {
			if j := strings.IndexByte(s, '/'); j > 0 && isDigits(s[1:j]) {
				s = s[j+1:]
			}
		}
	}
	// 去掉扩展名（最后一个 '.' 之后的部分）
	if j := strings.LastIndexByte(s, '.'); j > 0 {
		s = s[:j]
	}
	return s
}

// Match 判断两个定位符是否指向同一张图片。
// 依次尝试：原文相等 → 归一化后相等 → 原文双向包含。
// 双向包含是尽力而为的启发式，可能误判，调用方应记录命中以便审计。
func Match(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	na, nb := Normalize(a), Normalize(b)
	if na != "" && na == nb {
		return true
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
