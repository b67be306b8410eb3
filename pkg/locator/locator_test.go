package locator

import "testing"

// TestNormalize 测试定位符归一化：去前缀、去版本段、去扩展名
func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"完整形态", "/upload/v123/images/10001.jpg", "images/10001"},
		{"无前缀", "images/10001.jpg", "images/10001"},
		{"无版本段", "/upload/images/10001.png", "images/10001"},
		{"仅文件名", "10001.jpg", "10001"},
		{"无扩展名", "/upload/v1/10001", "10001"},
		{"版本段非数字不剥离", "/upload/vabc/10001.jpg", "vabc/10001"},
		{"空串", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.raw); got != tt.want {
				t.Errorf("Normalize(%q) = %q，期望 %q", tt.raw, got, tt.want)
			}
		})
	}
}

// TestMatch 测试三级匹配：精确 → 归一化 → 双向包含
func TestMatch(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"精确相等", "/upload/v1/10001.jpg", "/upload/v1/10001.jpg", true},
		{"版本漂移", "/upload/v1/10001.jpg", "/upload/v999/10001.jpg", true},
		{"扩展名漂移", "/upload/v1/10001.jpg", "/upload/v1/10001.png", true},
		{"前缀缺失", "10001.jpg", "/upload/v1/10001.jpg", true},
		{"归一化后包含", "images/10001", "/upload/v2/app/images/10001.webp", true},
		{"互不包含", "/upload/v1/10001.jpg", "/upload/v1/10002.jpg", false},
		{"双空不匹配", "", "", false},
		{"单侧为空", "/upload/v1/10001.jpg", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match(tt.a, tt.b); got != tt.want {
				t.Errorf("Match(%q, %q) = %v，期望 %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
