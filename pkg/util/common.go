package util

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// GetJson 序列化用于调试日志，失败时返回错误描述
func GetJson(v interface{}) string {
	marshal, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<unencodable %T: %v>", v, err)
	}
	return string(marshal)
}

// Truncate 按字符截断，用于日志与提示词
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
