package utils

import "math/rand/v2"

const chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// UUID 生成随机 id
//
// length > 0 时返回 length 位字符，取自字母表前 radix 个字符（radix 非法时用全部 62 个）；
// length == 0 时返回 8-4-4-4-12 形式的 v4 布局字符串。
func UUID(length, radix int) string {
	if radix <= 0 || radix > len(chars) {
		radix = len(chars)
	}
	if length > 0 {
		buf := make([]byte, length)
		for i := range buf {
			buf[i] = chars[rand.IntN(radix)]
		}
		return string(buf)
	}

	buf := make([]byte, 36)
	buf[8], buf[13], buf[18], buf[23] = '-', '-', '-', '-'
	buf[14] = '4'
	for i := range buf {
		if buf[i] != 0 {
			continue
		}
		r := rand.IntN(16)
		if i == 19 {
			r = r&0x3 | 0x8 // variant: 8 9 A B
		}
		buf[i] = chars[r]
	}
	return string(buf)
}

// NewUUID 等价于 UUID(0, 0)
func NewUUID() string {
	return UUID(0, 0)
}
