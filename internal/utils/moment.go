package utils

import (
	"strconv"
	"strings"
	"time"
)

// DefaultLayout Moment 的默认格式
const DefaultLayout = "YYYY-MM-DD HH:mm:ss"

type token struct {
	name   string
	render func(t time.Time) string
}

// 按长度降序排列，保证 YYYY 先于 YY 匹配
var tokens = []token{
	{"YYYY", func(t time.Time) string { return strconv.Itoa(t.Year()) }},
	{"YY", func(t time.Time) string {
		y := strconv.Itoa(t.Year())
		if len(y) > 2 {
			y = y[len(y)-2:]
		}
		return y
	}},
	// MM、DD 不补零：3 月 5 日输出 3-5
	{"MM", func(t time.Time) string { return strconv.Itoa(int(t.Month())) }},
	{"DD", func(t time.Time) string { return strconv.Itoa(t.Day()) }},
	{"HH", func(t time.Time) string { return pad2(t.Hour()) }},
	{"mm", func(t time.Time) string { return pad2(t.Minute()) }},
	{"ss", func(t time.Time) string { return pad2(t.Second()) }},
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// Moment 按 YYYY YY MM DD HH mm ss 占位符格式化时间，其余字符原样输出
func Moment(format string, t time.Time) string {
	if format == "" {
		format = DefaultLayout
	}
	var sb strings.Builder
	sb.Grow(len(format) + 8)

scan:
	for i := 0; i < len(format); {
		for _, tk := range tokens {
			if strings.HasPrefix(format[i:], tk.name) {
				sb.WriteString(tk.render(t))
				i += len(tk.name)
				continue scan
			}
		}
		sb.WriteByte(format[i])
		i++
	}
	return sb.String()
}

// MomentNow 格式化当前时间
func MomentNow(format string) string {
	return Moment(format, time.Now())
}
