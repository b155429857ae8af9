package pdf

import (
	"strconv"
)

// RGB 文本颜色
type RGB struct {
	R, G, B int
}

// ParseHexColor 解析 #RRGGBB 颜色，格式错误时回退为黑色
func ParseHexColor(s string) RGB {
	if len(s) != 7 || s[0] != '#' {
		return RGB{}
	}
	r, err1 := strconv.ParseUint(s[1:3], 16, 8)
	g, err2 := strconv.ParseUint(s[3:5], 16, 8)
	b, err3 := strconv.ParseUint(s[5:7], 16, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		return RGB{}
	}
	return RGB{R: int(r), G: int(g), B: int(b)}
}
