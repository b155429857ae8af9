package pdf

import "testing"

func TestParseHexColor(t *testing.T) {
	cases := []struct {
		in   string
		want RGB
	}{
		{"#FF0000", RGB{255, 0, 0}},
		{"#00ff00", RGB{0, 255, 0}},
		{"#336699", RGB{51, 102, 153}},
		{"#000000", RGB{0, 0, 0}},
	}
	for _, c := range cases {
		if got := ParseHexColor(c.in); got != c.want {
			t.Errorf("ParseHexColor(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseHexColorMalformed(t *testing.T) {
	// 格式错误一律回退黑色
	for _, in := range []string{"", "red", "#FFF", "#GGGGGG", "FF0000", "#FF00001", "#FF 000"} {
		if got := ParseHexColor(in); got != (RGB{}) {
			t.Errorf("ParseHexColor(%q) = %v, want black", in, got)
		}
	}
}
