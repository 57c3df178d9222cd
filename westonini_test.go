package wlsink

import (
	"strings"
	"testing"
)

func TestDesktopSize(t *testing.T) {
	tests := []struct {
		name string
		ini  string
		w, h int32
		ok   bool
	}{
		{
			name: "plain",
			ini:  "[shell]\nsize=1024x768\n",
			w:    1024, h: 768, ok: true,
		},
		{
			name: "other sections skipped",
			ini:  "[core]\nsize=1x1\n[shell]\nbackground-color=0xff000000\nsize=1920x1080\n",
			w:    1920, h: 1080, ok: true,
		},
		{
			name: "comments and blanks",
			ini:  "# a desktop\n\n[shell]\n# the size\nsize=800x600\n",
			w:    800, h: 600, ok: true,
		},
		{
			name: "spaces around value",
			ini:  "[shell]\nsize= 640x480 \n",
			w:    640, h: 480, ok: true,
		},
		{
			name: "size key in wrong section",
			ini:  "[output]\nsize=1024x768\n",
			ok:   false,
		},
		{
			name: "no size key",
			ini:  "[shell]\npanel-position=top\n",
			ok:   false,
		},
		{
			name: "malformed value",
			ini:  "[shell]\nsize=huge\n",
			ok:   false,
		},
		{
			name: "negative dimension",
			ini:  "[shell]\nsize=-10x768\n",
			ok:   false,
		},
		{
			name: "unterminated section ignored",
			ini:  "[shell\nsize=1024x768\n",
			ok:   false,
		},
		{
			name: "empty",
			ini:  "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		w, h, ok := desktopSize(strings.NewReader(tt.ini))
		if ok != tt.ok || w != tt.w || h != tt.h {
			t.Errorf("%v: desktopSize = %v, %v, %v; want %v, %v, %v",
				tt.name, w, h, ok, tt.w, tt.h, tt.ok)
		}
	}
}

func TestParseSize(t *testing.T) {
	if w, h, ok := parseSize("1280x720"); !ok || w != 1280 || h != 720 {
		t.Errorf("parseSize(1280x720) = %v, %v, %v", w, h, ok)
	}
	for _, bad := range []string{"", "1280", "x", "1280x", "x720", "0x720", "1280x0", "axb"} {
		if _, _, ok := parseSize(bad); ok {
			t.Errorf("parseSize(%q) accepted", bad)
		}
	}
}
