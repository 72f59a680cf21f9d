package demourl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		homepage string
		readme   string
		want     string
	}{
		{
			name:     "homepage is authoritative",
			homepage: "https://myapp.com",
			readme:   "Demo: https://other.netlify.app",
			want:     "https://myapp.com",
		},
		{
			name:     "homepage wins even for non-hosting domain",
			homepage: "https://docs.example.org/start",
			want:     "https://docs.example.org/start",
		},
		{
			name:   "netlify link in readme",
			readme: "Demo: https://myapp.netlify.app",
			want:   "https://myapp.netlify.app",
		},
		{
			name:   "no links",
			readme: "no links here",
			want:   "",
		},
		{
			name:   "first hosting link in document order",
			readme: "Docs at https://example.com/docs\nLive: https://a.vercel.app/ and https://b.netlify.app",
			want:   "https://a.vercel.app/",
		},
		{
			name:   "markdown link with trailing punctuation",
			readme: "Try it [here](https://user.github.io/project). Enjoy.",
			want:   "https://user.github.io/project",
		},
		{
			name:   "sentence punctuation trimmed",
			readme: "It runs on https://demo.fly.dev.",
			want:   "https://demo.fly.dev",
		},
		{
			name:   "bold markdown link",
			readme: "**Live demo:** <https://shop.pages.dev/>",
			want:   "https://shop.pages.dev/",
		},
		{
			name:   "non-http scheme ignored",
			readme: "ftp://files.netlify.app/dump then https://real.netlify.app",
			want:   "https://real.netlify.app",
		},
		{
			name:   "lookalike domain rejected",
			readme: "See https://vercel.app.evil.com/login",
			want:   "",
		},
		{
			name:     "invalid homepage falls back to readme",
			homepage: "myapp.com",
			readme:   "https://myapp.onrender.com",
			want:     "https://myapp.onrender.com",
		},
		{
			name:     "whitespace homepage ignored",
			homepage: "   ",
			want:     "",
		},
		{
			name:   "uppercase scheme and host",
			readme: "HTTPS://MYAPP.HEROKUAPP.COM",
			want:   "HTTPS://MYAPP.HEROKUAPP.COM",
		},
		{
			name:   "mixed case host",
			readme: "https://MyApp.HerokuApp.com/",
			want:   "https://MyApp.HerokuApp.com/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.homepage, tt.readme))
		})
	}
}

func TestNew_CustomSuffixes(t *testing.T) {
	d := New(".example.dev ")

	assert.Equal(t, "https://app.example.dev", d.Detect("", "at https://app.example.dev"))
	assert.Equal(t, "", d.Detect("", "at https://app.netlify.app"))
}
