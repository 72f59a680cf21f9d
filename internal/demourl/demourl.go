// Package demourl guesses where a repository's live demo is hosted.
//
// The repository's homepage field wins when it holds an absolute http(s)
// URL. Otherwise the README is scanned for the first link whose host belongs
// to a known app/static hosting provider. Arbitrary links (docs, badges,
// blog posts) are ignored: a missed demo is better than a wrong one.
package demourl

import (
	"net/url"
	"strings"

	"mvdan.cc/xurls/v2"
)

// DefaultHostingSuffixes are domains that only serve deployed apps or sites.
var DefaultHostingSuffixes = []string{
	"vercel.app",
	"netlify.app",
	"netlify.com",
	"github.io",
	"gitlab.io",
	"herokuapp.com",
	"pages.dev",
	"workers.dev",
	"web.app",
	"firebaseapp.com",
	"onrender.com",
	"fly.dev",
	"railway.app",
	"surge.sh",
	"glitch.me",
	"replit.app",
	"repl.co",
	"streamlit.app",
	"amplifyapp.com",
	"azurewebsites.net",
	"azurestaticapps.net",
	"deno.dev",
	"koyeb.app",
}

// urlPattern only matches URLs with a scheme; hosts are checked separately.
var urlPattern = xurls.Strict()

// Detector finds demo URLs. The zero value is not usable; call New.
type Detector struct {
	suffixes []string
}

// New returns a Detector matching the given hosting suffixes, or
// DefaultHostingSuffixes when none are given.
func New(suffixes ...string) *Detector {
	if len(suffixes) == 0 {
		suffixes = DefaultHostingSuffixes
	}
	normalized := make([]string, 0, len(suffixes))
	for _, s := range suffixes {
		s = strings.ToLower(strings.Trim(strings.TrimSpace(s), "."))
		if s != "" {
			normalized = append(normalized, s)
		}
	}
	return &Detector{suffixes: normalized}
}

var defaultDetector = New()

// Detect runs the default detector.
func Detect(homepage, readme string) string {
	return defaultDetector.Detect(homepage, readme)
}

// Detect returns the likely demo URL, or "" if none is found.
func (d *Detector) Detect(homepage, readme string) string {
	if hp := strings.TrimSpace(homepage); hp != "" && isAbsoluteHTTPURL(hp) {
		return hp
	}
	if readme == "" {
		return ""
	}

	for _, candidate := range urlPattern.FindAllString(readme, -1) {
		u, err := url.Parse(candidate)
		if err != nil || u.Host == "" || !isHTTPScheme(u.Scheme) {
			continue
		}
		if d.isHostingDomain(u.Hostname()) {
			return candidate
		}
	}
	return ""
}

func (d *Detector) isHostingDomain(host string) bool {
	host = strings.ToLower(host)
	for _, suffix := range d.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return isHTTPScheme(u.Scheme) && u.Host != ""
}

func isHTTPScheme(scheme string) bool {
	scheme = strings.ToLower(scheme)
	return scheme == "http" || scheme == "https"
}
