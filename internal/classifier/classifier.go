// Package classifier assigns a status to a synced project.
//
// Decision order, first match wins:
//  1. a deployed URL was found      -> deployed
//  2. the description says WIP      -> in_progress
//  3. anything else                 -> code_only
//
// A homepage on its own does not count as deployed: it often points at an
// org page or documentation. Only a URL the demo detector accepted does.
package classifier

import (
	"regexp"
	"strings"

	"github.com/sakif/onelink-portfolio/internal/model"
)

// DefaultMarkers signal active development in a repository description.
var DefaultMarkers = []string{
	"wip",
	"work in progress",
	"in progress",
	"under construction",
	"under development",
}

// Classifier is safe for concurrent use.
type Classifier struct {
	inProgress *regexp.Regexp
}

// New builds a Classifier for the given markers, or DefaultMarkers.
// Markers match case-insensitively on word boundaries, so "wip" does not
// match "wipe".
func New(markers ...string) *Classifier {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	parts := make([]string, 0, len(markers))
	for _, m := range markers {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		words := strings.Fields(regexp.QuoteMeta(strings.ToLower(m)))
		parts = append(parts, strings.Join(words, `\s+`))
	}
	pattern := `(?i)\b(?:` + strings.Join(parts, "|") + `)\b`
	return &Classifier{inProgress: regexp.MustCompile(pattern)}
}

var defaultClassifier = New()

// Classify runs the default classifier.
func Classify(deployedURL string, hasHomepage bool, description string) model.ProjectStatus {
	return defaultClassifier.Classify(deployedURL, hasHomepage, description)
}

// Classify returns the project's status. hasHomepage is accepted so callers
// can pass everything they know, but never changes the outcome.
func (c *Classifier) Classify(deployedURL string, hasHomepage bool, description string) model.ProjectStatus {
	if strings.TrimSpace(deployedURL) != "" {
		return model.StatusDeployed
	}
	if description != "" && c.inProgress.MatchString(description) {
		return model.StatusInProgress
	}
	return model.StatusCodeOnly
}
