package fetcher

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultURLTemplate = "https://{date}.currency-api.pages.dev/{version}/currencies/{base}.json"
	DefaultAPIVersion  = "v1"
)

// Locator builds the resource URL for a (day, base) pair.
type Locator struct {
	template string
	version  string
}

func NewLocator(template, version string) (Locator, error) {
	if template == "" {
		template = DefaultURLTemplate
	}
	if version == "" {
		version = DefaultAPIVersion
	}
	if !strings.Contains(template, "{base}") {
		return Locator{}, fmt.Errorf("url template %q has no {base} placeholder", template)
	}
	return Locator{template: template, version: version}, nil
}

func (l Locator) URL(day time.Time, base string) string {
	return strings.NewReplacer(
		"{date}", day.Format("2006-01-02"),
		"{version}", l.version,
		"{base}", strings.ToLower(base),
	).Replace(l.template)
}
