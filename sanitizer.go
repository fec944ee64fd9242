package cms

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultAllowedTags is the tag allow-list for post content
var DefaultAllowedTags = []string{
	"p", "br", "strong", "em", "ul", "ol", "li", "a",
	"h1", "h2", "h3", "h4", "blockquote", "code", "pre",
}

// DefaultAllowedAttributes is the attribute allow-list per tag
var DefaultAllowedAttributes = map[string][]string{
	"a":   {"href", "title"},
	"img": {"alt"},
}

// Sanitizer cleans untrusted HTML. Disallowed tags are dropped but their
// text is kept, script and style are dropped with their content.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer builds a policy from the allow-lists. Attribute rules for
// tags that are not allowed are ignored.
func NewSanitizer(tags []string, attributes map[string][]string) *Sanitizer {
	if tags == nil {
		tags = DefaultAllowedTags
	}
	if attributes == nil {
		attributes = DefaultAllowedAttributes
	}

	allowed := make(map[string]bool, len(tags))
	p := bluemonday.NewPolicy()
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		allowed[tag] = true
		p.AllowElements(tag)
	}

	for tag, attrs := range attributes {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if !allowed[tag] || len(attrs) == 0 {
			continue
		}
		p.AllowAttrs(attrs...).OnElements(tag)
	}

	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("mailto", "http", "https")

	return &Sanitizer{policy: p}
}

// NewSanitizerFromConfig builds a sanitizer from config values
func NewSanitizerFromConfig(cfg SanitizerConfig) *Sanitizer {
	return NewSanitizer(cfg.GetAllowedTags(), cfg.GetAllowedAttributes())
}

// Sanitize returns the cleaned HTML
func (s *Sanitizer) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}
