package cms_test

import (
	"testing"

	"github.com/goliatone/go-cms"
	"github.com/stretchr/testify/assert"
)

func TestSanitizer(t *testing.T) {
	s := cms.NewSanitizer(nil, nil)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "script removed with its content",
			input: "<p>text<script>evil()</script></p>",
			want:  "<p>text</p>",
		},
		{
			name:  "allowed markup kept",
			input: "<h2>Title</h2><p><strong>bold</strong> and <em>em</em></p>",
			want:  "<h2>Title</h2><p><strong>bold</strong> and <em>em</em></p>",
		},
		{
			name:  "disallowed tag stripped text kept",
			input: "<div>Hello work!</div>",
			want:  "Hello work!",
		},
		{
			name:  "event handler dropped",
			input: `<p onclick="evil()">hi</p>`,
			want:  "<p>hi</p>",
		},
		{
			name:  "link attributes filtered",
			input: `<a href="https://example.com" title="t" style="color:red">x</a>`,
			want:  `<a href="https://example.com" title="t">x</a>`,
		},
		{
			name:  "javascript url dropped",
			input: `<a href="javascript:alert(1)">x</a>`,
			want:  "x",
		},
		{
			name:  "img not allowed even with attribute rule",
			input: `<p><img alt="a" src="x.png"></p>`,
			want:  "<p></p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Sanitize(tt.input))
		})
	}
}

func TestSanitizerCustomLists(t *testing.T) {
	s := cms.NewSanitizer([]string{"p"}, map[string][]string{})
	assert.Equal(t, "<p>a b</p>", s.Sanitize("<p>a <strong>b</strong></p>"))
}
