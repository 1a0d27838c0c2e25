// File: pkg/artifact/title_test.go
package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageTitle(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"simple", "<html><head><title>Login</title></head></html>", "Login"},
		{"whitespace collapsed", "<title>\n  Sign   in\n</title>", "Sign in"},
		{"entities decoded", "<title>Q&amp;A</title>", "Q&A"},
		{"svg title skipped", "<body><svg><title>icon</title></svg><title>Page</title></body>", "Page"},
		{"empty title", "<title></title>", ""},
		{"no title", "<html><body>hi</body></html>", ""},
		{"empty document", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PageTitle(tt.src))
		})
	}
}
