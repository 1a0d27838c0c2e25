// File: pkg/artifact/title.go
package artifact

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PageTitle returns the text of the first <title> element in src, with
// whitespace collapsed, or "" when there is none. Elements inside <svg> are
// not titles of the document and are skipped.
func PageTitle(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	depthSVG := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Svg:
				depthSVG++
			case atom.Title:
				if depthSVG > 0 {
					continue
				}
				if z.Next() != html.TextToken {
					return ""
				}
				return strings.Join(strings.Fields(string(z.Text())), " ")
			}
		case html.EndTagToken:
			if tok := z.Token(); tok.DataAtom == atom.Svg && depthSVG > 0 {
				depthSVG--
			}
		}
	}
}
