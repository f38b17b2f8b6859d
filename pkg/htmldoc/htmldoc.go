// Package htmldoc summarises an HTML document before it is rendered.
package htmldoc

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Summary lists what a document pulls in and will make the renderer wait for.
type Summary struct {
	Title       string
	Images      []string
	Stylesheets []string
	Scripts     int
	Elements    int
}

// Inspect parses rawHTML and collects its title, image sources, stylesheet
// links and script count. The HTML parser accepts any input, so Inspect
// never fails; garbage yields an empty Summary.
func Inspect(rawHTML string) Summary {
	var s Summary

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return s
	}

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			s.Elements++
			switch n.Data {
			case "title":
				if s.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					s.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "img":
				if src := getAttr(n, "src"); src != "" {
					s.Images = append(s.Images, src)
				}
			case "link":
				if isStylesheet(n) {
					if href := getAttr(n, "href"); href != "" {
						s.Stylesheets = append(s.Stylesheets, href)
					}
				}
			case "script":
				s.Scripts++
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return s
}

// Remote returns the image and stylesheet URLs fetched over the network.
func (s Summary) Remote() []string {
	var out []string
	for _, ref := range append(append([]string(nil), s.Images...), s.Stylesheets...) {
		lower := strings.ToLower(ref)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "//") {
			out = append(out, ref)
		}
	}
	return out
}

func (s Summary) String() string {
	return fmt.Sprintf("title=%q elements=%d images=%d stylesheets=%d scripts=%d",
		s.Title, s.Elements, len(s.Images), len(s.Stylesheets), s.Scripts)
}

func isStylesheet(n *html.Node) bool {
	for _, rel := range strings.Fields(strings.ToLower(getAttr(n, "rel"))) {
		if rel == "stylesheet" {
			return true
		}
	}
	return false
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return strings.TrimSpace(attr.Val)
		}
	}
	return ""
}
