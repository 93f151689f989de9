package fetch

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// skipElements are elements whose text is never visible on the page.
var skipElements = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"iframe":   {},
	"meta":     {},
	"head":     {},
}

// ExtractHTML reduces an HTML document to its visible text and collects
// same-host links. Text nodes are trimmed, empty ones dropped, and the
// remainder joined by blank lines. Links keep their query but lose
// their fragment; links to other hosts are ignored.
func ExtractHTML(body []byte, base *url.URL) (string, []string) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		// The tokenizer is lenient; a hard parse failure means the body
		// is not HTML at all.
		return strings.TrimSpace(string(body)), nil
	}

	var lines []string
	var links []string
	seen := make(map[string]struct{})

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := skipElements[n.Data]; skip {
				return
			}
			if n.Data == "a" {
				if link, ok := sameHostLink(n, base); ok {
					if _, dup := seen[link]; !dup {
						seen[link] = struct{}{}
						links = append(links, link)
					}
				}
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				lines = append(lines, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return strings.Join(lines, "\n\n"), links
}

// sameHostLink resolves an anchor's href against base and returns it if
// it points at the same host.
func sameHostLink(n *html.Node, base *url.URL) (string, bool) {
	var href string
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			href = strings.TrimSpace(attr.Val)
			break
		}
	}
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	u, err := base.Parse(href)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host != base.Host {
		return "", false
	}

	u.Fragment = ""
	return u.String(), true
}
