package crawler

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"

	"github.com/joseph-ayodele/medilink/internal/catalog"
)

// Class names used by the drug pages.
const (
	classTitle      = "DrugHeader__title-content___2ZaPo"
	classPrice      = "DrugPriceBox__price___dj2lv"
	classMeta       = "DrugHeader__meta-value___vqYM0"
	classDesc       = "DrugOverview__content___22ZBX"
	classDetail     = "DrugPriceBox__quantity___2LGBX"
	classSideEffect = "DrugOverview__container___CqA8x"
)

// ParseDrug extracts a catalog record from a drug page. Fields that cannot be
// found are left blank; callers decide whether the record is usable.
func ParseDrug(link string, body []byte) (catalog.Drug, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return catalog.Drug{}, err
	}

	d := catalog.Drug{
		Link:       link,
		Title:      firstText(findClass(doc, classTitle)),
		Price:      firstText(findClass(doc, classPrice)),
		Meta:       firstText(findClass(doc, classMeta)),
		Desc:       firstText(findClass(doc, classDesc)),
		Detail:     firstText(findClass(doc, classDetail)),
		SideEffect: firstText(findClass(doc, classSideEffect)),
	}

	if d.Title == "" {
		d.Title = firstText(findTag(doc, "h1"))
	}
	if d.Desc == "" {
		if n := findTagClass(doc, "div", classDesc); n != nil {
			d.Desc = allText(n)
		}
	}
	if d.SideEffect == "" {
		if n := findTagClass(doc, "div", classSideEffect); n != nil {
			d.SideEffect = allText(n)
		}
	}
	return d, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := find(c, match); f != nil {
			return f
		}
	}
	return nil
}

func findClass(n *html.Node, class string) *html.Node {
	return find(n, func(n *html.Node) bool { return hasClass(n, class) })
}

func findTag(n *html.Node, tag string) *html.Node {
	return find(n, func(n *html.Node) bool { return n.Data == tag })
}

func findTagClass(n *html.Node, tag, class string) *html.Node {
	return find(n, func(n *html.Node) bool { return n.Data == tag && hasClass(n, class) })
}

// firstText returns the element's first non-blank direct text child, trimmed.
func firstText(n *html.Node) string {
	if n == nil {
		return ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			continue
		}
		if t := strings.TrimSpace(c.Data); t != "" {
			return t
		}
	}
	return ""
}

// allText joins every descendant text node, collapsing whitespace.
func allText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
