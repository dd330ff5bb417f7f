package hdy

import (
	"strings"

	"hdymonitor/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var headingDenyList = []string{
	"产品与服务",
	"支持与服务",
	"了解我们",
	"区域",
	"返回",
	"最新通知",
	"热销推荐",
}

var valueNoise = []string{"-", "+", "image", "选择版本"}

// ParseConfigPage reports whether doc is a populated configuration page (it shows both an
// operating system and a CPU label) and extracts what it can from it.
func ParseConfigPage(doc *goquery.Document) (ConfigDetails, bool) {
	if len(doc.Nodes) == 0 {
		return ConfigDetails{}, false
	}
	root := doc.Nodes[0]

	anchor := findLabel(root, LabelOS)
	if anchor == nil || findLabel(root, "CPU") == nil {
		return ConfigDetails{}, false
	}

	details := ConfigDetails{
		Name:   productName(doc, root, anchor),
		Fields: map[string]string{},
	}
	for _, label := range ConfigLabels {
		node := findLabel(root, label)
		if node == nil {
			continue
		}
		value := nextMeaningfulText(node)
		if value != "" {
			details.Fields[label] = value
		}
	}
	return details, true
}

// findLabel finds the element displaying label, optionally followed by an ascii or
// fullwidth colon. Leaf elements win over elements that only contain the label.
func findLabel(root *html.Node, label string) *html.Node {
	for _, variant := range []string{label, label + ":", label + "："} {
		if node := findExact(root, variant, true); node != nil {
			return node
		}
		if node := findExact(root, variant, false); node != nil {
			return node
		}
	}
	return nil
}

func findExact(root *html.Node, text string, leafOnly bool) *html.Node {
	var found *html.Node
	htmlutil.Walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		if leafOnly && htmlutil.HasElementChildren(n) {
			return true
		}
		if htmlutil.NormalizedText(n) == text {
			found = n
			return false
		}
		return true
	})
	return found
}

func isNoise(text string) bool {
	for _, noise := range valueNoise {
		if strings.EqualFold(noise, text) {
			return true
		}
	}
	return false
}

// nextMeaningfulText returns the first non-empty text after label in document order that
// is not noise and does not just repeat the label.
func nextMeaningfulText(label *html.Node) string {
	labelText := htmlutil.NormalizedText(label)
	for next := htmlutil.Next(label); next != nil; next = htmlutil.Next(next) {
		if next.Type != html.TextNode && next.Type != html.ElementNode {
			continue
		}
		text := htmlutil.NormalizedText(next)
		if text == "" || isNoise(text) || strings.EqualFold(text, labelText) {
			continue
		}
		return text
	}
	return ""
}

func containsFold(s string, parts ...string) bool {
	s = strings.ToLower(s)
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}

func productName(doc *goquery.Document, root *html.Node, anchor *html.Node) string {
	for _, attr := range []string{"class", "id"} {
		if name := nameByAttr(doc, attr); name != "" {
			return name
		}
	}
	return headingBefore(root, anchor)
}

// nameByAttr returns the text of the first element whose attr mentions both "product"
// and "name" in any case.
func nameByAttr(doc *goquery.Document, attr string) string {
	var found *goquery.Selection
	doc.Find("[" + attr + "]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if containsFold(s.AttrOr(attr, ""), "product", "name") {
			found = s
			return false
		}
		return true
	})
	if found == nil {
		return ""
	}
	return htmlutil.NormalizeText(found.Text())
}

// headingBefore returns the closest h1-h4 that starts before anchor and is neither empty
// nor navigation chrome.
func headingBefore(root *html.Node, anchor *html.Node) string {
	var headings []*html.Node
	htmlutil.Walk(root, func(n *html.Node) bool {
		if n == anchor {
			return false
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h1", "h2", "h3", "h4":
				headings = append(headings, n)
			}
		}
		return true
	})

	for i := len(headings) - 1; i >= 0; i-- {
		text := htmlutil.NormalizedText(headings[i])
		if text == "" || denied(text) {
			continue
		}
		return text
	}
	return ""
}

func denied(heading string) bool {
	for _, blocked := range headingDenyList {
		if strings.EqualFold(blocked, heading) {
			return true
		}
	}
	return false
}
