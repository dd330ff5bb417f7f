package htmlutil

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// GetText returns the concatenated text of every text node under node, the equivalent
// of innerText without any whitespace handling.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	// script and style bodies are never user-visible text
	if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// NormalizeText collapses every run of whitespace into a single space and trims the ends.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// NormalizedText is NormalizeText(GetText(node)).
func NormalizedText(node *html.Node) string {
	return NormalizeText(GetText(node))
}

// HasElementChildren reports whether node has at least one element child.
func HasElementChildren(node *html.Node) bool {
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
	}
	return false
}

// Next returns the node after node in document order: its first child if it has one,
// otherwise the next sibling of the nearest ancestor (or itself) that has one.
func Next(node *html.Node) *html.Node {
	if node.FirstChild != nil {
		return node.FirstChild
	}
	for current := node; current != nil; current = current.Parent {
		if current.NextSibling != nil {
			return current.NextSibling
		}
	}
	return nil
}

// Walk visits every node under root in document order, stopping early when visit returns false.
func Walk(root *html.Node, visit func(*html.Node) bool) {
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if !visit(n) {
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(root)
}
