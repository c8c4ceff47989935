// Package feed parses, validates and rewrites feed documents so that media
// enclosures point back through the relay.
package feed

import (
	"fmt"

	"github.com/Coayer/podcast-proxy/internal/token"
	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

// TransformError reports feed XML missing expected structure. Never retried;
// surfaced to clients as a short generic message only.
type TransformError struct {
	Reason string
	Err    error
}

func (e *TransformError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transform failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transform failed: %s", e.Reason)
}

func (e *TransformError) Unwrap() error { return e.Err }

// Rewriter mints proxy URLs for a single feed request. The base URL is the
// proxy's externally visible address, which varies per request behind
// fronting infrastructure.
type Rewriter struct {
	baseURL string
	feedURL string
}

// NewRewriter builds a Rewriter for a request served at requestURI below
// baseURL.
func NewRewriter(baseURL, requestURI string) *Rewriter {
	return &Rewriter{baseURL: baseURL, feedURL: baseURL + requestURI}
}

func (rw *Rewriter) streamURL(target string) string {
	return rw.baseURL + "/stream/" + token.Encode(target)
}

func parseXML(raw []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, &TransformError{Reason: "malformed XML", Err: err}
	}
	return doc, nil
}

// RewriteEnclosures replaces every item enclosure URL with a proxy stream
// URL, points the channel's self links at the proxy, and strips new-feed-url
// hints that would redirect clients away from the relay. All other elements
// pass through untouched.
func (rw *Rewriter) RewriteEnclosures(raw []byte) ([]byte, error) {
	doc, err := parseXML(raw)
	if err != nil {
		return nil, err
	}

	root := doc.Root()
	if root == nil || root.Tag != "rss" {
		return nil, &TransformError{Reason: "document is not an RSS feed"}
	}
	channel := root.SelectElement("channel")
	if channel == nil {
		return nil, &TransformError{Reason: "RSS feed has no channel"}
	}

	for _, item := range channel.SelectElements("item") {
		enclosure := item.SelectElement("enclosure")
		if enclosure == nil {
			continue
		}
		original := enclosure.SelectAttrValue("url", "")
		if original == "" {
			continue
		}
		enclosure.CreateAttr("url", rw.streamURL(original))
	}

	for _, child := range channel.ChildElements() {
		if child.Tag != "link" {
			continue
		}
		if child.Space == "" {
			child.SetText(rw.feedURL)
		} else if child.SelectAttrValue("rel", "") == "self" {
			child.CreateAttr("href", rw.feedURL)
		}
	}

	// A new-feed-url hint would move clients off the proxy.
	for _, child := range channel.ChildElements() {
		if child.Tag == "new-feed-url" {
			channel.RemoveChild(child)
		}
	}

	return serialize(doc)
}

// serialize renders the document without an XML declaration; the handler
// prepends the exact declaration bytes podcast clients expect.
func serialize(doc *etree.Document) ([]byte, error) {
	for _, child := range doc.Child {
		if pi, ok := child.(*etree.ProcInst); ok && pi.Target == "xml" {
			doc.RemoveChild(pi)
		}
	}
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, &TransformError{Reason: "serialization failed", Err: err}
	}
	return out, nil
}
