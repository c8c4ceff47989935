// internal/feed/youtube.go
package feed

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/beevik/etree"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

const (
	atomNS   = "http://www.w3.org/2005/Atom"
	itunesNS = "http://www.itunes.com/dtds/podcast-1.0.dtd"

	// RFC-822 form podcast clients expect in pubDate.
	rfc822Layout = "Mon, 02 Jan 2006 15:04:05 +0000"
)

// YouTubeRSS synthesizes a podcast RSS document from a YouTube channel's Atom
// feed. Enclosure URLs are proxy tokens over the watch URL; the real audio
// stream is resolved lazily at stream time, not here. Any entry missing a
// required sub-element aborts the whole transform so clients never see
// partial feeds.
func (rw *Rewriter) YouTubeRSS(raw []byte) ([]byte, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, &TransformError{Reason: "malformed channel feed", Err: err}
	}
	if parsed.Title == "" {
		return nil, &TransformError{Reason: "channel feed missing title"}
	}

	channelLink := parsed.Link
	var author string
	if len(parsed.Authors) > 0 {
		author = parsed.Authors[0].Name
	}

	doc := etree.NewDocument()
	rss := doc.CreateElement("rss")
	rss.CreateAttr("version", "2.0")
	rss.CreateAttr("xmlns:atom", atomNS)
	rss.CreateAttr("xmlns:itunes", itunesNS)

	channel := rss.CreateElement("channel")
	channel.CreateElement("title").SetText(parsed.Title)
	channel.CreateElement("description").SetText("Podcast feed for " + parsed.Title)
	channel.CreateElement("link").SetText(channelLink)
	selfLink := channel.CreateElement("atom:link")
	selfLink.CreateAttr("rel", "self")
	selfLink.CreateAttr("type", "application/rss+xml")
	selfLink.CreateAttr("href", channelLink)
	channel.CreateElement("itunes:author").SetText(author)

	// Channel artwork comes from the newest upload.
	if len(parsed.Items) > 0 {
		if thumb, ok := mediaGroupChild(parsed.Items[0], "thumbnail"); ok {
			image := channel.CreateElement("itunes:image")
			image.CreateAttr("href", thumb.Attrs["url"])
		}
	}

	for _, entry := range parsed.Items {
		item, err := rw.synthesizeItem(entry)
		if err != nil {
			return nil, err
		}
		channel.AddChild(item)
	}

	return serialize(doc)
}

func (rw *Rewriter) synthesizeItem(entry *gofeed.Item) (*etree.Element, error) {
	if entry.Title == "" {
		return nil, &TransformError{Reason: "entry missing title"}
	}
	watchURL := entry.Link
	if watchURL == "" {
		return nil, &TransformError{Reason: "entry missing watch URL"}
	}
	if entry.PublishedParsed == nil {
		return nil, &TransformError{Reason: "entry missing publish date"}
	}
	videoID := extensionValue(entry, "yt", "videoId")
	if videoID == "" {
		return nil, &TransformError{Reason: "entry missing video id"}
	}
	description, ok := mediaGroupChild(entry, "description")
	if !ok {
		return nil, &TransformError{Reason: "entry missing media description"}
	}
	thumbnail, ok := mediaGroupChild(entry, "thumbnail")
	if !ok {
		return nil, &TransformError{Reason: "entry missing thumbnail"}
	}

	item := etree.NewElement("item")
	guid := item.CreateElement("guid")
	guid.CreateAttr("isPermaLink", "false")
	guid.SetText(videoGUID(videoID))
	item.CreateElement("title").SetText(entry.Title)
	item.CreateElement("description").SetText(description.Value)
	item.CreateElement("pubDate").SetText(entry.PublishedParsed.UTC().Format(rfc822Layout))
	item.CreateElement("link").SetText(watchURL)
	image := item.CreateElement("itunes:image")
	image.CreateAttr("href", thumbnail.Attrs["url"])

	enclosure := item.CreateElement("enclosure")
	enclosure.CreateAttr("url", rw.streamURL(watchURL))
	enclosure.CreateAttr("length", "0")
	enclosure.CreateAttr("type", "audio/mp4")

	return item, nil
}

// videoGUID derives a stable per-video identifier: the first 32 hex
// characters of SHA-256 over the platform's video id.
func videoGUID(videoID string) string {
	sum := sha256.Sum256([]byte(videoID))
	return hex.EncodeToString(sum[:])[:32]
}

func extensionValue(entry *gofeed.Item, prefix, name string) string {
	values := entry.Extensions[prefix][name]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0].Value)
}

func mediaGroupChild(entry *gofeed.Item, name string) (ext.Extension, bool) {
	groups := entry.Extensions["media"]["group"]
	if len(groups) == 0 {
		return ext.Extension{}, false
	}
	children := groups[0].Children[name]
	if len(children) == 0 {
		return ext.Extension{}, false
	}
	return children[0], true
}
