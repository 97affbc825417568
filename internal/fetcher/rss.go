package fetcher

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/voyagen/confsync/internal/models"
)

// ErrNoChannel is returned for documents without an RSS channel title.
var ErrNoChannel = errors.New("feed has no channel")

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

// rssText keeps the element name so atom:link, itunes:title and friends can
// be told apart from the plain RSS element of the same local name. A tag
// without a namespace matches every namespace.
type rssText struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type rssChannel struct {
	Title         []rssText        `xml:"title"`
	Links         []rssText        `xml:"link"`
	Description   []rssText        `xml:"description"`
	Copyright     string           `xml:"copyright"`
	Language      string           `xml:"language"`
	LastBuildDate string           `xml:"lastBuildDate"`
	PubDate       string           `xml:"pubDate"`
	Author        string           `xml:"http://www.itunes.com/dtds/podcast-1.0.dtd author"`
	Owner         itunesOwner      `xml:"http://www.itunes.com/dtds/podcast-1.0.dtd owner"`
	ItunesImage   itunesImage      `xml:"http://www.itunes.com/dtds/podcast-1.0.dtd image"`
	Images        []rssImage       `xml:"image"`
	Categories    []itunesCategory `xml:"http://www.itunes.com/dtds/podcast-1.0.dtd category"`
	Items         []rssItem        `xml:"item"`
}

type itunesOwner struct {
	Name  string `xml:"http://www.itunes.com/dtds/podcast-1.0.dtd name"`
	Email string `xml:"http://www.itunes.com/dtds/podcast-1.0.dtd email"`
}

type itunesImage struct {
	Href string `xml:"href,attr"`
}

type rssImage struct {
	XMLName xml.Name
	URL     string `xml:"url"`
}

type itunesCategory struct {
	Text string           `xml:"text,attr"`
	Subs []itunesCategory `xml:"http://www.itunes.com/dtds/podcast-1.0.dtd category"`
}

type rssItem struct {
	Title       []rssText     `xml:"title"`
	Description []rssText     `xml:"description"`
	Links       []rssText     `xml:"link"`
	GUID        string        `xml:"guid"`
	PubDate     string        `xml:"pubDate"`
	Enclosure   *rssEnclosure `xml:"enclosure"`
	Duration    string        `xml:"http://www.itunes.com/dtds/podcast-1.0.dtd duration"`
	Explicit    string        `xml:"http://www.itunes.com/dtds/podcast-1.0.dtd explicit"`
	Image       itunesImage   `xml:"http://www.itunes.com/dtds/podcast-1.0.dtd image"`
	Categories  []rssText     `xml:"category"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length string `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// Layouts seen in the pubDate of real feeds, RFC 1123 first.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC3339,
}

// ParseRSS converts an RSS 2.0 podcast feed. Items without a usable date or
// identifier are dropped; every other item becomes an episode.
func ParseRSS(r io.Reader) (*models.ImportRequest, error) {
	var doc rssDoc
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode rss: %w", err)
	}
	ch := doc.Channel
	title := plainText(ch.Title)
	if title == "" {
		return nil, ErrNoChannel
	}

	req := &models.ImportRequest{
		Channel: models.ChannelInput{
			Title:       title,
			Link:        plainText(ch.Links),
			Description: plainText(ch.Description),
			Copyright:   optional(ch.Copyright),
			Language:    optional(ch.Language),
			Author:      optional(ch.Author),
			OwnerEmail:  optional(ch.Owner.Email),
			OwnerName:   optional(ch.Owner.Name),
			ImageURL:    optional(firstNonEmpty(ch.ItunesImage.Href, plainImage(ch.Images))),
		},
		Categories: flattenCategories(ch.Categories),
		Episodes:   make([]models.EpisodeInput, 0, len(ch.Items)),
	}
	if t, ok := parseDate(firstNonEmpty(ch.LastBuildDate, ch.PubDate)); ok {
		s := t.Format(time.RFC3339)
		req.Channel.LastBuildDate = &s
	}

	for _, item := range ch.Items {
		ep, ok := convertItem(item)
		if ok {
			req.Episodes = append(req.Episodes, ep)
		}
	}
	return req, nil
}

func convertItem(item rssItem) (models.EpisodeInput, bool) {
	pub, ok := parseDate(item.PubDate)
	if !ok {
		return models.EpisodeInput{}, false
	}
	ep := models.EpisodeInput{
		Title:       plainText(item.Title),
		Description: plainText(item.Description),
		Link:        plainText(item.Links),
		PubDate:     pub.Format(time.RFC3339),
		Explicit:    parseExplicit(item.Explicit),
		ImageURL:    optional(item.Image.Href),
	}
	if item.Enclosure != nil {
		ep.MediaURL = optional(item.Enclosure.URL)
		ep.MediaType = optional(item.Enclosure.Type)
		if n, err := strconv.ParseInt(strings.TrimSpace(item.Enclosure.Length), 10, 64); err == nil && n >= 0 {
			ep.MediaLength = &n
		}
	}
	ep.GUID = firstNonEmpty(item.GUID, derefOr(ep.MediaURL), ep.Link)
	if ep.GUID == "" {
		return models.EpisodeInput{}, false
	}
	if ep.Title == "" {
		ep.Title = ep.GUID
	}
	if d, ok := parseDuration(item.Duration); ok {
		ep.Duration = &d
	}
	seen := map[string]bool{}
	for _, c := range item.Categories {
		name := strings.TrimSpace(c.Value)
		if c.XMLName.Space == "" && name != "" && !seen[name] {
			seen[name] = true
			ep.EpisodeCategory = append(ep.EpisodeCategory, name)
		}
	}
	return ep, true
}

// flattenCategories lists itunes categories depth first, without
// duplicates.
func flattenCategories(cats []itunesCategory) []string {
	var out []string
	seen := map[string]bool{}
	var walk func([]itunesCategory)
	walk = func(cs []itunesCategory) {
		for _, c := range cs {
			name := strings.TrimSpace(c.Text)
			if name != "" && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
			walk(c.Subs)
		}
	}
	walk(cats)
	return out
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// charsetReader decodes the legacy single-byte charsets podcast hosts still
// emit. Anything else is refused rather than guessed.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-8", "utf8", "us-ascii", "ascii":
		return input, nil
	case "iso-8859-1", "iso_8859-1", "latin1", "latin-1", "l1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "iso-8859-15", "iso_8859-15", "latin-9", "latin9":
		return charmap.ISO8859_15.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	}
	return nil, fmt.Errorf("unsupported charset %q", label)
}

// parseDuration accepts seconds, MM:SS or HH:MM:SS.
func parseDuration(s string) (int32, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}
	var total int64
	for _, part := range parts {
		n, err := strconv.ParseInt(part, 10, 32)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	if total > 1<<31-1 {
		return 0, false
	}
	return int32(total), true
}

func parseExplicit(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "explicit":
		return true
	}
	return false
}

// plainText returns the first non-empty element outside any namespace.
func plainText(texts []rssText) string {
	for _, t := range texts {
		if t.XMLName.Space == "" && strings.TrimSpace(t.Value) != "" {
			return strings.TrimSpace(t.Value)
		}
	}
	return ""
}

func plainImage(images []rssImage) string {
	for _, img := range images {
		if img.XMLName.Space == "" && strings.TrimSpace(img.URL) != "" {
			return img.URL
		}
	}
	return ""
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
