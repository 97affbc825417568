package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd" xmlns:atom="http://www.w3.org/2005/Atom">
<channel>
  <title>Talk Show</title>
  <atom:link href="https://example.com/feed.xml" rel="self" type="application/rss+xml"/>
  <link>https://example.com</link>
  <description>Weekly talk.</description>
  <language>de</language>
  <lastBuildDate>Wed, 01 May 2024 09:00:00 +0000</lastBuildDate>
  <itunes:author>Jane Host</itunes:author>
  <itunes:owner>
    <itunes:name>Jane Host</itunes:name>
    <itunes:email>jane@example.com</itunes:email>
  </itunes:owner>
  <itunes:image href="https://example.com/cover.jpg"/>
  <itunes:category text="Technology">
    <itunes:category text="Tech News"/>
  </itunes:category>
  <itunes:category text="News"/>
  <item>
    <title>Pilot</title>
    <guid isPermaLink="false">ep-1</guid>
    <pubDate>Tue, 30 Apr 2024 18:30:00 +0200</pubDate>
    <enclosure url="https://example.com/ep1.mp3" length="123456" type="audio/mpeg"/>
    <itunes:duration>01:02:03</itunes:duration>
    <itunes:explicit>yes</itunes:explicit>
    <category>Interview</category>
    <category>Interview</category>
  </item>
  <item>
    <title>No date</title>
    <guid>ep-2</guid>
  </item>
  <item>
    <title>Guid from enclosure</title>
    <pubDate>Mon, 29 Apr 2024 08:00:00 GMT</pubDate>
    <enclosure url="https://example.com/ep3.mp3" length="x" type="audio/mpeg"/>
    <itunes:duration>95</itunes:duration>
  </item>
</channel>
</rss>`

func TestParseRSS(t *testing.T) {
	req, err := ParseRSS(strings.NewReader(sampleFeed))
	require.NoError(t, err)

	ch := req.Channel
	assert.Equal(t, "Talk Show", ch.Title)
	assert.Equal(t, "https://example.com", ch.Link)
	require.NotNil(t, ch.Language)
	assert.Equal(t, "de", *ch.Language)
	require.NotNil(t, ch.OwnerEmail)
	assert.Equal(t, "jane@example.com", *ch.OwnerEmail)
	require.NotNil(t, ch.ImageURL)
	assert.Equal(t, "https://example.com/cover.jpg", *ch.ImageURL)
	require.NotNil(t, ch.LastBuildDate)
	assert.Equal(t, "2024-05-01T09:00:00Z", *ch.LastBuildDate)
	assert.Nil(t, ch.Copyright)
	assert.Equal(t, []string{"Technology", "Tech News", "News"}, req.Categories)

	require.Len(t, req.Episodes, 2)
	pilot := req.Episodes[0]
	assert.Equal(t, "ep-1", pilot.GUID)
	assert.Equal(t, "2024-04-30T18:30:00+02:00", pilot.PubDate)
	require.NotNil(t, pilot.Duration)
	assert.Equal(t, int32(3723), *pilot.Duration)
	assert.True(t, pilot.Explicit)
	require.NotNil(t, pilot.MediaLength)
	assert.Equal(t, int64(123456), *pilot.MediaLength)
	assert.Equal(t, []string{"Interview"}, pilot.EpisodeCategory)

	third := req.Episodes[1]
	assert.Equal(t, "https://example.com/ep3.mp3", third.GUID)
	assert.Nil(t, third.MediaLength)
	require.NotNil(t, third.Duration)
	assert.Equal(t, int32(95), *third.Duration)
	assert.False(t, third.Explicit)
}

func TestParseRSSWithoutChannel(t *testing.T) {
	_, err := ParseRSS(strings.NewReader(`<rss version="2.0"><channel></channel></rss>`))
	assert.ErrorIs(t, err, ErrNoChannel)

	_, err = ParseRSS(strings.NewReader(`not xml`))
	assert.Error(t, err)
}

func TestParseRSSPrefersPlainElements(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd" xmlns:media="http://search.yahoo.com/mrss/">
<channel>
  <itunes:title>Short</itunes:title>
  <title>Full Channel Name</title>
  <media:description>media blurb</media:description>
  <description>Real description.</description>
  <image><url>https://example.com/rss.png</url></image>
  <item>
    <title>Ep 12: Real Title</title>
    <itunes:title>Short</itunes:title>
    <media:description>media blurb</media:description>
    <description>Episode notes.</description>
    <media:category>noise</media:category>
    <category>Interview</category>
    <guid>ep-12</guid>
    <pubDate>Tue, 30 Apr 2024 18:30:00 +0000</pubDate>
  </item>
</channel>
</rss>`
	req, err := ParseRSS(strings.NewReader(feed))
	require.NoError(t, err)

	assert.Equal(t, "Full Channel Name", req.Channel.Title)
	assert.Equal(t, "Real description.", req.Channel.Description)
	require.NotNil(t, req.Channel.ImageURL)
	assert.Equal(t, "https://example.com/rss.png", *req.Channel.ImageURL)

	require.Len(t, req.Episodes, 1)
	ep := req.Episodes[0]
	assert.Equal(t, "Ep 12: Real Title", ep.Title)
	assert.Equal(t, "Episode notes.", ep.Description)
	assert.Equal(t, []string{"Interview"}, ep.EpisodeCategory)
}

func TestParseRSSLegacyCharsets(t *testing.T) {
	tests := map[string]struct {
		label string
		body  string
		want  string
	}{
		"latin1":       {"ISO-8859-1", "Caf\xe9 Radio", "Café Radio"},
		"latin1 alias": {"latin1", "Caf\xe9 Radio", "Café Radio"},
		"latin9":       {"ISO-8859-15", "Preis \xa4", "Preis €"},
		"cp1252":       {"windows-1252", "\x93Quoted\x94", "\u201cQuoted\u201d"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			feed := `<?xml version="1.0" encoding="` + tt.label + `"?>` +
				`<rss version="2.0"><channel><title>` + tt.body + `</title></channel></rss>`
			req, err := ParseRSS(strings.NewReader(feed))
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Channel.Title)
		})
	}

	_, err := ParseRSS(strings.NewReader(`<?xml version="1.0" encoding="koi8-r"?><rss><channel><title>x</title></channel></rss>`))
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	tests := map[string]struct {
		want int32
		ok   bool
	}{
		"95":           {95, true},
		"01:35":        {95, true},
		"01:00:00":     {3600, true},
		"":             {0, false},
		"1h":           {0, false},
		"-5":           {0, false},
		"1:2:3:4":      {0, false},
		"596523:14:08": {0, false},
	}
	for in, tt := range tests {
		got, ok := parseDuration(in)
		assert.Equal(t, tt.ok, ok, in)
		assert.Equal(t, tt.want, got, in)
	}

	_, ok := parseDuration(strings.Repeat("59:", 40) + "59")
	assert.False(t, ok)
}

func TestFetchFeed(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed.xml" {
			http.NotFound(w, r)
			return
		}
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	f := New("confsync-test", 5*time.Second)
	req, err := f.FetchFeed(context.Background(), srv.URL+"/feed.xml")
	require.NoError(t, err)
	assert.Equal(t, "Talk Show", req.Channel.Title)
	assert.Equal(t, "confsync-test", gotUA)

	_, err = f.FetchFeed(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "HTTP 404")
}
