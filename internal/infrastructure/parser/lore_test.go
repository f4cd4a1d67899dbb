package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TuxLetter/internal/domain"
)

const loreListing = `<html><body><table><tbody>
<tr><td><a href="20250301.1-jane@example.org/">[PATCH] mm: fix page leak in reclaim</a></td><td>Jane Dev</td></tr>
<tr><td><a href="20250301.2-joe@example.org/">Re: scheduler regression on 6.14-rc4</a></td><td>Joe</td></tr>
<tr><td><a href="/lkml/archive/">archive</a></td></tr>
</tbody></table></body></html>`

const loreMessage = `<html><body>
<div><b>Subject:</b> [PATCH] mm: fix page leak in reclaim</div>
<div><b>From:</b> Jane Dev &lt;jane@example.org&gt;</div>
<div><b>Date:</b> Sat, 1 Mar 2025 10:00:00 +0000</div>
<pre>
The reclaim path forgets to drop a reference.

diff --git a/mm/vmscan.c b/mm/vmscan.c
</pre>
</body></html>`

func newLoreServer(t *testing.T, listing string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var messages atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/lkml/":
			fmt.Fprint(w, listing)
		case strings.HasPrefix(r.URL.Path, "/lkml/20250301.1"):
			messages.Add(1)
			fmt.Fprint(w, loreMessage)
		case strings.HasPrefix(r.URL.Path, "/lkml/"):
			messages.Add(1)
			fmt.Fprint(w, "<html><body><pre>plain reply</pre></body></html>")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &messages
}

func loreAt(srv *httptest.Server) Site {
	site := LoreSite()
	site.BaseURL = srv.URL
	site.ListingURL = srv.URL + "/lkml/"
	site.Delay = 0
	return site
}

func TestLoreScannerReadsMailHeaders(t *testing.T) {
	t.Parallel()

	srv, messages := newLoreServer(t, loreListing)

	res, err := NewSiteScanner(loreAt(srv), nil, newCache(t), nil).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.EqualValues(t, 2, messages.Load())

	patch := res.Items[0]
	assert.Equal(t, domain.ItemPatch, patch.Type)
	assert.Equal(t, srv.URL+"/lkml/20250301.1-jane@example.org/", patch.Link)
	assert.Equal(t, "[PATCH] mm: fix page leak in reclaim", patch.Title)
	assert.Equal(t, "Jane Dev <jane@example.org>", patch.Author)
	assert.Equal(t, "Sat, 1 Mar 2025 10:00:00 +0000", patch.Date)
	assert.True(t, strings.HasPrefix(patch.Body, "The reclaim path forgets"))

	reply := res.Items[1]
	assert.Equal(t, domain.ItemInbox, reply.Type)
	assert.Equal(t, "Re: scheduler regression on 6.14-rc4", reply.Title)
	assert.Equal(t, domain.Unknown, reply.Author)
	assert.Equal(t, domain.Unknown, reply.Date)
	assert.Equal(t, "plain reply", reply.Body)
}

func TestLoreScannerStopsOnBotChallenge(t *testing.T) {
	t.Parallel()

	srv, messages := newLoreServer(t, `<html><body><h2>Making sure you're not a bot!</h2>`+loreListing+`</body></html>`)
	cache := newCache(t)

	res, err := NewSiteScanner(loreAt(srv), nil, cache, nil).Scan(context.Background())

	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, 1, res.BotChallenges)
	assert.Zero(t, messages.Load())
	assert.Zero(t, cache.Stats().TotalLinks)
}

func TestHeaderValue(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<div><b>From:</b><br>
  Jane Dev
To: list@example.org</div>`)
	assert.Equal(t, "Jane Dev", headerValue(doc, "From:"))
	assert.Equal(t, "", headerValue(doc, "Subject:"))
}

func mustDoc(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}
