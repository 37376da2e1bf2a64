package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const fixtureHTML = `
<html><body>
<div class="results">
  <div class="result results_links">
    <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.org%2Flighthouses">History of Lighthouses</a>
    <div class="result__snippet">Lighthouses have guided sailors for millennia.</div>
  </div>
  <div class="result results_links">
    <a class="result__a" href="https://example.com/fresnel">The Fresnel Lens</a>
    <div class="result__snippet">Augustin-Jean Fresnel revolutionized beacon optics.</div>
  </div>
  <div class="result">
    <a class="result__a" href="https://example.net/keepers"></a>
    <div class="result__snippet"></div>
  </div>
</div>
</body></html>`

func TestParseResults(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fixtureHTML))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}

	results := parseResults(doc)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Title != "History of Lighthouses" {
		t.Errorf("title = %q", results[0].Title)
	}
	if results[0].URL != "https://example.org/lighthouses" {
		t.Errorf("redirect not unwrapped: %q", results[0].URL)
	}
	if results[1].URL != "https://example.com/fresnel" {
		t.Errorf("url = %q", results[1].URL)
	}
	if !strings.Contains(results[1].Snippet, "Fresnel") {
		t.Errorf("snippet = %q", results[1].Snippet)
	}
}

func TestSearchAgainstFakeEndpoint(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		gotQuery = r.PostFormValue("q")
		w.Write([]byte(fixtureHTML))
	}))
	defer srv.Close()

	d := &DuckDuckGo{Client: srv.Client(), Endpoint: srv.URL}
	results, err := d.Search(context.Background(), "lighthouse history")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != "lighthouse history" {
		t.Errorf("query sent = %q", gotQuery)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestSearchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	d := &DuckDuckGo{Client: srv.Client(), Endpoint: srv.URL}
	_, err := d.Search(context.Background(), "q")
	if err == nil || !strings.Contains(err.Error(), "status 429") {
		t.Fatalf("err = %v", err)
	}
}
