package mediawiki

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testClient(serverURL string) *Client {
	return NewClient(5*time.Second, WithEndpoint(serverURL))
}

func TestRevisionMedia(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("action") != "parse" || q.Get("prop") != "images" {
			t.Errorf("unexpected query: %v", q)
		}
		if q.Get("oldid") != "12345" {
			t.Errorf("oldid = %q", q.Get("oldid"))
		}
		fmt.Fprint(w, `{"parse":{"title":"Example","images":["A.jpg","B.webm"]}}`)
	}))
	defer server.Close()

	media, err := testClient(server.URL).RevisionMedia(context.Background(), "en.wikipedia.org", 12345)
	if err != nil {
		t.Fatalf("RevisionMedia returned error: %v", err)
	}
	if len(media) != 2 || media[0] != "A.jpg" || media[1] != "B.webm" {
		t.Fatalf("media = %v", media)
	}
}

func TestRevisionMedia_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":"nosuchrevid","info":"There is no revision with ID 9."}}`)
	}))
	defer server.Close()

	_, err := testClient(server.URL).RevisionMedia(context.Background(), "en.wikipedia.org", 9)
	if err == nil {
		t.Fatal("expected an error for an API error response")
	}
	if !strings.Contains(err.Error(), "nosuchrevid") {
		t.Fatalf("error should carry the API code, got %v", err)
	}
}

func TestMediaTypes_FollowsContinuation(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		q := r.URL.Query()
		if !strings.HasPrefix(q.Get("titles"), "File:") {
			t.Errorf("titles must be File-prefixed, got %q", q.Get("titles"))
		}

		switch calls {
		case 1:
			if q.Get("iistart") != "" {
				t.Errorf("first call must not carry iistart, got %q", q.Get("iistart"))
			}
			fmt.Fprint(w, `{
				"query":{"pages":[
					{"title":"File:A.jpg","imageinfo":[{"mediatype":"BITMAP"}]},
					{"title":"File:Broken.jpg"}
				]},
				"continue":{"iistart":"2024-01-01T00:00:00Z"}
			}`)
		default:
			if q.Get("iistart") != "2024-01-01T00:00:00Z" {
				t.Errorf("continuation token not passed back, got %q", q.Get("iistart"))
			}
			fmt.Fprint(w, `{
				"query":{"pages":[
					{"title":"File:Clip.webm","imageinfo":[{"mediatype":"VIDEO"}]}
				]}
			}`)
		}
	}))
	defer server.Close()

	types, err := testClient(server.URL).MediaTypes(context.Background(),
		"commons.wikimedia.org", []string{"A.jpg", "Broken.jpg", "Clip.webm"})
	if err != nil {
		t.Fatalf("MediaTypes returned error: %v", err)
	}

	if calls != 2 {
		t.Fatalf("expected 2 API calls, got %d", calls)
	}
	if !types["BITMAP"] || !types["VIDEO"] {
		t.Fatalf("types = %v, want BITMAP and VIDEO", types)
	}
	if len(types) != 2 {
		t.Fatalf("broken links and hidden files must not add types, got %v", types)
	}
}

func TestMediaTypes_BatchesLargeSets(t *testing.T) {
	var batches []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		titles := strings.Split(r.URL.Query().Get("titles"), "|")
		batches = append(batches, len(titles))
		fmt.Fprint(w, `{"query":{"pages":[]}}`)
	}))
	defer server.Close()

	filenames := make([]string, 120)
	for i := range filenames {
		filenames[i] = fmt.Sprintf("File%d.jpg", i)
	}

	if _, err := testClient(server.URL).MediaTypes(context.Background(), "commons.wikimedia.org", filenames); err != nil {
		t.Fatalf("MediaTypes returned error: %v", err)
	}

	if len(batches) != 3 {
		t.Fatalf("expected 3 batches for 120 titles, got %d", len(batches))
	}
	for i, size := range batches {
		want := imageInfoBatchSize
		if i == len(batches)-1 {
			want = 20
		}
		if size != want {
			t.Errorf("batch %d has %d titles, want %d", i, size, want)
		}
	}
}
