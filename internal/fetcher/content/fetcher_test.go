package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articlePage = `<html><body>
<div data-test="article-content">
	<p>First paragraph of the story.</p>
	<p>Second paragraph with details.</p>
</div>
</body></html>`

func TestFetchContentExtractsParagraphs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "test-agent"})
	got, err := f.FetchContent(context.Background(), srv.URL+"/news/some-article")
	require.NoError(t, err)
	assert.Equal(t, "First paragraph of the story.\n\nSecond paragraph with details.", got)
}

func TestFetchContentLegacySelectorFallback(t *testing.T) {
	t.Parallel()

	page := `<html><body><div class="WYSIWYG articlePage"><p>Legacy body text.</p></div></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	f := New(Config{})
	got, err := f.FetchContent(context.Background(), srv.URL+"/news/legacy")
	require.NoError(t, err)
	assert.Equal(t, "Legacy body text.", got)
}

func TestFetchContentTruncates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 500)
	page := `<html><body><article><p>` + long + `</p></article></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	f := New(Config{MaxChars: 100})
	got, err := f.FetchContent(context.Background(), srv.URL+"/news/long")
	require.NoError(t, err)
	assert.Len(t, got, 100)
}

func TestFetchContentServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := New(Config{})
	_, err := f.FetchContent(context.Background(), srv.URL+"/news/broken")
	assert.Error(t, err)
}

func TestFetchContentNoBodyFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><nav>menu only</nav></body></html>`))
	}))
	defer srv.Close()

	f := New(Config{})
	got, err := f.FetchContent(context.Background(), srv.URL+"/news/empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}
