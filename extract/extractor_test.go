package extract

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!doctype html>
<html>
<head>
  <title>  Acme   Bakery </title>
  <style>body { color: red }</style>
  <script>var tracking = "should not appear";</script>
</head>
<body>
  <header><a href="/">Home</a></header>
  <nav><a href="/menu">Menu</a><a href="/about#team">About</a></nav>
  <main>
    <h1>Welcome</h1>
    <p>We bake <strong>sourdough</strong> every morning. See the <a href="prices">price list</a>.</p>
    <h2>Opening hours</h2>
    <ul><li>Mon-Fri 7-18</li><li>Sat 8-12</li></ul>
  </main>
  <footer>Copyright Acme <a href="mailto:hi@acme.test">mail</a> <a href="https://other.test/x">partner</a></footer>
</body>
</html>`

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestExtract(t *testing.T) {
	page, err := New().Extract([]byte(samplePage), mustParse(t, "https://acme.test/shop/"))
	require.NoError(t, err)

	assert.Equal(t, "https://acme.test/shop/", page.URL)
	assert.Equal(t, "Acme Bakery", page.Title)

	assert.Contains(t, page.Content, "# Welcome")
	assert.Contains(t, page.Content, "## Opening hours")
	assert.Contains(t, page.Content, "sourdough")
	assert.Contains(t, page.Content, "price list")
	assert.Contains(t, page.Content, "Mon-Fri 7-18")

	assert.NotContains(t, page.Content, "tracking")
	assert.NotContains(t, page.Content, "color: red")
	assert.NotContains(t, page.Content, "Copyright")
	assert.NotContains(t, page.Content, "https://acme.test/shop/prices", "link targets are not content")
}

func TestExtract_Links(t *testing.T) {
	page, err := New().Extract([]byte(samplePage), mustParse(t, "https://acme.test/shop/"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://acme.test/",
		"https://acme.test/menu",
		"https://acme.test/about",
		"https://acme.test/shop/prices",
		"https://other.test/x",
	}, page.Links)
}

func TestExtract_LinksDeduplicated(t *testing.T) {
	html := `<body><a href="/a">1</a><a href="/a#x">2</a><a href="https://acme.test/a">3</a><a href="#top">4</a><a href="javascript:void(0)">5</a></body>`
	page, err := New().Extract([]byte(html), mustParse(t, "https://acme.test/"))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://acme.test/a"}, page.Links)
}

func TestExtract_TitleFallsBackToHeading(t *testing.T) {
	html := `<html><body><h1>Fallback  Title</h1><p>Body text.</p></body></html>`
	page, err := New().Extract([]byte(html), mustParse(t, "https://acme.test/"))
	require.NoError(t, err)
	assert.Equal(t, "Fallback Title", page.Title)
}

func TestExtract_WithoutMainUsesBody(t *testing.T) {
	html := `<html><body><nav>skip me</nav><div><p>First paragraph.</p><p>Second paragraph.</p></div></body></html>`
	page, err := New().Extract([]byte(html), mustParse(t, "https://acme.test/"))
	require.NoError(t, err)
	assert.Contains(t, page.Content, "First paragraph.")
	assert.Contains(t, page.Content, "Second paragraph.")
	assert.NotContains(t, page.Content, "skip me")
}

func TestExtract_Empty(t *testing.T) {
	page, err := New().Extract([]byte(""), mustParse(t, "https://acme.test/"))
	require.NoError(t, err)
	assert.Empty(t, page.Title)
	assert.Empty(t, page.Content)
	assert.Empty(t, page.Links)
}
