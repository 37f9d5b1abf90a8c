package htmlproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_TitleTextLinks(t *testing.T) {
	body := `<html><head><title> My Page </title></head>
<body>
<script>var x = 1;</script>
<p>Hello <b>world</b></p>
<a href="/about">About</a>
<a href="https://other.example/x">Other</a>
<a href="/about">Dup</a>
<a href="#frag">Skip</a>
</body></html>`

	doc, err := Parse(body, "https://example.com/page")
	require.NoError(t, err)
	assert.Equal(t, "My Page", doc.Title)
	assert.Contains(t, doc.Text, "Hello")
	assert.NotContains(t, doc.Text, "var x")
	assert.ElementsMatch(t, []string{"https://example.com/about", "https://other.example/x"}, doc.Links)
	assert.False(t, doc.MetaRobots.NoIndex)
	assert.False(t, doc.MetaRobots.NoFollow)
}

func TestParse_MissingTitleFallsBackToH1(t *testing.T) {
	body := `<html><head></head>
<body><h1> </h1><h1>  Real Heading  </h1><p>body</p></body></html>`

	doc, err := Parse(body, "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "Real Heading", doc.Title)
}

func TestParse_MetaRobotsNoIndexNoFollow(t *testing.T) {
	body := `<html><head><title>T</title>
<meta name="robots" content="noindex, nofollow">
</head><body><a href="/x">x</a></body></html>`

	doc, err := Parse(body, "https://example.com/")
	require.NoError(t, err)
	assert.True(t, doc.MetaRobots.NoIndex)
	assert.True(t, doc.MetaRobots.NoFollow)
	assert.Empty(t, doc.Links)
}

func TestParse_AnchorNofollowToken(t *testing.T) {
	body := `<html><body>
<a href="/a" rel="nofollow">a</a>
<a href="/b" rel="nofollowme">b</a>
<a href="/c" rel="external nofollow">c</a>
</body></html>`

	doc, err := Parse(body, "https://example.com/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"https://example.com/b"}, doc.Links)
}

func TestParseRobotsDirective(t *testing.T) {
	assert.Equal(t, MetaRobots{NoIndex: true}, ParseRobotsDirective("noindex"))
	assert.Equal(t, MetaRobots{NoFollow: true}, ParseRobotsDirective("nofollow"))
	assert.Equal(t, MetaRobots{NoIndex: true, NoFollow: true}, ParseRobotsDirective("none"))
	assert.Equal(t, MetaRobots{NoIndex: true, NoFollow: true}, ParseRobotsDirective("noindex, nofollow"))
	assert.Equal(t, MetaRobots{}, ParseRobotsDirective("all"))
}

func TestMetaRobots_Merge(t *testing.T) {
	a := MetaRobots{NoIndex: true}
	b := MetaRobots{NoFollow: true}
	assert.Equal(t, MetaRobots{NoIndex: true, NoFollow: true}, a.Merge(b))
}
