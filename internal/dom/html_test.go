package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuerySelectorReturnsFirstMatch(t *testing.T) {
	doc, err := ParseString(`<div class="a">one</div><div class="a">two</div>`)
	require.NoError(t, err)

	el, err := doc.QuerySelector(".a")
	require.NoError(t, err)
	require.NotNil(t, el)

	text, err := el.TextContent()
	require.NoError(t, err)
	assert.Equal(t, "one", text)
}

func TestQuerySelectorNoMatch(t *testing.T) {
	doc, err := ParseString(`<p>text</p>`)
	require.NoError(t, err)

	el, err := doc.QuerySelector("article")
	require.NoError(t, err)
	assert.Nil(t, el)
}

func TestBlankDocumentHasNoBody(t *testing.T) {
	doc, err := ParseString("  \n ")
	require.NoError(t, err)

	el, err := doc.QuerySelector("body")
	require.NoError(t, err)
	assert.Nil(t, el)
}

func TestSetInnerHTMLIsVisibleInDocument(t *testing.T) {
	doc, err := ParseString(`<html><body><article><p>old</p></article></body></html>`)
	require.NoError(t, err)

	el, err := doc.QuerySelector("article")
	require.NoError(t, err)
	require.NoError(t, el.SetInnerHTML(`<p>new <ins>text</ins></p>`))

	inner, err := el.InnerHTML()
	require.NoError(t, err)
	assert.Equal(t, `<p>new <ins>text</ins></p>`, inner)

	page, err := doc.HTML()
	require.NoError(t, err)
	assert.Contains(t, page, `<article><p>new <ins>text</ins></p></article>`)
}

func TestQuerySelectorAllDocumentOrder(t *testing.T) {
	doc, err := ParseString(`<main><p>1</p><section><p>2</p></section><p>3</p></main>`)
	require.NoError(t, err)

	main, err := doc.QuerySelector("main")
	require.NoError(t, err)

	ps, err := main.QuerySelectorAll("p")
	require.NoError(t, err)
	require.Len(t, ps, 3)

	var got []string
	for _, p := range ps {
		text, err := p.TextContent()
		require.NoError(t, err)
		got = append(got, text)
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)
}
