package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDocumentLink_NewSlot(t *testing.T) {
	var coll []Document
	err := AddDocumentLink(&coll, "First Reading", "2021-01-05", "filing",
		DocLink{MediaType: "text/html", URL: "https://example.gov/hb1.html"}, DupeError)
	require.NoError(t, err)

	require.Len(t, coll, 1)
	assert.Equal(t, "First Reading", coll[0].Note)
	require.Len(t, coll[0].Links, 1)
}

func TestAddDocumentLink_SecondRepresentationSameSlot(t *testing.T) {
	var coll []Document
	require.NoError(t, AddDocumentLink(&coll, "First Reading", "2021-01-05", "filing",
		DocLink{MediaType: "text/html", URL: "https://example.gov/hb1.html"}, DupeError))
	require.NoError(t, AddDocumentLink(&coll, "First Reading", "2021-01-05", "filing",
		DocLink{MediaType: "application/pdf", URL: "https://example.gov/hb1.pdf"}, DupeError))

	require.Len(t, coll, 1)
	assert.Len(t, coll[0].Links, 2)
}

func TestAddDocumentLink_DuplicateURLError(t *testing.T) {
	var coll []Document
	require.NoError(t, AddDocumentLink(&coll, "First Reading", "2021-01-05", "filing",
		DocLink{URL: "https://example.gov/hb1.html"}, DupeError))

	// Same URL under a different slot still conflicts.
	err := AddDocumentLink(&coll, "Second Reading", "2021-02-05", "filing",
		DocLink{URL: "https://example.gov/hb1.html"}, DupeError)
	assert.Error(t, err)
	assert.Len(t, coll, 1)
}

func TestAddDocumentLink_DuplicateURLIgnore(t *testing.T) {
	var coll []Document
	require.NoError(t, AddDocumentLink(&coll, "First Reading", "2021-01-05", "filing",
		DocLink{URL: "https://example.gov/hb1.html"}, DupeIgnore))
	require.NoError(t, AddDocumentLink(&coll, "Second Reading", "2021-02-05", "filing",
		DocLink{URL: "https://example.gov/hb1.html"}, DupeIgnore))

	require.Len(t, coll, 1)
	assert.Len(t, coll[0].Links, 1)
}

func TestAddDocumentLink_EmptyURL(t *testing.T) {
	var coll []Document
	err := AddDocumentLink(&coll, "n", "d", "c", DocLink{}, DupeError)
	assert.Error(t, err)
}

func TestAddDocumentLink_CorruptCollectionDetected(t *testing.T) {
	coll := []Document{
		{Note: "n", Date: "d", Classification: "c"},
		{Note: "n", Date: "d", Classification: "c"},
	}
	err := AddDocumentLink(&coll, "n", "d", "c", DocLink{URL: "https://x"}, DupeError)
	assert.Error(t, err)
}
