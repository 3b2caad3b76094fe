package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opencivicdata/civic-import/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPlan(t *testing.T) {
	path := writeFile(t, t.TempDir(), "plan.yaml", `
jurisdiction: ocd-jurisdiction/country:us/state:nc/government
datadir: ./scraped
duplicate_links: ignore
types: [bill, vote_event]
skip: [event]
`)

	p, err := loadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, "ocd-jurisdiction/country:us/state:nc/government", p.Jurisdiction)
	assert.Equal(t, "./scraped", p.DataDir)
	assert.Equal(t, "ignore", p.DuplicateLinks)
	assert.Equal(t, []string{"bill", "vote_event"}, p.Types)
	assert.Equal(t, []string{"event"}, p.Skip)
}

func TestLoadPlan_UndeclaredField(t *testing.T) {
	path := writeFile(t, t.TempDir(), "plan.yaml", "jurisdiction: x\nworkers: 4\n")

	_, err := loadPlan(path)
	require.Error(t, err)
}

func TestLoadPlan_Missing(t *testing.T) {
	_, err := loadPlan(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestDecodeFile_SingleObject(t *testing.T) {
	path := writeFile(t, t.TempDir(), "person.json",
		`{"_id":"p1","_type":"person","name":"Rocky Balboa"}`)

	recs, err := decodeFile(path, model.DupeError)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.KindPerson, recs[0].Kind())
	assert.Equal(t, "p1", recs[0].TransientID())
}

func TestDecodeFile_Array(t *testing.T) {
	path := writeFile(t, t.TempDir(), "orgs.json", `[
		{"_id":"o1","_type":"organization","name":"House","classification":"lower"},
		{"_id":"o2","_type":"organization","name":"Senate","classification":"upper"}
	]`)

	recs, err := decodeFile(path, model.DupeError)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestDecodeFile_BadRecord(t *testing.T) {
	dir := t.TempDir()

	// No _type.
	path := writeFile(t, dir, "a.json", `{"_id":"p1","name":"X"}`)
	_, err := decodeFile(path, model.DupeError)
	require.Error(t, err)

	// Undeclared field.
	path = writeFile(t, dir, "b.json", `{"_id":"p1","_type":"person","name":"X","surname":"Y"}`)
	_, err = decodeFile(path, model.DupeError)
	require.Error(t, err)
}

func TestDecodeFile_DuplicateLinkPolicy(t *testing.T) {
	content := `{"_id":"b1","_type":"bill","identifier":"HB 1","legislative_session":"2021",
		"title":"T","versions":[
			{"note":"Introduced","links":[{"url":"https://example.com/hb1.pdf"}]},
			{"note":"Engrossed","links":[{"url":"https://example.com/hb1.pdf"}]}
		]}`
	path := writeFile(t, t.TempDir(), "bill.json", content)

	_, err := decodeFile(path, model.DupeError)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate document link")

	recs, err := decodeFile(path, model.DupeIgnore)
	require.NoError(t, err)
	b := recs[0].(*model.Bill)
	require.Len(t, b.Versions, 1)
	assert.Len(t, b.Versions[0].Links, 1)
}

func TestLoadBatches(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "people.json", `[
		{"_id":"p2","_type":"person","name":"B"},
		{"_id":"p1","_type":"person","name":"A"}
	]`)
	writeFile(t, dir, "org.json", `{"_id":"o1","_type":"organization","name":"House","classification":"lower"}`)
	writeFile(t, dir, "notes.txt", "not json, not loaded")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	writeFile(t, filepath.Join(dir, "sub"), "more.json", `{"_id":"p3","_type":"person","name":"C"}`)

	batches, err := loadBatches(context.Background(), dir, 4, model.DupeError)
	require.NoError(t, err)

	require.Len(t, batches[model.KindPerson], 3)
	require.Len(t, batches[model.KindOrganization], 1)
	// Batches are ordered by transient id regardless of decode order.
	assert.Equal(t, "p1", batches[model.KindPerson][0].TransientID())
	assert.Equal(t, "p2", batches[model.KindPerson][1].TransientID())
	assert.Equal(t, "p3", batches[model.KindPerson][2].TransientID())
}

func TestLoadBatches_BadFileFailsLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.json", `{"_id":"p1","_type":"person","name":"A"}`)
	writeFile(t, dir, "bad.json", `{"_id":"p2"}`)

	_, err := loadBatches(context.Background(), dir, 4, model.DupeError)
	require.Error(t, err)
}

func TestFilterBatches(t *testing.T) {
	batches := map[string][]model.Record{
		model.KindBill:      nil,
		model.KindVoteEvent: nil,
		model.KindEvent:     nil,
	}

	out := filterBatches(batches, []string{model.KindBill, model.KindVoteEvent}, nil)
	assert.Contains(t, out, model.KindBill)
	assert.Contains(t, out, model.KindVoteEvent)
	assert.NotContains(t, out, model.KindEvent)

	out = filterBatches(batches, nil, []string{model.KindEvent})
	assert.Contains(t, out, model.KindBill)
	assert.NotContains(t, out, model.KindEvent)

	// Skip wins over allow.
	out = filterBatches(batches, []string{model.KindBill}, []string{model.KindBill})
	assert.Empty(t, out)
}

func TestExcludedKinds(t *testing.T) {
	assert.Empty(t, excludedKinds(nil, nil))

	excluded := excludedKinds(nil, []string{model.KindVoteEvent})
	assert.Equal(t, []string{model.KindVoteEvent}, excluded)

	// An allow list excludes everything outside it.
	excluded = excludedKinds([]string{model.KindBill}, nil)
	assert.NotContains(t, excluded, model.KindBill)
	assert.Contains(t, excluded, model.KindVoteEvent)
	assert.Len(t, excluded, len(model.Kinds())-1)
}
