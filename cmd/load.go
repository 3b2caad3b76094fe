package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/opencivicdata/civic-import/internal/model"
)

// importPlan is the on-disk description of one import run.
type importPlan struct {
	Jurisdiction   string   `yaml:"jurisdiction"`
	DataDir        string   `yaml:"datadir"`
	DuplicateLinks string   `yaml:"duplicate_links"`
	Types          []string `yaml:"types"`
	Skip           []string `yaml:"skip"`
}

func loadPlan(path string) (*importPlan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read plan file")
	}
	var p importPlan
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, eris.Wrapf(err, "parse plan file %s", path)
	}
	return &p, nil
}

// loadBatches decodes every *.json file under dir into typed records grouped
// by kind. Files are decoded concurrently; each file holds either one record
// object or an array of them.
func loadBatches(ctx context.Context, dir string, workers int, policy model.DupePolicy) (map[string][]model.Record, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "walk data dir %s", dir)
	}

	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	batches := make(map[string][]model.Record)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			recs, err := decodeFile(path, policy)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, rec := range recs {
				batches[rec.Kind()] = append(batches[rec.Kind()], rec)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Decode order depends on goroutine scheduling; batch order should not.
	for _, recs := range batches {
		sort.Slice(recs, func(i, j int) bool {
			return recs[i].TransientID() < recs[j].TransientID()
		})
	}
	return batches, nil
}

func decodeFile(path string, policy model.DupePolicy) ([]model.Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}

	var msgs []json.RawMessage
	if trimmed := bytes.TrimLeft(raw, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(raw, &msgs); err != nil {
			return nil, eris.Wrapf(err, "decode %s", path)
		}
	} else {
		msgs = []json.RawMessage{raw}
	}

	recs := make([]model.Record, 0, len(msgs))
	for _, msg := range msgs {
		kind, err := model.PeekKind(msg)
		if err != nil {
			return nil, eris.Wrapf(err, "decode %s", path)
		}
		rec, err := model.Decode(kind, msg)
		if err != nil {
			return nil, eris.Wrapf(err, "decode %s", path)
		}
		if err := checkLinks(rec, policy); err != nil {
			return nil, eris.Wrapf(err, "decode %s", path)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// checkLinks replays a record's document collections through the link helper
// so scraped input honors the duplicate-URL policy too.
func checkLinks(rec model.Record, policy model.DupePolicy) error {
	switch r := rec.(type) {
	case *model.Bill:
		var err error
		r.Versions, err = replayLinks(r.Versions, policy)
		if err != nil {
			return err
		}
		r.Documents, err = replayLinks(r.Documents, policy)
		return err
	case *model.Event:
		var err error
		r.Media, err = replayLinks(r.Media, policy)
		if err != nil {
			return err
		}
		r.Documents, err = replayLinks(r.Documents, policy)
		return err
	case *model.Disclosure:
		var err error
		r.Documents, err = replayLinks(r.Documents, policy)
		return err
	}
	return nil
}

func replayLinks(coll []model.Document, policy model.DupePolicy) ([]model.Document, error) {
	var out []model.Document
	for _, d := range coll {
		for _, l := range d.Links {
			if err := model.AddDocumentLink(&out, d.Note, d.Date, d.Classification, l, policy); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// excludedKinds lists the kinds a plan's allow and skip lists keep out of the
// run entirely, so the runner suppresses their merge and cleanup passes.
func excludedKinds(types, skip []string) []string {
	allow := make(map[string]bool, len(types))
	for _, t := range types {
		allow[t] = true
	}
	skipped := make(map[string]bool, len(skip))
	for _, t := range skip {
		skipped[t] = true
	}
	var out []string
	for _, kind := range model.Kinds() {
		if (len(allow) > 0 && !allow[kind]) || skipped[kind] {
			out = append(out, kind)
		}
	}
	return out
}

// filterBatches applies a plan's allow and skip lists.
func filterBatches(batches map[string][]model.Record, types, skip []string) map[string][]model.Record {
	allow := make(map[string]bool, len(types))
	for _, t := range types {
		allow[t] = true
	}
	skipped := make(map[string]bool, len(skip))
	for _, t := range skip {
		skipped[t] = true
	}

	out := make(map[string][]model.Record, len(batches))
	for kind, recs := range batches {
		if len(allow) > 0 && !allow[kind] {
			continue
		}
		if skipped[kind] {
			continue
		}
		out[kind] = recs
	}
	return out
}
