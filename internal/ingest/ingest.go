// Package ingest loads the record documents written by the source and
// compiled extractors into method records.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/phobologic/methodmap/internal/discover"
	"github.com/phobologic/methodmap/internal/model"
	"github.com/phobologic/methodmap/internal/telemetry"
)

var (
	// ErrOriginMismatch is recorded when a document declares a different
	// origin than its file name implies.
	ErrOriginMismatch = errors.New("declared origin does not match file name")
	// ErrTooLarge is recorded for documents over the size limit.
	ErrTooLarge = errors.New("file exceeds size limit")
)

// Document is one extractor output file.
type Document struct {
	Origin  model.Origin  `json:"origin"`
	File    string        `json:"file"`
	Methods []MethodEntry `json:"methods"`
}

// MethodEntry is one method of a Document.
type MethodEntry struct {
	EnclosingType  string              `json:"enclosingType"`
	SimpleName     string              `json:"simpleName"`
	ParameterTypes []string            `json:"parameterTypes"`
	ReturnType     string              `json:"returnType"`
	Body           string              `json:"body,omitempty"`
	Instructions   []model.Instruction `json:"instructions,omitempty"`
}

// Options configure Load.
type Options struct {
	MaxFileSize int64 // <= 0 means unlimited
	Workers     int   // <= 0 means GOMAXPROCS
	Logger      *slog.Logger
	Metrics     *telemetry.Metrics
}

// Result holds both record collections in discovery order.
type Result struct {
	Source      []model.MethodRecord
	Compiled    []model.MethodRecord
	Files       int // documents loaded without a file-level problem
	Diagnostics []model.Diagnostic
}

type fileResult struct {
	records     []model.MethodRecord
	diagnostics []model.Diagnostic
	ok          bool
}

// Load reads files concurrently. Each file fills its own slot and slots
// are merged in input order once every worker is done. Problems with a
// file or a method are recorded as diagnostics and skip only that file or
// method. Load fails only if ctx is cancelled.
func Load(ctx context.Context, root string, files []discover.FileEntry, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}

	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	slots := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(numWorkers, 1))
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = loadFile(root, f, opts.MaxFileSize)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}

	res := &Result{}
	for i, slot := range slots {
		origin := string(files[i].Origin)
		status := "ok"
		if !slot.ok {
			status = "skipped"
		}
		metrics.FilesRead.WithLabelValues(origin, status).Inc()
		if slot.ok {
			res.Files++
		}

		for _, d := range slot.diagnostics {
			log.Warn("skipping input",
				slog.String("file", d.File),
				slog.String("method", d.Method),
				slog.String("reason", d.Message))
		}
		res.Diagnostics = append(res.Diagnostics, slot.diagnostics...)
		metrics.Diagnostics.Add(float64(len(slot.diagnostics)))

		metrics.Records.WithLabelValues(origin).Add(float64(len(slot.records)))
		if files[i].Origin == model.Source {
			res.Source = append(res.Source, slot.records...)
		} else {
			res.Compiled = append(res.Compiled, slot.records...)
		}
	}
	return res, nil
}

func loadFile(root string, f discover.FileEntry, maxSize int64) fileResult {
	fail := func(err error) fileResult {
		return fileResult{diagnostics: []model.Diagnostic{{File: f.Path, Message: err.Error()}}}
	}

	absPath := filepath.Join(root, f.Path)
	info, err := os.Stat(absPath)
	if err != nil {
		return fail(err)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return fail(fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, info.Size(), maxSize))
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fail(err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fail(fmt.Errorf("decoding document: %w", err))
	}
	if doc.Origin != "" && doc.Origin != f.Origin {
		return fail(fmt.Errorf("%w: declared %q, expected %q", ErrOriginMismatch, doc.Origin, f.Origin))
	}

	declaredIn := doc.File
	if declaredIn == "" {
		declaredIn = filepath.ToSlash(f.Path)
	}

	res := fileResult{ok: true}
	for i, m := range doc.Methods {
		rec, err := toRecord(f.Origin, declaredIn, m)
		if err != nil {
			name := m.SimpleName
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			res.diagnostics = append(res.diagnostics, model.Diagnostic{File: f.Path, Method: name, Message: err.Error()})
			continue
		}
		res.records = append(res.records, rec)
	}
	return res
}

func toRecord(origin model.Origin, file string, m MethodEntry) (model.MethodRecord, error) {
	switch {
	case m.EnclosingType == "":
		return model.MethodRecord{}, errors.New("missing enclosingType")
	case m.SimpleName == "":
		return model.MethodRecord{}, errors.New("missing simpleName")
	case m.ReturnType == "":
		return model.MethodRecord{}, errors.New("missing returnType")
	}
	params := m.ParameterTypes
	if params == nil {
		params = []string{}
	}
	for i, p := range params {
		if p == "" {
			return model.MethodRecord{}, fmt.Errorf("parameter %d has no type", i)
		}
	}

	rec := model.MethodRecord{
		Origin:         origin,
		EnclosingType:  m.EnclosingType,
		SimpleName:     m.SimpleName,
		ParameterTypes: params,
		ReturnType:     m.ReturnType,
		File:           file,
	}
	if origin == model.Source {
		rec.Body = m.Body
	} else {
		rec.Trace = m.Instructions
	}
	return rec, nil
}
