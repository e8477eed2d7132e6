// Package reconcile runs the reconciliation pipeline over the two record
// collections of one snapshot: duplicate detection, the source/compiled
// join, the call graph and test pairing.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/phobologic/methodmap/internal/callgraph"
	"github.com/phobologic/methodmap/internal/join"
	"github.com/phobologic/methodmap/internal/lang"
	"github.com/phobologic/methodmap/internal/model"
	"github.com/phobologic/methodmap/internal/pairing"
	"github.com/phobologic/methodmap/internal/ranking"
	"github.com/phobologic/methodmap/internal/resolve"
	"github.com/phobologic/methodmap/internal/telemetry"
)

// Input holds both views of a snapshot, each in extraction order.
type Input struct {
	Source   []model.MethodRecord
	Compiled []model.MethodRecord
}

// Options configure a run. Zero values select defaults.
type Options struct {
	ObjectTypes []string // erased object type spellings; see resolve.New
	TestMarkers []string // test carrier markers; see pairing.NewClassifier
	Top         int      // number of top-ranked call graph nodes to keep
	Language    string   // language of source bodies, default "java"

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *telemetry.Metrics
}

// Result is the reconciled dataset.
type Result struct {
	Mapping       model.MatchResult
	InvariantHeld bool
	Graph         *callgraph.Graph
	Ranks         map[string]float64
	Top           []model.RankedMethod
	Production    int
	Tests         int
	Pairings      []model.TestPairing
	Duplicates    []model.DuplicateReport
}

// Run reconciles in. It fails only when the body scanner cannot be set
// up; problems with individual records never abort a run.
func Run(ctx context.Context, in Input, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(telemetry.TracerName)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}
	langName := opts.Language
	if langName == "" {
		langName = "java"
	}

	ctx, span := tracer.Start(ctx, "reconcile")
	defer span.End()

	res := &Result{}

	// Duplicates
	stage := startStage(ctx, tracer, metrics, "duplicates")
	res.Duplicates = []model.DuplicateReport{
		Duplicates(model.Source, in.Source),
		Duplicates(model.Compiled, in.Compiled),
	}
	for _, d := range res.Duplicates {
		metrics.Duplicates.WithLabelValues(string(d.Origin)).Set(float64(d.Duplicate))
		if d.Duplicate > 0 {
			log.Info("duplicate records",
				slog.String("origin", string(d.Origin)),
				slog.Int("total", d.Total),
				slog.Int("unique", d.Unique),
				slog.Int("duplicate", d.Duplicate))
		}
	}
	stage.end()

	// Join
	stage = startStage(ctx, tracer, metrics, "join")
	res.Mapping = join.Join(in.Source, in.Compiled, resolve.New(opts.ObjectTypes...))
	res.InvariantHeld = checkInvariant(log, metrics, res.Mapping, len(in.Source), len(in.Compiled))
	metrics.Partition.WithLabelValues("common").Set(float64(len(res.Mapping.Common)))
	metrics.Partition.WithLabelValues("source_only").Set(float64(len(res.Mapping.SourceOnly)))
	metrics.Partition.WithLabelValues("compiled_only").Set(float64(len(res.Mapping.CompiledOnly)))
	stage.span.SetAttributes(
		attribute.Int("common", len(res.Mapping.Common)),
		attribute.Bool("invariant_held", res.InvariantHeld))
	stage.end()

	// Call graph
	stage = startStage(ctx, tracer, metrics, "callgraph")
	res.Graph = callgraph.Build(in.Compiled)
	res.Ranks = ranking.PageRank(res.Graph.Nodes(), res.Graph.Edges())
	res.Top = ranking.Top(res.Ranks, opts.Top)
	metrics.GraphNodes.Set(float64(res.Graph.NodeCount()))
	metrics.GraphEdges.Set(float64(res.Graph.EdgeCount()))
	metrics.MalformedCalls.Add(float64(res.Graph.Malformed()))
	if n := res.Graph.Malformed(); n > 0 {
		log.Warn("skipped undecodable call instructions", slog.Int("count", n))
	}
	stage.span.SetAttributes(
		attribute.Int("nodes", res.Graph.NodeCount()),
		attribute.Int("edges", res.Graph.EdgeCount()))
	stage.end()

	// Test pairing
	stage = startStage(ctx, tracer, metrics, "pairing")
	l, err := lang.Lookup(langName)
	if err != nil {
		stage.fail(err)
		return nil, fmt.Errorf("pairing: %w", err)
	}
	pairer, err := pairing.New(l)
	if err != nil {
		stage.fail(err)
		return nil, fmt.Errorf("pairing: %w", err)
	}
	production, tests := pairing.NewClassifier(opts.TestMarkers...).Partition(in.Source)
	res.Production, res.Tests = len(production), len(tests)
	res.Pairings = pairer.Pair(production, tests)
	metrics.Pairings.Set(float64(len(res.Pairings)))
	stage.span.SetAttributes(attribute.Int("pairings", len(res.Pairings)))
	stage.end()

	log.Debug("reconciled",
		slog.Int("common", len(res.Mapping.Common)),
		slog.Int("edges", res.Graph.EdgeCount()),
		slog.Int("pairings", len(res.Pairings)))
	return res, nil
}

// checkInvariant reports whether m accounts for every one of the a source
// and b compiled records. A violation is logged and counted, never fatal.
func checkInvariant(log *slog.Logger, metrics *telemetry.Metrics, m model.MatchResult, a, b int) bool {
	if m.Balanced(a, b) {
		return true
	}
	metrics.InvariantViolations.Inc()
	log.Warn("join partitions do not account for every record; probable resolver defect",
		slog.Int("source", a),
		slog.Int("compiled", b),
		slog.Int("common", len(m.Common)),
		slog.Int("sourceOnly", len(m.SourceOnly)),
		slog.Int("compiledOnly", len(m.CompiledOnly)))
	return false
}

// Duplicates reports same-origin collisions: records equal in all four
// identity fields. Overloads are distinct records and never collide.
func Duplicates(origin model.Origin, records []model.MethodRecord) model.DuplicateReport {
	seen := make(map[model.Key]int, len(records))
	var identities []string
	for i := range records {
		k := records[i].Key()
		seen[k]++
		if seen[k] == 2 {
			identities = append(identities, records[i].Identity())
		}
	}
	return model.DuplicateReport{
		Origin:     origin,
		Total:      len(records),
		Unique:     len(seen),
		Duplicate:  len(records) - len(seen),
		Identities: identities,
	}
}

type stageSpan struct {
	span    trace.Span
	name    string
	start   time.Time
	metrics *telemetry.Metrics
}

func startStage(ctx context.Context, tracer trace.Tracer, m *telemetry.Metrics, name string) stageSpan {
	_, span := tracer.Start(ctx, name)
	return stageSpan{span: span, name: name, start: time.Now(), metrics: m}
}

func (s stageSpan) end() {
	s.metrics.ObserveStage(s.name, s.start)
	s.span.End()
}

func (s stageSpan) fail(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
	s.end()
}
