// Command opgraph-demo builds a small operator graph entirely from
// deterministic Map leaves, runs it once uncompiled and once through the
// JIT, and prints both results alongside the JIT's strategy selection.
// It requires no external providers or network access.
package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ahrav/opgraph"
	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/scheduler"
)

func main() {
	ctx := context.Background()

	normalize := opgraph.Map("normalize", func(_ context.Context, v any) (any, error) {
		s, _ := v.(string)
		return strings.TrimSpace(strings.ToLower(s)), nil
	}, "text", "normalized")

	wordCount := opgraph.Map("word_count", func(_ context.Context, v any) (any, error) {
		s, _ := v.(string)
		if s == "" {
			return 0, nil
		}
		return len(strings.Fields(s)), nil
	}, "normalized", "words")

	shout := opgraph.Map("shout", func(_ context.Context, v any) (any, error) {
		s, _ := v.(string)
		return strings.ToUpper(s) + "!", nil
	}, "normalized", "shouted")

	analysis := opgraph.Parallel("analysis", wordCount, shout)
	pipeline := opgraph.Sequence("pipeline", normalize, analysis)

	in := domain.NewRecord().WithRaw("text", "  Operator graphs compose nicely  ")

	out, err := opgraph.Call(ctx, pipeline, in)
	if err != nil {
		log.Fatalf("uncompiled call: %v", err)
	}
	report("uncompiled", out)

	compiled := opgraph.JIT(pipeline, opgraph.JITOptions{Mode: opgraph.ModeAuto})
	out, err = opgraph.Call(ctx, compiled, in)
	if err != nil {
		log.Fatalf("compiled call: %v", err)
	}
	report("jit(auto)", out)

	g := opgraph.NewGraph()
	if err := opgraph.AddNode(g, "pipeline", pipeline); err != nil {
		log.Fatalf("add node: %v", err)
	}
	if err := opgraph.AddEdge(g, ":input", "pipeline", "", "input"); err != nil {
		log.Fatalf("add edge: %v", err)
	}
	if err := opgraph.AddEdge(g, "pipeline", ":output", "", "input"); err != nil {
		log.Fatalf("add edge: %v", err)
	}

	results, err := opgraph.Execute(ctx, g, in, "wave", scheduler.Options{})
	if err != nil {
		log.Fatalf("graph execute: %v", err)
	}
	report("graph/wave", results["pipeline"])
}

func report(label string, r domain.Record) {
	words, _ := domain.Get(r, domain.NewKey[int]("words"))
	shouted, _ := domain.Get(r, domain.NewKey[string]("shouted"))
	fmt.Printf("[%s] words=%d shouted=%q\n", label, words, shouted)
}
