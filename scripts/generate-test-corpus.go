//go:build ignore

// Package main generates a synthetic C/C++ source tree for benchmarking
// internal/frontend's parse throughput and internal/tags' span dedup at
// scale — the "tens of thousands of translation units" regime the
// span-manager hash index is sized for.
// Usage: go run scripts/generate-test-corpus.go -files 2000 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 2000, "Number of translation units to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
	sharedPct = flag.Int("shared-headers", 30, "Percent of translation units #including a shared header (exercises span dedup)")
)

// headerTemplate is a small C header declaring a handful of functions,
// a struct, and a global — the shape that makes a RecordSpan worth
// deduping when many translation units #include the same one.
var headerTemplate = `#ifndef %s_H
#define %s_H

struct %s {
    int id;
    const char *name;
    double %s;
};

int %s_init(struct %s *self, int id);
void %s_destroy(struct %s *self);
int %s_%s(struct %s *self, int value);

extern int g_%s_count;

#endif
`

// sourceTemplate is a translation unit that includes one or more headers
// and defines the functions they declare, plus a handful of local-only
// symbols so not every record in the TU comes from a shared span.
var sourceTemplate = `#include "%s.h"
#include <stdlib.h>
#include <string.h>

int g_%s_count = 0;

int %s_init(struct %s *self, int id) {
    self->id = id;
    self->name = NULL;
    self->%s = 0.0;
    g_%s_count++;
    return 0;
}

void %s_destroy(struct %s *self) {
    free((void *)self->name);
    g_%s_count--;
}

int %s_%s(struct %s *self, int value) {
    self->%s += value;
    return (int)self->%s;
}

static int %s_helper(int x) {
    return x * 2 + %d;
}
`

var nouns = []string{
	"handler", "manager", "parser", "buffer", "queue",
	"worker", "cache", "router", "session", "context",
	"scanner", "resolver", "tracker", "dispatcher", "allocator",
}

var fields = []string{"weight", "score", "balance", "total", "accum"}
var verbs = []string{"update", "commit", "apply", "process", "merge"}

func randomWord(pool []string) string {
	return pool[rand.Intn(len(pool))]
}

func main() {
	flag.Parse()
	rand.Seed(*seed)

	if err := os.MkdirAll(filepath.Join(*outputDir, "include"), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating include directory: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Join(*outputDir, "src"), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating src directory: %v\n", err)
		os.Exit(1)
	}

	// A small fixed pool of shared headers: every TU that includes one
	// of these produces a byte-identical RecordSpan for it, so the
	// generated corpus actually exercises AddSpan's dedup path instead
	// of manufacturing *numFiles distinct spans.
	const sharedHeaderCount = 20
	sharedHeaders := make([]string, sharedHeaderCount)
	for i := range sharedHeaders {
		name := fmt.Sprintf("%s_%d", randomWord(nouns), i)
		sharedHeaders[i] = name
		if err := writeHeader(name); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating header %s: %v\n", name, err)
		}
	}

	fmt.Printf("Generating %d translation units in %s (%d%% sharing one of %d headers)...\n",
		*numFiles, *outputDir, *sharedPct, sharedHeaderCount)

	generated := 0
	for i := 0; i < *numFiles; i++ {
		var headerName string
		if rand.Intn(100) < *sharedPct {
			headerName = sharedHeaders[rand.Intn(len(sharedHeaders))]
		} else {
			headerName = fmt.Sprintf("%s_%d", randomWord(nouns), i)
			if err := writeHeader(headerName); err != nil {
				fmt.Fprintf(os.Stderr, "Error generating header %s: %v\n", headerName, err)
				continue
			}
		}
		if err := writeSource(i, headerName); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating source %d: %v\n", i, err)
			continue
		}
		generated++
	}

	fmt.Printf("Generated %d translation units successfully.\n", generated)
}

func writeHeader(name string) error {
	upper := strings.ToUpper(name)
	field := randomWord(fields)
	content := fmt.Sprintf(headerTemplate,
		upper, upper, name, field,
		name, name,
		name, name,
		name, randomWord(verbs), name,
		name,
	)
	path := filepath.Join(*outputDir, "include", name+".h")
	return os.WriteFile(path, []byte(content), 0644)
}

func writeSource(index int, headerName string) error {
	field := randomWord(fields)
	verb := randomWord(verbs)
	content := fmt.Sprintf(sourceTemplate,
		headerName,
		headerName,
		headerName, headerName,
		field,
		headerName,
		headerName, headerName,
		headerName,
		headerName, verb, headerName,
		field, field,
		headerName, index,
	)
	path := filepath.Join(*outputDir, "src", fmt.Sprintf("tu_%d.c", index))
	return os.WriteFile(path, []byte(content), 0644)
}
