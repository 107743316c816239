// Command shadergraphc compiles a shader graph IR document (package ir)
// to shader source text (package shadergen).
//
// Usage:
//
//	shadergraphc [options] <input.json>
//
// Examples:
//
//	shadergraphc graph.json                  # Generate to stdout
//	shadergraphc -o out.wgsl graph.json       # Generate to a file
//	shadergraphc -entry kernel graph.json     # Override the entry point
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/gogpu/shadergraph/ir"
	"github.com/gogpu/shadergraph/shadergen"
)

var (
	output      = flag.String("o", "", "output file (default: stdout)")
	entry       = flag.String("entry", "", "entry point function id (default: the document's EntryPoint)")
	validate    = flag.Bool("validate", true, "validate IR before generating")
	versionFlag = flag.Bool("version", false, "print version")
)

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *versionFlag {
		fmt.Printf("shadergraphc version %s\n", version())
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: no input document specified")
		usage()
		os.Exit(1)
	}

	source, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	var doc ir.Document
	if err := json.Unmarshal(source, &doc); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing document: %v\n", err)
		os.Exit(1)
	}

	entryID := doc.EntryPoint
	if *entry != "" {
		entryID = ir.FunctionID(*entry)
	}

	if *validate {
		if diags := ir.Validate(&doc); ir.HasErrors(diags) {
			fmt.Fprintf(os.Stderr, "Validation error:\n")
			for _, d := range diags {
				fmt.Fprintf(os.Stderr, "  %+v\n", d)
			}
			os.Exit(1)
		}
	}

	opts := shadergen.DefaultOptions()
	result, err := shadergen.Generate(&doc, entryID, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Generation error: %v\n", err)
		os.Exit(1)
	}

	if *output != "" {
		if err := os.WriteFile(*output, []byte(result.Source), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Successfully generated %s from %s (%d bytes)\n", *output, args[0], len(result.Source))
		return
	}

	if _, err := os.Stdout.WriteString(result.Source); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: shadergraphc [options] <input.json>\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  shadergraphc graph.json                Generate to stdout\n")
	fmt.Fprintf(os.Stderr, "  shadergraphc -o out.wgsl graph.json     Generate to a file\n")
}
