package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/willibrandon/MemStep/pkg/inspect"
	"github.com/willibrandon/MemStep/pkg/memory"
	"github.com/willibrandon/MemStep/pkg/scenario"
	"github.com/willibrandon/MemStep/pkg/snapfile"
	"github.com/willibrandon/MemStep/pkg/timeline"
	"github.com/willibrandon/MemStep/pkg/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <trace.snap | scenario.yaml>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetVersionInfo())
		return
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	snapshots, err := loadSnapshots(path)
	if err != nil {
		log.Fatalf("Failed to load %s: %v", path, err)
	}

	tl := timeline.New()
	for _, s := range snapshots {
		if err := tl.Append(s); err != nil {
			log.Fatalf("Failed to build timeline: %v", err)
		}
	}

	inspect.NewCLI(tl).Start()
}

// loadSnapshots reads either a recorded snapshot file or a YAML scenario
// describing a single initial state
func loadSnapshots(path string) ([]*memory.MemorySnapshot, error) {
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		s, err := scenario.Load(path)
		if err != nil {
			return nil, err
		}
		return []*memory.MemorySnapshot{s}, nil
	}
	return snapfile.Load(path)
}
