// cmd/quicksilver/commands/snapshot.go
package commands

import (
	"flag"
	"fmt"
	"os"
	"time"

	"quicksilver/internal/chunk"
	"quicksilver/internal/optimizer"
	"quicksilver/internal/snapshot"
)

// Compiler turns source bytes into a chunk. The parser is an external
// collaborator this module never implements, so callers supply their own
// front end; DefaultCompiler is the fallback when none is wired in.
type Compiler func(source []byte, filename string) (*chunk.Chunk, error)

// DefaultCompiler always fails: this module owns no parser of its own.
var DefaultCompiler Compiler = func(source []byte, filename string) (*chunk.Chunk, error) {
	return nil, fmt.Errorf("no compiler wired: %s must be compiled by an external front end", filename)
}

func loadChunkFromSnapshot(path string) (*chunk.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	snap, err := snapshot.Load(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", path, err)
	}
	if len(snap.Chunks) == 0 {
		return nil, fmt.Errorf("snapshot %s carries no chunks", path)
	}
	return snap.Chunks[0], nil
}

// SnapshotCommand implements `quicksilver snapshot <source-file> --output
// <file>`: compile source via compiler, run the result through the
// optimizer, and write it out as a snapshot.
func SnapshotCommand(args []string, compiler Compiler) error {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	output := fs.String("output", "", "output snapshot file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || *output == "" {
		return fmt.Errorf("usage: quicksilver snapshot <source-file> --output <file>")
	}
	sourcePath := fs.Arg(0)

	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", sourcePath, err)
	}

	if compiler == nil {
		compiler = DefaultCompiler
	}
	c, err := compiler(source, sourcePath)
	if err != nil {
		return fmt.Errorf("compile failed: %w", err)
	}

	optimizer.New().Optimize(c)

	snap := snapshot.New(sourcePath, RuntimeVersion, uint64(time.Now().Unix()))
	snap.Chunks = append(snap.Chunks, c)

	out, err := os.Create(*output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", *output, err)
	}
	defer out.Close()

	if err := snapshot.Save(out, snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	fmt.Printf("compiled %s, wrote %s\n", sourcePath, *output)
	return nil
}

// RunCommand implements `quicksilver run <file.qss>`: loads a snapshot and
// prints the disassembly of every chunk it carries. The interpreter that
// would actually execute this is external to this module; this prints
// what it would be fed.
func RunCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: quicksilver run <file.qss>")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	snap, err := snapshot.Load(f)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	fmt.Printf("snapshot %s (version %d, runtime %s)\n", snap.Filename, snap.Version, snap.RuntimeVersion)
	for i, c := range snap.Chunks {
		fmt.Print(c.Disassemble(fmt.Sprintf("chunk %d", i)))
	}
	return nil
}
