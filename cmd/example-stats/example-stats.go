package main

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"
	"github.com/willbeason/bondsmith"
	"github.com/willbeason/bondsmith/jsonio"
	"github.com/willbeason/table-linking/pkg/ned"
	"github.com/willbeason/table-linking/pkg/profile"
	"golang.org/x/term"
)

const IncEvery = 1 << 8

func main() {
	cmd.Flags().String("out", "", "output file path (default: stdout)")

	err := cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var cmd = cobra.Command{
	Use:     "example-stats FILE|DIR",
	Short:   "Collect statistics about the cells and gold links of annotated tables",
	Args:    cobra.ExactArgs(1),
	Version: "0.1.0",
	RunE:    runE,
}

var ErrExampleStats = errors.New("getting example statistics")

var examplesPattern = regexp.MustCompile(`\.jsonl(\.gz)?$`)

func runE(cmd *cobra.Command, args []string) error {
	inPath := args[0]

	f, err := os.Stat(inPath)
	if err != nil {
		return fmt.Errorf("%w: stat %q: %w", ErrExampleStats, inPath, err)
	}

	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		width = 80
	}
	p := mpb.New(mpb.WithWidth(width))

	stats := profile.NewStats()
	switch {
	case f.IsDir():
		err = processDirectory(p, inPath, stats)
	case examplesPattern.MatchString(inPath):
		err = processFile(p, inPath, stats)
	default:
		err = fmt.Errorf("%w: file %q is neither a directory nor a .jsonl file", ErrExampleStats, inPath)
	}
	if err != nil {
		return err
	}

	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}

	outFile := os.Stdout
	if outPath != "" {
		outFile, err = os.Create(outPath)
		if err != nil {
			return err
		}
		defer func() {
			_ = outFile.Close()
		}()
	}

	for _, line := range stats.Lines() {
		_, err = fmt.Fprintln(outFile, line)
		if err != nil {
			return err
		}
	}

	return nil
}

func processDirectory(p *mpb.Progress, inPath string, stats *profile.Stats) error {
	entries, err := os.ReadDir(inPath)
	if err != nil {
		return fmt.Errorf("%w: reading %q: %w", ErrExampleStats, inPath, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && examplesPattern.MatchString(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	bar := p.AddBar(int64(len(names)),
		mpb.AppendDecorators(decor.AverageETA(decor.ET_STYLE_GO)),
		mpb.PrependDecorators(decor.Name(filepath.Base(inPath))),
		mpb.PrependDecorators(decor.CountersNoUnit("%d/%d", decor.WCSyncSpace)),
		mpb.BarRemoveOnComplete())
	now := time.Now()

	for _, name := range names {
		err = processFile(p, filepath.Join(inPath, name), stats)
		if err != nil {
			return err
		}
		bar.IncrBy(1, time.Since(now))
	}

	return nil
}

func processFile(p *mpb.Progress, inPath string, stats *profile.Stats) error {
	file, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("%w: opening %q: %w", ErrExampleStats, inPath, err)
	}
	defer func() {
		_ = file.Close()
	}()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("%w: getting stat for %q: %w", ErrExampleStats, inPath, err)
	}

	countReader := bondsmith.NewCountReader(file)
	var reader io.Reader = countReader
	if filepath.Ext(inPath) == ".gz" {
		reader, err = gzip.NewReader(countReader)
		if err != nil {
			return fmt.Errorf("%w: starting gzip reader stream for %q: %w", ErrExampleStats, inPath, err)
		}
	}

	examples := jsonio.NewReader(reader, func() *ned.Example {
		return &ned.Example{}
	})

	bar := p.AddBar(stat.Size(),
		mpb.AppendDecorators(decor.AverageETA(decor.ET_STYLE_GO)),
		mpb.PrependDecorators(decor.Name(filepath.Base(inPath))),
		mpb.BarRemoveOnComplete(),
	)

	i := 0
	lastSeen := 0
	start := time.Now()
	for example, err := range examples.Read() {
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("%w: reading %q: %w", ErrExampleStats, inPath, err)
		}

		err = example.Validate()
		if err != nil {
			return fmt.Errorf("%w: %q: %w", ErrExampleStats, inPath, err)
		}
		err = stats.Add(example)
		if err != nil {
			return fmt.Errorf("%w: %q: %w", ErrExampleStats, inPath, err)
		}

		i++
		if i%IncEvery == 0 {
			curProgress := int(countReader.Count())
			bar.IncrBy(curProgress-lastSeen, time.Since(start))
			lastSeen = curProgress
		}
	}
	bar.IncrBy(int(countReader.Count())-lastSeen, time.Since(start))

	return nil
}
