package main

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"
	"github.com/willbeason/bondsmith"
	"github.com/willbeason/bondsmith/jsonio"
	"github.com/willbeason/table-linking/pkg/kb"
	"github.com/willbeason/table-linking/pkg/search"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const FlagChunkSize = "chunk-size"

func init() {
	cmd.Flags().Int(FlagChunkSize, 1<<12, "number of entities imported per transaction")
}

func main() {
	err := cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var cmd = cobra.Command{
	Use:     "index-entities KB_PATH DUMP...",
	Short:   "imports JSONL entity dumps into a SQLite knowledge base and builds its search index",
	Args:    cobra.MinimumNArgs(2),
	Version: "0.1.0",
	RunE:    runE,
}

var ErrIndexEntities = errors.New("indexing entities")

func runE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	kbPath := args[0]
	dumps := args[1:]

	chunkSize, err := cmd.Flags().GetInt(FlagChunkSize)
	if err != nil {
		return err
	}
	if chunkSize < 1 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrIndexEntities, chunkSize)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := kb.OpenSQLite(ctx, kbPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIndexEntities, err)
	}
	defer func() {
		_ = store.Close()
	}()

	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		width = 80
	}
	p := mpb.New(mpb.WithWidth(width))

	total := 0
	for _, dump := range dumps {
		n, err := importDump(ctx, p, store, dump, chunkSize)
		if err != nil {
			return err
		}
		logger.Info("imported entities", zap.String("dump", dump), zap.Int("entities", n))
		total += n
	}

	start := time.Now()
	err = search.BuildIndex(ctx, store.DB())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIndexEntities, err)
	}
	logger.Info("built search index",
		zap.String("kb", kbPath),
		zap.Int("entities", total),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func importDump(ctx context.Context, p *mpb.Progress, store *kb.SQLiteStore, inPath string, chunkSize int) (int, error) {
	file, err := os.Open(inPath)
	if err != nil {
		return 0, fmt.Errorf("%w: opening %q: %w", ErrIndexEntities, inPath, err)
	}
	defer func() {
		_ = file.Close()
	}()

	stat, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: getting stat for %q: %w", ErrIndexEntities, inPath, err)
	}

	countReader := bondsmith.NewCountReader(file)
	var reader io.Reader = countReader
	if filepath.Ext(inPath) == ".gz" {
		reader, err = gzip.NewReader(countReader)
		if err != nil {
			return 0, fmt.Errorf("%w: starting gzip reader stream for %q: %w", ErrIndexEntities, inPath, err)
		}
	}

	records := jsonio.NewReader(reader, func() *kb.Record {
		return &kb.Record{}
	})

	bar := p.AddBar(stat.Size(),
		mpb.AppendDecorators(decor.AverageETA(decor.ET_STYLE_GO)),
		mpb.PrependDecorators(decor.Name(filepath.Base(inPath))),
		mpb.BarRemoveOnComplete(),
	)

	n := 0
	lastSeen := 0
	start := time.Now()
	chunk := make([]kb.Record, 0, chunkSize)
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		err := store.Import(ctx, chunk)
		if err != nil {
			return fmt.Errorf("%w: importing from %q: %w", ErrIndexEntities, inPath, err)
		}
		n += len(chunk)
		chunk = chunk[:0]

		curProgress := int(countReader.Count())
		bar.IncrBy(curProgress-lastSeen, time.Since(start))
		lastSeen = curProgress
		return nil
	}

	for record, err := range records.Read() {
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return n, fmt.Errorf("%w: reading %q: %w", ErrIndexEntities, inPath, err)
		}
		if record.ID == "" {
			return n, fmt.Errorf("%w: %q: entity without an id after %d entities", ErrIndexEntities, inPath, n+len(chunk))
		}

		chunk = append(chunk, *record)
		if len(chunk) == chunkSize {
			err = flush()
			if err != nil {
				return n, err
			}
		}
	}

	err = flush()
	if err != nil {
		return n, err
	}
	bar.IncrBy(int(countReader.Count())-lastSeen, time.Since(start))
	return n, nil
}
