package ned

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/willbeason/bondsmith/fileio"
	"github.com/willbeason/bondsmith/jsonio"
)

// ReadExamples reads and validates one example per JSONL line.
func ReadExamples(reader io.Reader) ([]*Example, error) {
	entries := jsonio.NewReader(reader, func() *Example {
		return &Example{}
	})

	var result []*Example
	for example, err := range entries.Read() {
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading examples: %w", err)
		}

		err = example.Validate()
		if err != nil {
			return nil, err
		}
		result = append(result, example)
	}

	return result, nil
}

// ReadExampleFiles reads examples from several files in order. Files ending
// in .gz are decompressed.
func ReadExampleFiles(paths []string) ([]*Example, error) {
	var result []*Example
	var plain []string
	flush := func() error {
		if len(plain) == 0 {
			return nil
		}
		examples, err := ReadExamples(fileio.NewMultiFileReader(plain))
		if err != nil {
			return err
		}
		result = append(result, examples...)
		plain = nil
		return nil
	}

	for _, path := range paths {
		if !strings.HasSuffix(path, ".gz") {
			plain = append(plain, path)
			continue
		}
		err := flush()
		if err != nil {
			return nil, err
		}

		examples, err := readGzipFile(path)
		if err != nil {
			return nil, err
		}
		result = append(result, examples...)
	}

	err := flush()
	if err != nil {
		return nil, err
	}
	return result, nil
}

func readGzipFile(path string) ([]*Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	reader, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader for %q: %w", path, err)
	}

	examples, err := ReadExamples(reader)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	return examples, nil
}
