package engine

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaiJun-SIT/Big-Data-amazon/shared/storage"
	"github.com/KaiJun-SIT/Big-Data-amazon/workers/mapper"
	"golang.org/x/xerrors"
)

// isHidden follows the Hadoop input rule: names starting with _ or . are
// bookkeeping files, not data.
func isHidden(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

// listInputs expands path into the files to read, in sorted order.
func listInputs(path string) ([]string, error) {
	if strings.HasPrefix(path, storage.S3Scheme) {
		return []string{path}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, xerrors.Errorf("input path %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to list input directory %s: %w", path, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || isHidden(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(path, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// inputSplitter reads input files line by line and hands them out in
// batches, numbering every line across the whole job.
type inputSplitter struct {
	fs         storage.FileSystem
	chunkLines int
	seq        uint64
}

func (s *inputSplitter) run(ctx context.Context, files []string, out chan<- []mapper.Line) error {
	defer close(out)

	for _, file := range files {
		if err := s.readFile(ctx, file, out); err != nil {
			return err
		}
	}
	return nil
}

func (s *inputSplitter) readFile(ctx context.Context, file string, out chan<- []mapper.Line) error {
	rc, err := s.fs.Open(ctx, file)
	if err != nil {
		return xerrors.Errorf("failed to open input %s: %w", file, err)
	}
	defer rc.Close()

	reader := bufio.NewReaderSize(rc, 64*1024)
	batch := make([]mapper.Line, 0, s.chunkLines)
	for {
		text, readErr := reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return xerrors.Errorf("failed to read input %s: %w", file, readErr)
		}
		if text != "" {
			text = strings.TrimSuffix(text, "\n")
			text = strings.TrimSuffix(text, "\r")
			batch = append(batch, mapper.Line{Seq: s.seq, Text: text})
			s.seq++
		}
		if len(batch) == s.chunkLines || (readErr == io.EOF && len(batch) > 0) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- batch:
			}
			batch = make([]mapper.Line, 0, s.chunkLines)
		}
		if readErr == io.EOF {
			return nil
		}
	}
}
