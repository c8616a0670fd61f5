package engine

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
)

const successMarker = "_SUCCESS"

func partFileName(partition int) string {
	return fmt.Sprintf("part-r-%05d", partition)
}

// partWriter is the reduce output of one partition. Pairs with an empty key
// are written as the bare value.
type partWriter struct {
	file   *os.File
	writer *bufio.Writer
	lines  int
}

func newPartWriter(dir string, partition int) (*partWriter, error) {
	file, err := os.Create(filepath.Join(dir, partFileName(partition)))
	if err != nil {
		return nil, xerrors.Errorf("failed to create output part %d: %w", partition, err)
	}
	return &partWriter{file: file, writer: bufio.NewWriter(file)}, nil
}

func (w *partWriter) Emit(key, value string) error {
	if key != "" {
		if _, err := w.writer.WriteString(key); err != nil {
			return err
		}
		if err := w.writer.WriteByte('\t'); err != nil {
			return err
		}
	}
	if _, err := w.writer.WriteString(value); err != nil {
		return err
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return err
	}
	w.lines++
	return nil
}

func (w *partWriter) Close() error {
	flushErr := w.writer.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return xerrors.Errorf("failed to flush %s: %w", w.file.Name(), flushErr)
	}
	if closeErr != nil {
		return xerrors.Errorf("failed to close %s: %w", w.file.Name(), closeErr)
	}
	return nil
}

func writeSuccessMarker(dir string) error {
	if err := os.WriteFile(filepath.Join(dir, successMarker), nil, 0644); err != nil {
		return xerrors.Errorf("failed to write %s: %w", successMarker, err)
	}
	return nil
}
