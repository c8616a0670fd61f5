package reducer

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/KaiJun-SIT/Big-Data-amazon/shared/counters"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/logger"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/storage"
	"golang.org/x/xerrors"
)

const (
	loaderComponent = "Duplicates Loader"

	readBufferSize = 8 * 1024

	pairSeparator   = " and "
	reasonSeparator = " have "
)

// ParseRelationLine extracts the two product ids of a line shaped like
// "<idA> and <idB> have <reason>". Lines that do not follow the pattern are
// reported with ok == false. A blank idB is returned as "".
func ParseRelationLine(line string) (first, second string, ok bool) {
	andPos := strings.Index(line, pairSeparator)
	if andPos <= 0 {
		return "", "", false
	}
	first = strings.TrimSpace(line[:andPos])
	rest := line[andPos+len(pairSeparator):]

	havePos := strings.Index(rest, reasonSeparator)
	if havePos <= 0 {
		return "", "", false
	}
	second = strings.TrimSpace(rest[:havePos])
	return first, second, true
}

// lineSplitter turns arbitrary byte chunks into trimmed, non-blank lines.
// Only the unterminated tail of the last chunk is kept between writes.
type lineSplitter struct {
	partial []byte
	onLine  func(string)
}

func (s *lineSplitter) Write(p []byte) (int, error) {
	n := len(p)
	for {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			break
		}
		var line string
		if len(s.partial) > 0 {
			line = string(append(s.partial, p[:i]...))
			s.partial = s.partial[:0]
		} else {
			line = string(p[:i])
		}
		s.emit(line)
		p = p[i+1:]
	}
	s.partial = append(s.partial, p...)
	return n, nil
}

// Flush emits the trailing line that had no newline.
func (s *lineSplitter) Flush() {
	if len(s.partial) > 0 {
		s.emit(string(s.partial))
		s.partial = s.partial[:0]
	}
}

func (s *lineSplitter) emit(line string) {
	if line = strings.TrimSpace(line); line != "" {
		s.onLine(line)
	}
}

// LoadStats summarises one relation file load.
type LoadStats struct {
	// PairsProcessed counts every non-blank line, matched or not.
	PairsProcessed int
	LoadTime       time.Duration
}

// ReadExclusionSet streams r and collects the second id of every relation
// line. Memory use is bounded by the set plus the longest line.
func ReadExclusionSet(r io.Reader) (*ExclusionSet, LoadStats, error) {
	start := time.Now()
	set := EmptyExclusionSet()
	stats := LoadStats{}

	splitter := &lineSplitter{onLine: func(line string) {
		if _, second, ok := ParseRelationLine(line); ok {
			set.ids[second] = struct{}{}
		}
		stats.PairsProcessed++
	}}

	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			splitter.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, xerrors.Errorf("failed to read duplicates file: %w", err)
		}
	}
	splitter.Flush()

	stats.LoadTime = time.Since(start)
	return set, stats, nil
}

// DuplicatesLoader builds the ExclusionSet a reducer uses for its whole
// lifetime.
type DuplicatesLoader struct {
	FS       storage.FileSystem
	Counters counters.Counters
}

// Load reads the relation file at path. An empty path disables duplicate
// filtering and a missing file only produces a warning; both return an
// empty set. Read failures on an existing file are returned as errors.
func (l *DuplicatesLoader) Load(ctx context.Context, path string) (*ExclusionSet, error) {
	if path == "" {
		logger.LogInfo(loaderComponent, "No duplicates file specified - duplicate filtering disabled")
		return EmptyExclusionSet(), nil
	}

	rc, err := l.FS.Open(ctx, path)
	if err != nil {
		if xerrors.Is(err, storage.ErrNotFound) {
			logger.LogWarn(loaderComponent, "Duplicates file not found: %s", path)
			l.Counters.Increment(counters.ReducerGroup, counters.DuplicatesFileNotFound, 1)
			return EmptyExclusionSet(), nil
		}
		return nil, xerrors.Errorf("failed to open duplicates file %s: %w", path, err)
	}
	defer rc.Close()

	set, stats, err := ReadExclusionSet(rc)
	if err != nil {
		return nil, xerrors.Errorf("%s: %w", path, err)
	}

	logger.LogInfo(loaderComponent, "Duplicates file processed: %s", path)
	logger.LogInfo(loaderComponent, "  - Duplicate pairs processed: %d", stats.PairsProcessed)
	logger.LogInfo(loaderComponent, "  - Product IDs to filter: %d", set.Len())
	logger.LogInfo(loaderComponent, "  - Load time: %dms", stats.LoadTime.Milliseconds())

	l.Counters.Increment(counters.ReducerGroup, counters.DuplicatePairsProcessed, int64(stats.PairsProcessed))
	l.Counters.Increment(counters.ReducerGroup, counters.ProductIDsToFilter, int64(set.Len()))
	l.Counters.Increment(counters.ReducerGroup, counters.DuplicatesLoadMillis, stats.LoadTime.Milliseconds())
	return set, nil
}
