// Package engine runs the review cleaning job on one machine: it splits the
// input, runs the grouping stage on a pool of mappers, shuffles pairs to
// their partition and runs the filtering stage once per partition.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/KaiJun-SIT/Big-Data-amazon/engine/shuffle"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/config"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/counters"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/logger"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/storage"
	"github.com/KaiJun-SIT/Big-Data-amazon/workers/mapper"
	"github.com/KaiJun-SIT/Big-Data-amazon/workers/reducer"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

const engineComponent = "Engine"

var ErrOutputExists = xerrors.New("output directory already exists")

// Job is one run of the pipeline.
type Job struct {
	InputPath  string
	OutputPath string
	Conf       Conf
}

// TransportFactory opens the shuffle transport of a job.
type TransportFactory func(ctx context.Context, jobID string, numPartitions int) (shuffle.Transport, error)

// MemoryTransportFactory keeps the shuffle in process.
func MemoryTransportFactory(_ context.Context, _ string, numPartitions int) (shuffle.Transport, error) {
	return shuffle.NewMemoryTransport(numPartitions), nil
}

// Engine executes jobs with a fixed worker layout.
type Engine struct {
	numMappers   int
	numReducers  int
	chunkLines   int
	fs           storage.FileSystem
	counters     *counters.Registry
	newTransport TransportFactory
}

// New builds an engine from cfg. A nil transport factory means in-memory
// shuffle.
func New(cfg *config.Config, fs storage.FileSystem, c *counters.Registry, newTransport TransportFactory) *Engine {
	if newTransport == nil {
		newTransport = MemoryTransportFactory
	}
	if fs == nil {
		fs = storage.LocalFileSystem{}
	}
	return &Engine{
		numMappers:   cfg.NumMappers,
		numReducers:  cfg.NumReducers,
		chunkLines:   cfg.ChunkLines,
		fs:           fs,
		counters:     c,
		newTransport: newTransport,
	}
}

// Counters returns the registry the engine reports job counters to.
func (e *Engine) Counters() *counters.Registry {
	return e.counters
}

// Run executes job. The output directory is created by Run and removed
// again if the job fails; on success it holds one part file per partition
// and an empty _SUCCESS marker.
func (e *Engine) Run(ctx context.Context, job Job) error {
	if job.InputPath == "" || job.OutputPath == "" {
		return xerrors.New("input and output paths are required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(job.OutputPath); err == nil {
		return xerrors.Errorf("%w: %s", ErrOutputExists, job.OutputPath)
	} else if !os.IsNotExist(err) {
		return xerrors.Errorf("failed to check output path %s: %w", job.OutputPath, err)
	}

	inputs, err := listInputs(job.InputPath)
	if err != nil {
		return err
	}

	jobID := uuid.NewString()
	start := time.Now()
	logger.LogInfo(engineComponent, "Job %s: %d input files, %d mappers, %d reducers", jobID, len(inputs), e.numMappers, e.numReducers)

	transport, err := e.newTransport(ctx, jobID, e.numReducers)
	if err != nil {
		return xerrors.Errorf("failed to open shuffle transport: %w", err)
	}
	defer func() {
		if err := transport.Close(); err != nil {
			logger.LogWarn(engineComponent, "Job %s: closing shuffle transport: %v", jobID, err)
		}
	}()

	if err := os.MkdirAll(filepath.Dir(filepath.Clean(job.OutputPath)), 0755); err != nil {
		return xerrors.Errorf("failed to create output parent: %w", err)
	}
	if err := os.Mkdir(job.OutputPath, 0755); err != nil {
		if os.IsExist(err) {
			return xerrors.Errorf("%w: %s", ErrOutputExists, job.OutputPath)
		}
		return xerrors.Errorf("failed to create output directory: %w", err)
	}

	if err := e.execute(ctx, job, inputs, transport); err != nil {
		if rmErr := os.RemoveAll(job.OutputPath); rmErr != nil {
			logger.LogWarn(engineComponent, "Job %s: could not remove partial output: %v", jobID, rmErr)
		}
		logger.LogError(engineComponent, "Job %s failed after %s: %v", jobID, time.Since(start), err)
		return err
	}
	if err := writeSuccessMarker(job.OutputPath); err != nil {
		return err
	}

	logger.LogInfo(engineComponent, "Job %s completed in %s", jobID, time.Since(start))
	e.logCounters()
	return nil
}

func (e *Engine) execute(ctx context.Context, job Job, inputs []string, transport shuffle.Transport) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.mapPhase(gctx, inputs, transport)
	})
	for partition := 0; partition < e.numReducers; partition++ {
		partition := partition
		g.Go(func() error {
			return e.reducePartition(gctx, job, partition, transport)
		})
	}
	return g.Wait()
}

func (e *Engine) mapPhase(ctx context.Context, inputs []string, transport shuffle.Transport) error {
	mg, mctx := errgroup.WithContext(ctx)
	batches := make(chan []mapper.Line, e.numMappers)

	splitter := &inputSplitter{fs: e.fs, chunkLines: e.chunkLines}
	mg.Go(func() error {
		return splitter.run(mctx, inputs, batches)
	})
	for i := 1; i <= e.numMappers; i++ {
		worker := mapper.NewWorker(i, e.numReducers, batches, transport, e.counters)
		mg.Go(func() error {
			return worker.Run(mctx)
		})
	}
	if err := mg.Wait(); err != nil {
		return err
	}

	logger.LogDebug(engineComponent, "Map phase done, %d lines read", splitter.seq)
	return transport.CloseSend(ctx)
}

func (e *Engine) reducePartition(ctx context.Context, job Job, partition int, transport shuffle.Transport) error {
	loader := &reducer.DuplicatesLoader{FS: e.fs, Counters: e.counters}
	exclusion, err := loader.Load(ctx, job.Conf.Get(DuplicatesFileKey))
	if err != nil {
		return xerrors.Errorf("reducer %d setup: %w", partition, err)
	}

	pairs, err := transport.Receive(ctx, partition)
	if err != nil {
		return xerrors.Errorf("reducer %d shuffle: %w", partition, err)
	}
	groups := shuffle.GroupPairs(pairs)

	out, err := newPartWriter(job.OutputPath, partition)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			out.Close()
			return err
		}
		if err := reducer.Filter(group.Key, group.Values, exclusion, out, e.counters); err != nil {
			out.Close()
			return xerrors.Errorf("reducer %d: %w", partition, err)
		}
	}
	if err := out.Close(); err != nil {
		return err
	}

	logger.LogDebug(engineComponent, "Reducer %d wrote %d records from %d groups", partition, out.lines, len(groups))
	return nil
}

func (e *Engine) logCounters() {
	for _, entry := range e.counters.Snapshot() {
		logger.LogInfo(engineComponent, "Counter %s", entry)
	}
}
