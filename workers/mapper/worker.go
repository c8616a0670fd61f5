package mapper

import (
	"context"

	"github.com/KaiJun-SIT/Big-Data-amazon/protocol/chunk"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/counters"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/logger"
	"golang.org/x/xerrors"
)

// Line is one input line and its position in the job input.
type Line struct {
	Seq  uint64
	Text string
}

// PartitionWriter accepts grouped pairs for one reduce partition.
type PartitionWriter interface {
	Send(ctx context.Context, partition int, pairs []chunk.Pair) error
}

// Worker runs the grouping stage over batches of input lines and routes the
// resulting pairs to their partitions.
type Worker struct {
	workerID      int
	numPartitions int
	batches       <-chan []Line
	out           PartitionWriter
	counters      counters.Counters
}

func NewWorker(workerID, numPartitions int, batches <-chan []Line, out PartitionWriter, c counters.Counters) *Worker {
	if numPartitions < 1 {
		numPartitions = 1
	}
	return &Worker{
		workerID:      workerID,
		numPartitions: numPartitions,
		batches:       batches,
		out:           out,
		counters:      c,
	}
}

// Run consumes batches until the channel closes or ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	component := mapperComponent
	logger.LogDebug(component, "Worker %d started", w.workerID)

	processed := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-w.batches:
			if !ok {
				logger.LogDebug(component, "Worker %d stopped after %d batches", w.workerID, processed)
				return nil
			}
			if err := w.processBatch(ctx, batch); err != nil {
				return xerrors.Errorf("mapper %d: %w", w.workerID, err)
			}
			processed++
		}
	}
}

func (w *Worker) processBatch(ctx context.Context, batch []Line) error {
	byPartition := make([][]chunk.Pair, w.numPartitions)

	for _, line := range batch {
		seq := line.Seq
		err := Map(line.Text, func(key, value string) error {
			p := Partition(key, w.numPartitions)
			byPartition[p] = append(byPartition[p], chunk.Pair{Key: key, Value: value, Seq: seq})
			return nil
		}, w.counters)
		if err != nil {
			return err
		}
	}

	for partition, pairs := range byPartition {
		if len(pairs) == 0 {
			continue
		}
		if err := w.out.Send(ctx, partition, pairs); err != nil {
			return xerrors.Errorf("failed to send %d pairs to partition %d: %w", len(pairs), partition, err)
		}
	}
	return nil
}
