// Package shuffle moves grouping-stage pairs to their reduce partition and
// turns each partition's pairs into ordered groups.
package shuffle

import (
	"context"
	"sort"

	"github.com/KaiJun-SIT/Big-Data-amazon/protocol/chunk"
	"golang.org/x/xerrors"
)

var (
	ErrSendClosed       = xerrors.New("shuffle: send after CloseSend")
	ErrUnknownPartition = xerrors.New("shuffle: unknown partition")
)

// Transport carries pairs from mappers to reducers. Send may be called
// concurrently. CloseSend marks the end of the map phase; Receive returns a
// partition's pairs once the map phase is over.
type Transport interface {
	Send(ctx context.Context, partition int, pairs []chunk.Pair) error
	CloseSend(ctx context.Context) error
	Receive(ctx context.Context, partition int) ([]chunk.Pair, error)
	Close() error
}

// Group is one product id and its raw lines in input order.
type Group struct {
	Key    string
	Values []string
}

// GroupPairs sorts pairs by key, then by input sequence, and collapses equal
// keys into groups. The input slice is reordered in place.
func GroupPairs(pairs []chunk.Pair) []Group {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Key != pairs[j].Key {
			return pairs[i].Key < pairs[j].Key
		}
		return pairs[i].Seq < pairs[j].Seq
	})

	var groups []Group
	for _, p := range pairs {
		if n := len(groups); n > 0 && groups[n-1].Key == p.Key {
			groups[n-1].Values = append(groups[n-1].Values, p.Value)
			continue
		}
		groups = append(groups, Group{Key: p.Key, Values: []string{p.Value}})
	}
	return groups
}
