package multipart

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/rfidrop/internal/utils"
	"golang.org/x/sync/errgroup"
)

// TransferFunc uploads a single part; it must return when ctx is cancelled
type TransferFunc func(ctx context.Context, part PartDescriptor) (PartReceipt, error)

type WorkerPool struct {
	ceiling int
}

func NewWorkerPool(ceiling int) *WorkerPool {
	if ceiling <= 0 {
		ceiling = utils.DefaultConcurrency
	}
	return &WorkerPool{ceiling: ceiling}
}

func (p *WorkerPool) Ceiling() int {
	return p.ceiling
}

type settlement struct {
	part    PartDescriptor
	receipt PartReceipt
	err     error
}

// poolState is owned by the dispatch loop in Run; transfers only talk to it over a channel
type poolState struct {
	pending  []PartDescriptor
	next     int
	active   int
	receipts map[int]PartReceipt
	failure  error
	stopped  bool
}

// Run executes transfer for every part with at most Ceiling transfers in flight.
// The first failure stops new launches and cancels transfers still running. Run
// returns only after every launched transfer has settled. Receipts come back sorted
// by part number.
func (p *WorkerPool) Run(ctx context.Context, parts []PartDescriptor, transfer TransferFunc) ([]PartReceipt, error) {
	stopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	// a failing transfer cancels egCtx on its own; cancel covers failures the
	// dispatch loop detects itself
	eg, egCtx := errgroup.WithContext(stopCtx)

	state := &poolState{
		pending:  parts,
		receipts: make(map[int]PartReceipt, len(parts)),
	}
	settled := make(chan settlement, p.ceiling)

	dispatch := func() {
		for !state.stopped && state.active < p.ceiling && state.next < len(state.pending) {
			part := state.pending[state.next]
			state.next++
			state.active++
			eg.Go(func() error {
				receipt, err := transfer(egCtx, part)
				settled <- settlement{part: part, receipt: receipt, err: err}
				return err
			})
		}
	}

	stop := func(err error) {
		if state.stopped {
			return
		}
		state.stopped = true
		state.failure = err
		cancel()
	}

	dispatch()
	for state.active > 0 {
		var s settlement
		select {
		case s = <-settled:
		case <-ctx.Done():
			stop(ctx.Err())
			s = <-settled
		}
		state.active--
		switch {
		case state.stopped:
			// late settlements after a stop are drained and dropped
		case s.err != nil:
			log.Error().Str("op", "multipart/pool").Err(s.err).Msgf("part %d failed, stopping remaining parts", s.part.Number)
			stop(s.err)
		default:
			if _, seen := state.receipts[s.part.Number]; seen {
				stop(fmt.Errorf("duplicate receipt for part %d", s.part.Number))
				break
			}
			state.receipts[s.part.Number] = s.receipt
		}
		dispatch()
	}
	// every launch has settled; Wait only reaps the group
	_ = eg.Wait()

	if state.failure != nil {
		return nil, state.failure
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	receipts := make([]PartReceipt, 0, len(state.receipts))
	for _, r := range state.receipts {
		receipts = append(receipts, r)
	}
	slices.SortFunc(receipts, func(a, b PartReceipt) int { return a.PartNumber - b.PartNumber })
	return receipts, nil
}
