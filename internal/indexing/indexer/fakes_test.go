package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vietddude/blockledger/internal/core/domain"
	"github.com/vietddude/blockledger/internal/infra/chain"
)

func hashOf(h uint64) string {
	return fmt.Sprintf("%064X", h)
}

// fakeNode serves synthetic blocks up to head.
type fakeNode struct {
	mu         sync.Mutex
	head       uint64
	headErr    error
	failAt     map[uint64]error
	panicHead  int // number of Head calls that panic
	wrongAt    uint64
	onBlock    func(height uint64)
	headCalls  int
	blockCalls []uint64
}

func newFakeNode(head uint64) *fakeNode {
	return &fakeNode{head: head, failAt: make(map[uint64]error)}
}

func (n *fakeNode) Head(ctx context.Context) (domain.Block, error) {
	n.mu.Lock()
	n.headCalls++
	if n.panicHead > 0 {
		n.panicHead--
		n.mu.Unlock()
		panic("node exploded")
	}
	head, err := n.head, n.headErr
	n.mu.Unlock()

	if err != nil {
		return domain.Block{}, fmt.Errorf("%w: %w", chain.ErrBlockUnavailable, err)
	}
	return domain.Block{Height: head, Hash: hashOf(head)}, nil
}

func (n *fakeNode) Block(ctx context.Context, height uint64) (domain.Block, error) {
	n.mu.Lock()
	n.blockCalls = append(n.blockCalls, height)
	err := n.failAt[height]
	head := n.head
	wrong := n.wrongAt
	hook := n.onBlock
	n.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.Block{}, fmt.Errorf("%w: %w", chain.ErrBlockUnavailable, err)
	}
	if err != nil {
		return domain.Block{}, fmt.Errorf("%w: %w", chain.ErrBlockUnavailable, err)
	}
	if height > head {
		return domain.Block{}, fmt.Errorf("%w: height %d not yet produced", chain.ErrBlockUnavailable, height)
	}
	if hook != nil {
		hook(height)
	}
	if height == wrong {
		return domain.Block{Height: height + 1, Hash: hashOf(height + 1)}, nil
	}
	return domain.Block{Height: height, Hash: hashOf(height)}, nil
}

func (n *fakeNode) setHead(h uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.head = h
}

func (n *fakeNode) fail(height uint64, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failAt[height] = err
}

func (n *fakeNode) clear(height uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.failAt, height)
}

func (n *fakeNode) calls() []uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]uint64(nil), n.blockCalls...)
}

var errDiskFull = errors.New("disk full")

// memLedger keeps records in memory and can be told to fail an append.
type memLedger struct {
	mu      sync.Mutex
	blocks  []domain.Block
	failAt  uint64
	appends int
}

func (l *memLedger) Initialize(context.Context) (uint64, error) {
	return l.tail(), nil
}

func (l *memLedger) Append(_ context.Context, b domain.Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appends++
	if l.failAt != 0 && b.Height == l.failAt {
		return errDiskFull
	}
	l.blocks = append(l.blocks, b)
	return nil
}

func (l *memLedger) Tail(context.Context) (uint64, error) {
	return l.tail(), nil
}

func (l *memLedger) Close() error { return nil }

func (l *memLedger) tail() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.blocks) == 0 {
		return domain.GenesisSentinel
	}
	return l.blocks[len(l.blocks)-1].Height
}

func (l *memLedger) heights() []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]uint64, len(l.blocks))
	for i, b := range l.blocks {
		out[i] = b.Height
	}
	return out
}
