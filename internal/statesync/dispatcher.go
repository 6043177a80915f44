package statesync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tendermint/ledgersync/types"
)

var (
	// ErrRequestTimeout is returned when a peer does not answer a chunk
	// request in time.
	ErrRequestTimeout = errors.New("chunk request timed out")

	errUnsolicitedResponse = errors.New("unsolicited chunk response")
	errPeerAlreadyBusy     = errors.New("peer is already processing a request")
	errDisconnected        = errors.New("dispatcher disconnected")
)

// A dispatcher matches chunk responses to the requests that asked for them.
// Only one request per peer can be outstanding at a time. Subsequent
// concurrent requests to the same peer fail with errPeerAlreadyBusy.
// NOTE: It is not the responsibility of the dispatcher to verify the chunks.
type dispatcher struct {
	network Network
	// base timeout of every request; long-poll requests add their own
	// long-poll timeout on top
	timeout time.Duration

	mtx sync.Mutex
	// all pending calls that have been dispatched and are awaiting an answer
	calls  map[types.NodeID]chan *ChunkResponse
	closed bool
}

func newDispatcher(network Network, timeout time.Duration) *dispatcher {
	return &dispatcher{
		network: network,
		timeout: timeout,
		calls:   make(map[types.NodeID]chan *ChunkResponse),
	}
}

// Chunk sends req to peer and waits for the response, the request timeout
// or the cancellation of ctx, whichever comes first.
func (d *dispatcher) Chunk(ctx context.Context, peer types.NodeID, req *ChunkRequest) (*ChunkResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, d.timeout+req.LongPollTimeout)
	defer cancel()

	callCh, err := d.dispatch(reqCtx, peer, req)
	if err != nil {
		return nil, err
	}
	defer d.release(peer, callCh)

	select {
	case resp, ok := <-callCh:
		if !ok {
			return nil, errDisconnected
		}
		return resp, nil

	case <-reqCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrRequestTimeout
	}
}

// dispatch registers a call for peer, so long as it's not already busy and
// the dispatcher is still running, and then sends the request.
func (d *dispatcher) dispatch(ctx context.Context, peer types.NodeID, req *ChunkRequest) (chan *ChunkResponse, error) {
	d.mtx.Lock()
	if d.closed {
		d.mtx.Unlock()
		return nil, errDisconnected
	}
	if _, ok := d.calls[peer]; ok {
		d.mtx.Unlock()
		return nil, errPeerAlreadyBusy
	}
	ch := make(chan *ChunkResponse, 1)
	d.calls[peer] = ch
	d.mtx.Unlock()

	if err := d.network.SendChunkRequest(ctx, peer, req); err != nil {
		d.release(peer, ch)
		return nil, err
	}
	return ch, nil
}

// release removes the call of peer if it is still ch.
func (d *dispatcher) release(peer types.NodeID, ch chan *ChunkResponse) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if call, ok := d.calls[peer]; ok && call == ch {
		delete(d.calls, peer)
	}
}

// Respond hands the response of peer to the waiting request. A response
// nobody is waiting for, including one that arrives after its request timed
// out, is rejected with errUnsolicitedResponse.
func (d *dispatcher) Respond(peer types.NodeID, resp *ChunkResponse) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	answerCh, ok := d.calls[peer]
	if !ok {
		return errUnsolicitedResponse
	}
	delete(d.calls, peer)
	// buffered and written at most once since the call was just removed
	answerCh <- resp
	return nil
}

// Close shuts the dispatcher down. Outstanding requests fail with
// errDisconnected.
func (d *dispatcher) Close() {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.closed = true
	for peer, ch := range d.calls {
		delete(d.calls, peer)
		close(ch)
	}
}
