// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package runtime drives the staking engine from the block lifecycle hooks of
// the consensus engine. Blocks execute strictly one at a time; queries read a
// snapshot of the last commit and may run concurrently with block execution.
package runtime

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/vechain/thorpos/accounts"
	"github.com/vechain/thorpos/cache"
	"github.com/vechain/thorpos/event"
	"github.com/vechain/thorpos/eventdb"
	"github.com/vechain/thorpos/genesis"
	"github.com/vechain/thorpos/kv"
	"github.com/vechain/thorpos/log"
	"github.com/vechain/thorpos/staker"
	"github.com/vechain/thorpos/staker/storage"
	"github.com/vechain/thorpos/staker/validatorset"
	"github.com/vechain/thorpos/state"
	"github.com/vechain/thorpos/thor"
)

var logger = log.WithContext("pkg", "runtime")

var (
	metaBucket  = kv.Bucket("m/")
	stateBucket = kv.Bucket("s/")

	genesisKey = []byte("genesis")
	bestKey    = []byte("best")
)

// EventWriter receives the events of every committed block.
type EventWriter interface {
	Write(height uint64, entries []*eventdb.Entry) error
}

// Options tunes caches and wiring. Zero values select defaults.
type Options struct {
	StateCacheMB      int
	SetCacheSize      int
	VerifiedCacheSize int
	Events            EventWriter
}

// best is the last committed block.
type best struct {
	Height uint64
	Root   thor.Bytes32
}

// Runtime executes blocks over a kv store.
type Runtime struct {
	store    kv.Store
	states   kv.Store
	cache    *state.Cache
	setCache *cache.LRU[uint64, *validatorset.Set]
	verified *cache.LRU[thor.Bytes32, thor.Address]
	events   EventWriter
	chainTag byte

	mu   sync.RWMutex
	best best

	block *blockContext
}

// env bundles the services over one state.
type env struct {
	state    *state.State
	accounts *accounts.Accounts
	staker   *staker.Staker
	recorder *event.Recorder
}

func newEnv(st *state.State, setCache *cache.LRU[uint64, *validatorset.Set]) *env {
	var (
		sctx     = storage.NewContext(st, "")
		recorder = &event.Recorder{}
		accts    = accounts.New(sctx.Sub("accounts"))
	)
	return &env{
		state:    st,
		accounts: accts,
		staker:   staker.New(sctx.Sub("staker"), accts, setCache, recorder),
		recorder: recorder,
	}
}

// New opens the chain in store. An empty store is initialized from gen,
// otherwise the committed chain must have been created from the same genesis.
func New(store kv.Store, gen *genesis.Genesis, opts Options) (*Runtime, error) {
	if opts.SetCacheSize <= 0 {
		opts.SetCacheSize = 16
	}
	if opts.VerifiedCacheSize <= 0 {
		opts.VerifiedCacheSize = 4096
	}
	setCache, err := cache.NewLRU[uint64, *validatorset.Set](opts.SetCacheSize)
	if err != nil {
		return nil, err
	}
	verified, err := cache.NewLRU[thor.Bytes32, thor.Address](opts.VerifiedCacheSize)
	if err != nil {
		return nil, err
	}
	r := &Runtime{
		store:    store,
		states:   stateBucket.NewStore(store),
		setCache: setCache,
		verified: verified,
		events:   opts.Events,
		chainTag: gen.ChainTag,
	}
	if opts.StateCacheMB > 0 {
		r.cache = state.NewCache(opts.StateCacheMB)
	}

	genesisID, err := gen.ID()
	if err != nil {
		return nil, err
	}
	meta := metaBucket.NewStore(store)
	stored, err := kv.GetOptional(meta, genesisKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get genesis id")
	}
	if stored == nil {
		if err := r.initGenesis(gen, genesisID); err != nil {
			return nil, errors.Wrap(err, "init genesis")
		}
		return r, nil
	}
	if thor.BytesToBytes32(stored) != genesisID {
		return nil, errors.Errorf("genesis mismatch: store has %s, want %s", thor.BytesToBytes32(stored), genesisID)
	}
	data, err := meta.Get(bestKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get best block")
	}
	if err := rlp.DecodeBytes(data, &r.best); err != nil {
		return nil, errors.Wrap(err, "decode best block")
	}
	logger.Info("chain resumed", "height", r.best.Height, "root", r.best.Root.AbbrevString())
	return r, nil
}

// initGenesis applies the genesis and commits it as height 0.
func (r *Runtime) initGenesis(gen *genesis.Genesis, id thor.Bytes32) error {
	e := newEnv(state.New(r.states, r.cache), r.setCache)
	set, _, err := gen.Apply(e.accounts, e.staker)
	if err != nil {
		return err
	}
	entries := toEntries(e.recorder.Reset(), eventdb.BlockHook)
	if err := r.commit(e.state, 0, func(meta kv.Putter) error {
		return meta.Put(genesisKey, id.Bytes())
	}); err != nil {
		return err
	}
	if err := r.writeEvents(0, entries); err != nil {
		return err
	}
	logger.Info("genesis initialized", "id", id.AbbrevString(), "validators", len(set.Members), "root", r.best.Root.AbbrevString())
	return nil
}

// ChainTag returns the tag transactions must carry.
func (r *Runtime) ChainTag() byte {
	return r.chainTag
}

// Height returns the last committed height.
func (r *Runtime) Height() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.best.Height
}

// Root returns the state root of the last commit.
func (r *Runtime) Root() thor.Bytes32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.best.Root
}

// InitialUpdates returns the voting power of the genesis validator set, as
// handed to the consensus engine before the first block.
func (r *Runtime) InitialUpdates() ([]validatorset.Update, error) {
	reader := r.Reader()
	defer reader.Release()

	set, err := reader.ValidatorSet(0)
	if err != nil {
		return nil, err
	}
	return validatorset.Diff(nil, set), nil
}

// Commit persists the block executed since BeginBlock and returns the new state root.
func (r *Runtime) Commit() (thor.Bytes32, error) {
	b := r.block
	if b == nil || !b.ended {
		return thor.Bytes32{}, errors.New("commit before end block")
	}
	startTime := time.Now()
	if err := r.commit(b.env.state, b.height, nil); err != nil {
		return thor.Bytes32{}, err
	}
	r.block = nil
	metricCommitDuration().Observe(time.Since(startTime).Milliseconds())

	root := r.Root()
	logger.Debug("block committed", "height", b.height, "txs", b.txCount, "events", len(b.entries), "root", root.AbbrevString())
	if err := r.writeEvents(b.height, b.entries); err != nil {
		return thor.Bytes32{}, err
	}
	return root, nil
}

// commit writes the change set of st and the new best block in one batch.
func (r *Runtime) commit(st *state.State, height uint64, extra func(meta kv.Putter) error) error {
	stage := st.Stage()

	r.mu.Lock()
	defer r.mu.Unlock()

	next := best{Height: height, Root: stage.Hash(r.best.Root)}
	data, err := rlp.EncodeToBytes(&next)
	if err != nil {
		return errors.Wrap(err, "encode best block")
	}

	bulk := r.store.Bulk()
	if err := stage.Commit(stateBucket.NewPutter(bulk)); err != nil {
		return err
	}
	meta := metaBucket.NewPutter(bulk)
	if extra != nil {
		if err := extra(meta); err != nil {
			return err
		}
	}
	if err := meta.Put(bestKey, data); err != nil {
		return err
	}
	if err := bulk.Write(); err != nil {
		return errors.Wrap(err, "write block")
	}
	r.best = next
	return nil
}

func (r *Runtime) writeEvents(height uint64, entries []*eventdb.Entry) error {
	if r.events == nil || len(entries) == 0 {
		return nil
	}
	if err := r.events.Write(height, entries); err != nil {
		return errors.Wrap(err, "write events")
	}
	return nil
}

func toEntries(events event.Events, txIndex int) []*eventdb.Entry {
	entries := make([]*eventdb.Entry, 0, len(events))
	for _, e := range events {
		entries = append(entries, &eventdb.Entry{TxIndex: txIndex, Event: e})
	}
	return entries
}
