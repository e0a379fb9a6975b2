// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"crypto/ecdsa"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vechain/thorpos/genesis"
	"github.com/vechain/thorpos/runtime"
	"github.com/vechain/thorpos/staker/params"
	"github.com/vechain/thorpos/staker/reward"
	"github.com/vechain/thorpos/staker/slashing"
	"github.com/vechain/thorpos/staker/stakes"
	"github.com/vechain/thorpos/staker/validatorset"
	"github.com/vechain/thorpos/thor"
	"github.com/vechain/thorpos/tx"
)

// Scenario is a scripted run of blocks. Accounts are referred to by name:
// dev0..dev5 are the devnet accounts, any other name gets a key derived from it.
type Scenario struct {
	Fund   map[string]*genesis.Amount `yaml:"fund"`
	Blocks []*Block                   `yaml:"blocks"`
}

// Block describes one block. Idle empty blocks are produced before it, with
// the same absent validators.
type Block struct {
	Idle     uint64      `yaml:"idle"`
	Absent   []string    `yaml:"absent"`
	Evidence []*Evidence `yaml:"evidence"`
	Txs      []*Tx       `yaml:"txs"`
}

type Evidence struct {
	Validator  string            `yaml:"validator"`
	Epoch      uint64            `yaml:"epoch"`
	Infraction params.Infraction `yaml:"infraction"`
}

// Tx is a staking transaction. Only the fields of its kind are read.
type Tx struct {
	From       string          `yaml:"from"`
	Kind       string          `yaml:"kind"`
	Validator  string          `yaml:"validator"`
	To         string          `yaml:"to"` // redelegation target
	Amount     *genesis.Amount `yaml:"amount"`
	Commission *stakes.Rate    `yaml:"commission"`
	MaxChange  *stakes.Rate    `yaml:"maxChange"`
	Key        string          `yaml:"key"` // account name or hex consensus key
	Name       string          `yaml:"name"`
	Value      string          `yaml:"value"`
}

func loadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseScenario(data)
}

func parseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, errors.Wrap(err, "decode scenario")
	}
	for i, b := range sc.Blocks {
		if b == nil {
			return nil, errors.Errorf("block %d: empty", i)
		}
		for j, t := range b.Txs {
			if t.From == "" {
				return nil, errors.Errorf("block %d tx %d: sender missing", i, j)
			}
			if _, err := tx.ParseKind(t.Kind); err != nil {
				return nil, errors.Wrapf(err, "block %d tx %d", i, j)
			}
		}
	}
	return &sc, nil
}

// Len returns the number of blocks the scenario produces.
func (sc *Scenario) Len() uint64 {
	var n uint64
	for _, b := range sc.Blocks {
		n += b.Idle + 1
	}
	return n
}

// Apply funds the scenario accounts in gen.
func (sc *Scenario) Apply(gen *genesis.Genesis, keys *keyring) error {
	names := make([]string, 0, len(sc.Fund))
	for name := range sc.Fund {
		names = append(names, name)
	}
	// map order must not leak into the genesis id
	slices.Sort(names)
	for _, name := range names {
		addr, err := keys.address(name)
		if err != nil {
			return err
		}
		funded := false
		for i := range gen.Accounts {
			if gen.Accounts[i].Address == addr {
				gen.Accounts[i].Balance = sc.Fund[name]
				funded = true
			}
		}
		if !funded {
			gen.Accounts = append(gen.Accounts, genesis.Account{Address: addr, Balance: sc.Fund[name]})
		}
	}
	return gen.Validate()
}

// keyring resolves account names to keys.
type keyring struct {
	keys map[string]*ecdsa.PrivateKey
}

func newKeyring() *keyring {
	k := &keyring{keys: make(map[string]*ecdsa.PrivateKey)}
	for i, a := range genesis.DevAccounts() {
		k.keys["dev"+strconv.Itoa(i)] = a.PrivateKey
	}
	return k
}

func (k *keyring) key(name string) (*ecdsa.PrivateKey, error) {
	if pk, ok := k.keys[name]; ok {
		return pk, nil
	}
	if name == "" {
		return nil, errors.New("empty account name")
	}
	seed := thor.Blake2b([]byte(name))
	pk, err := crypto.ToECDSA(seed.Bytes())
	if err != nil {
		return nil, errors.Wrapf(err, "derive key of %q", name)
	}
	k.keys[name] = pk
	return pk, nil
}

func (k *keyring) address(name string) (thor.Address, error) {
	pk, err := k.key(name)
	if err != nil {
		return thor.Address{}, err
	}
	return thor.Address(crypto.PubkeyToAddress(pk.PublicKey)), nil
}

func (k *keyring) consensusKey(s string) ([]byte, error) {
	if strings.HasPrefix(s, "0x") {
		return hexutil.Decode(s)
	}
	pk, err := k.key(s)
	if err != nil {
		return nil, err
	}
	return crypto.CompressPubkey(&pk.PublicKey), nil
}

// BlockResult is the outcome of one replayed block.
type BlockResult struct {
	Height  uint64
	Results []*runtime.Result
	Updates []validatorset.Update
	Root    thor.Bytes32
}

// player replays a scenario against a runtime.
type player struct {
	rt      *runtime.Runtime
	keys    *keyring
	nonces  map[thor.Address]uint64
	onBlock func(*BlockResult)
}

func newPlayer(rt *runtime.Runtime, keys *keyring) *player {
	return &player{
		rt:     rt,
		keys:   keys,
		nonces: make(map[thor.Address]uint64),
	}
}

func (p *player) play(ctx context.Context, sc *Scenario) error {
	for i, b := range sc.Blocks {
		for k := uint64(0); k < b.Idle; k++ {
			if err := p.block(ctx, &Block{Absent: b.Absent}); err != nil {
				return errors.Wrapf(err, "block %d", i)
			}
		}
		if err := p.block(ctx, b); err != nil {
			return errors.Wrapf(err, "block %d", i)
		}
	}
	return nil
}

func (p *player) block(ctx context.Context, b *Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	height := p.rt.Height() + 1

	votes, err := p.votes(height, b.Absent)
	if err != nil {
		return err
	}
	evidence := make([]*slashing.Evidence, 0, len(b.Evidence))
	for _, ev := range b.Evidence {
		addr, err := p.keys.address(ev.Validator)
		if err != nil {
			return err
		}
		evidence = append(evidence, &slashing.Evidence{
			Validator:  addr,
			Epoch:      ev.Epoch,
			Infraction: ev.Infraction,
			Height:     height,
		})
	}

	raws := make([][]byte, 0, len(b.Txs))
	for _, t := range b.Txs {
		raw, err := p.sign(t)
		if err != nil {
			return err
		}
		raws = append(raws, raw)
	}
	if err := p.rt.Prepare(ctx, raws); err != nil {
		return err
	}

	if err := p.rt.BeginBlock(height, votes, evidence); err != nil {
		return err
	}
	res := &BlockResult{Height: height}
	for _, raw := range raws {
		r, err := p.rt.DeliverTx(raw)
		if err != nil {
			return err
		}
		res.Results = append(res.Results, r)
	}
	if res.Updates, err = p.rt.EndBlock(height); err != nil {
		return err
	}
	if res.Root, err = p.rt.Commit(); err != nil {
		return err
	}
	if p.onBlock != nil {
		p.onBlock(res)
	}
	return nil
}

// votes are the commit votes of the previous block, signed by every member
// of its validator set except the absent ones.
func (p *player) votes(height uint64, absent []string) ([]reward.Vote, error) {
	if height <= 1 {
		return nil, nil
	}
	skip := make(map[thor.Address]bool, len(absent))
	for _, name := range absent {
		addr, err := p.keys.address(name)
		if err != nil {
			return nil, err
		}
		skip[addr] = true
	}

	rd := p.rt.Reader()
	defer rd.Release()

	epoch, err := rd.Epoch()
	if err != nil {
		return nil, err
	}
	set, err := rd.ValidatorSet(epoch)
	if err != nil {
		return nil, err
	}
	if set == nil {
		if set, err = rd.LatestValidatorSet(); err != nil {
			return nil, err
		}
	}
	if set == nil {
		return nil, nil
	}
	votes := make([]reward.Vote, 0, len(set.Members))
	for _, m := range set.Members {
		votes = append(votes, reward.Vote{Validator: m.Address, Signed: !skip[m.Address]})
	}
	return votes, nil
}

func (p *player) nonce(addr thor.Address) (uint64, error) {
	if n, ok := p.nonces[addr]; ok {
		return n, nil
	}
	rd := p.rt.Reader()
	defer rd.Release()
	return rd.Nonce(addr)
}

// sign builds and signs t with the next nonce of its sender.
func (p *player) sign(t *Tx) ([]byte, error) {
	payload, err := p.payload(t)
	if err != nil {
		return nil, err
	}
	pk, err := p.keys.key(t.From)
	if err != nil {
		return nil, err
	}
	from := thor.Address(crypto.PubkeyToAddress(pk.PublicKey))
	nonce, err := p.nonce(from)
	if err != nil {
		return nil, err
	}
	trx, err := new(tx.Builder).ChainTag(p.rt.ChainTag()).Nonce(nonce).Payload(payload).Build()
	if err != nil {
		return nil, err
	}
	if trx, err = tx.Sign(trx, pk); err != nil {
		return nil, err
	}
	raw, err := trx.Encode()
	if err != nil {
		return nil, err
	}
	p.nonces[from] = nonce + 1
	return raw, nil
}

func (p *player) payload(t *Tx) (tx.Payload, error) {
	kind, err := tx.ParseKind(t.Kind)
	if err != nil {
		return nil, err
	}
	var validator thor.Address
	if t.Validator != "" {
		if validator, err = p.keys.address(t.Validator); err != nil {
			return nil, err
		}
	}

	switch kind {
	case tx.KindRegisterValidator:
		name := t.Key
		if name == "" {
			name = t.From
		}
		key, err := p.keys.consensusKey(name)
		if err != nil {
			return nil, err
		}
		return &tx.RegisterValidator{
			ConsensusKey:        key,
			Commission:          rateOr(t.Commission),
			MaxCommissionChange: rateOr(t.MaxChange),
		}, nil
	case tx.KindBond:
		return &tx.Bond{Validator: validator, Amount: t.Amount.Int()}, nil
	case tx.KindUnbond:
		return &tx.Unbond{Validator: validator, Amount: t.Amount.Int()}, nil
	case tx.KindWithdraw:
		return &tx.Withdraw{Validator: validator}, nil
	case tx.KindChangeCommission:
		return &tx.ChangeCommission{Rate: rateOr(t.Commission)}, nil
	case tx.KindChangeConsensusKey:
		key, err := p.keys.consensusKey(t.Key)
		if err != nil {
			return nil, err
		}
		return &tx.ChangeConsensusKey{Key: key}, nil
	case tx.KindDeactivateValidator:
		return &tx.DeactivateValidator{}, nil
	case tx.KindReactivateValidator:
		return &tx.ReactivateValidator{}, nil
	case tx.KindSetParameter:
		return &tx.SetParameter{Name: t.Name, Value: t.Value}, nil
	case tx.KindRedelegate:
		to, err := p.keys.address(t.To)
		if err != nil {
			return nil, err
		}
		return &tx.Redelegate{From: validator, To: to, Amount: t.Amount.Int()}, nil
	}
	return nil, errors.Errorf("unsupported tx kind %s", kind)
}

func rateOr(r *stakes.Rate) stakes.Rate {
	if r == nil {
		return stakes.ZeroRate()
	}
	return *r
}
