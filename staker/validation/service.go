// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validation

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/vechain/thorpos/log"
	"github.com/vechain/thorpos/staker/params"
	"github.com/vechain/thorpos/staker/reverts"
	"github.com/vechain/thorpos/staker/stakes"
	"github.com/vechain/thorpos/staker/storage"
	"github.com/vechain/thorpos/thor"
)

var logger = log.WithContext("pkg", "validation")

// MaxConsensusKeyLength bounds the opaque consensus key bytes.
const MaxConsensusKeyLength = 128

type Service struct {
	validators *storage.Mapping[thor.Address, *Validator]
	keys       *storage.Mapping[thor.Bytes32, thor.Address]
	registry   *storage.Raw[[]thor.Address]
}

func New(sctx *storage.Context) *Service {
	return &Service{
		validators: storage.NewMapping[thor.Address, *Validator](sctx, "validators"),
		keys:       storage.NewMapping[thor.Bytes32, thor.Address](sctx, "keys"),
		registry:   storage.NewRaw[[]thor.Address](sctx, "registry"),
	}
}

// Register creates an inactive validator owned by addr.
func (s *Service) Register(
	addr thor.Address,
	key []byte,
	commission stakes.Rate,
	maxChange stakes.Rate,
	epoch uint64,
	p *params.Params,
) error {
	v, err := s.Get(addr)
	if err != nil {
		return err
	}
	if !v.IsEmpty() {
		return reverts.Validation("validator %s already registered", addr)
	}
	if !commission.Within(p.MinCommission, p.MaxCommission) {
		return reverts.Validation("commission %s outside [%s, %s]", commission, p.MinCommission, p.MaxCommission)
	}
	if !maxChange.Within(stakes.ZeroRate(), stakes.OneRate()) {
		return reverts.Validation("max commission change %s outside [0, 1]", maxChange)
	}
	if err := s.reserveKey(addr, key); err != nil {
		return err
	}

	registry, err := s.All()
	if err != nil {
		return err
	}
	i, _ := slices.BinarySearchFunc(registry, addr, thor.Address.Compare)
	if err := s.registry.Set(slices.Insert(registry, i, addr)); err != nil {
		return err
	}
	logger.Debug("validator registered", "validator", addr, "epoch", epoch)
	return s.Update(addr, newValidator(key, commission, maxChange, epoch))
}

// Get returns the validator at addr. An unregistered address yields an empty validator.
func (s *Service) Get(addr thor.Address) (*Validator, error) {
	v, err := s.validators.Get(addr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get validator")
	}
	return v, nil
}

// GetExisting returns the validator at addr, or an InvalidValidator revert when unregistered.
func (s *Service) GetExisting(addr thor.Address) (*Validator, error) {
	v, err := s.Get(addr)
	if err != nil {
		return nil, err
	}
	if v.IsEmpty() {
		return nil, reverts.InvalidValidator("validator %s not registered", addr)
	}
	return v, nil
}

func (s *Service) Update(addr thor.Address, v *Validator) error {
	if err := s.validators.Set(addr, v); err != nil {
		return errors.Wrap(err, "failed to set validator")
	}
	return nil
}

// All returns every registered validator address in ascending order.
func (s *Service) All() ([]thor.Address, error) {
	registry, err := s.registry.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get validator registry")
	}
	return registry, nil
}

// ChangeCommission schedules a commission rate effective at the given epoch,
// replacing any change still pending.
func (s *Service) ChangeCommission(addr thor.Address, rate stakes.Rate, current, effective uint64, p *params.Params) error {
	v, err := s.GetExisting(addr)
	if err != nil {
		return err
	}
	if !rate.Within(p.MinCommission, p.MaxCommission) {
		return reverts.Validation("commission %s outside [%s, %s]", rate, p.MinCommission, p.MaxCommission)
	}
	v.promoteCommission(current)
	if diff := rate.AbsDiff(v.body.Commission); diff.GT(v.body.MaxCommissionChange) {
		return reverts.Validation("commission change %s exceeds max change %s", diff, v.body.MaxCommissionChange)
	}
	v.body.PendingCommission = &CommissionChange{Rate: rate, Epoch: effective}
	return s.Update(addr, v)
}

// ChangeConsensusKey queues key to replace the current consensus key at the next set derivation.
func (s *Service) ChangeConsensusKey(addr thor.Address, key []byte) error {
	v, err := s.GetExisting(addr)
	if err != nil {
		return err
	}
	if err := s.reserveKey(addr, key); err != nil {
		return err
	}
	v.body.PendingKey = slices.Clone(key)
	return s.Update(addr, v)
}

// SetDeactivated sets the operator controlled exit flag.
func (s *Service) SetDeactivated(addr thor.Address, deactivated bool) error {
	v, err := s.GetExisting(addr)
	if err != nil {
		return err
	}
	if v.body.Deactivated == deactivated {
		if deactivated {
			return reverts.Validation("validator %s already deactivated", addr)
		}
		return reverts.Validation("validator %s not deactivated", addr)
	}
	v.body.Deactivated = deactivated
	return s.Update(addr, v)
}

// Jail jails the validator until the given epoch. An existing longer term is kept.
func (s *Service) Jail(addr thor.Address, until uint64) error {
	v, err := s.GetExisting(addr)
	if err != nil {
		return err
	}
	v.jail(until)
	logger.Debug("validator jailed", "validator", addr, "until", v.body.JailedUntil)
	return s.Update(addr, v)
}

// SetActive records whether addr was selected into the set. It reports whether the status changed.
func (s *Service) SetActive(addr thor.Address, active bool) (bool, error) {
	v, err := s.GetExisting(addr)
	if err != nil {
		return false, err
	}
	if !v.setActive(active) {
		return false, nil
	}
	return true, s.Update(addr, v)
}

// Transition runs the boundary bookkeeping for the new epoch: it releases
// validators whose jail term ended, activates matured commission changes and
// rotates pending consensus keys. Released addresses are returned in order.
func (s *Service) Transition(epoch uint64) (released []thor.Address, err error) {
	registry, err := s.All()
	if err != nil {
		return nil, err
	}
	for _, addr := range registry {
		v, err := s.Get(addr)
		if err != nil {
			return nil, err
		}
		changed := false
		if v.release(epoch) {
			released = append(released, addr)
			changed = true
		}
		if v.promoteCommission(epoch) {
			changed = true
		}
		if _, ok := v.promoteKey(); ok {
			changed = true
		}
		if changed {
			if err := s.Update(addr, v); err != nil {
				return nil, err
			}
		}
	}
	if len(released) > 0 {
		logger.Debug("validators released", "epoch", epoch, "count", len(released))
	}
	return released, nil
}

// Owner returns the validator owning key, zero if none.
func (s *Service) Owner(key []byte) (thor.Address, error) {
	owner, err := s.keys.Get(thor.Blake2b(key))
	if err != nil {
		return thor.Address{}, errors.Wrap(err, "failed to get key owner")
	}
	return owner, nil
}

// reserveKey binds key to addr. Keys are never released, so a retired key cannot be reused.
func (s *Service) reserveKey(addr thor.Address, key []byte) error {
	if len(key) == 0 || len(key) > MaxConsensusKeyLength {
		return reverts.Validation("consensus key length %d outside [1, %d]", len(key), MaxConsensusKeyLength)
	}
	owner, err := s.Owner(key)
	if err != nil {
		return err
	}
	if !owner.IsZero() {
		return reverts.Validation("consensus key already used by %s", owner)
	}
	if err := s.keys.Set(thor.Blake2b(key), addr); err != nil {
		return errors.Wrap(err, "failed to set key owner")
	}
	return nil
}
