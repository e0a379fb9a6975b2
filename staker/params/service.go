// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package params

import (
	"github.com/pkg/errors"

	"github.com/vechain/thorpos/staker/storage"
)

// Update is a governance request to set a parameter.
type Update struct {
	Name  string
	Value string
}

// Service stores the active parameters and the updates queued for the next epoch.
type Service struct {
	current *storage.Raw[*Params]
	pending *storage.Raw[[]Update]

	cached *Params
}

func New(sctx *storage.Context) *Service {
	return &Service{
		current: storage.NewRaw[*Params](sctx, "current"),
		pending: storage.NewRaw[[]Update](sctx, "pending"),
	}
}

// Init stores the genesis parameters.
func (s *Service) Init(p *Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.cached = nil
	return s.current.Set(p)
}

// Get returns the active parameters. The result must not be modified.
func (s *Service) Get() (*Params, error) {
	if s.cached != nil {
		return s.cached, nil
	}
	p, err := s.current.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get params")
	}
	if p.EpochLength == 0 {
		return nil, errNotInitialized
	}
	s.cached = p
	return p, nil
}

// Pending returns the queued updates in submission order.
func (s *Service) Pending() ([]Update, error) {
	updates, err := s.pending.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get pending params")
	}
	return updates, nil
}

// Queue validates the update on top of the already queued ones and appends it.
func (s *Service) Queue(name, value string) error {
	current, err := s.Get()
	if err != nil {
		return err
	}
	updates, err := s.Pending()
	if err != nil {
		return err
	}
	updates = append(updates, Update{name, value})
	if _, err := apply(current, updates); err != nil {
		return err
	}
	return s.pending.Set(updates)
}

// ApplyPending activates the queued updates. It runs at epoch boundaries only.
func (s *Service) ApplyPending() ([]Update, error) {
	updates, err := s.Pending()
	if err != nil || len(updates) == 0 {
		return nil, err
	}
	current, err := s.Get()
	if err != nil {
		return nil, err
	}
	next, err := apply(current, updates)
	if err != nil {
		// queue entries were validated on submission
		return nil, errors.Wrap(err, "apply queued params")
	}
	s.cached = nil
	if err := s.current.Set(next); err != nil {
		return nil, err
	}
	if err := s.pending.Set(nil); err != nil {
		return nil, err
	}
	return updates, nil
}

func apply(p *Params, updates []Update) (*Params, error) {
	var err error
	for _, u := range updates {
		if p, err = p.With(u.Name, u.Value); err != nil {
			return nil, err
		}
	}
	return p, nil
}
