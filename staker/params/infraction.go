// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package params

import "github.com/pkg/errors"

// Infraction is a kind of slashable misbehavior.
type Infraction uint8

const (
	DuplicateVote Infraction = iota + 1
	LightClientAttack
	Downtime
)

var infractionNames = map[Infraction]string{
	DuplicateVote:     "duplicate-vote",
	LightClientAttack: "light-client-attack",
	Downtime:          "downtime",
}

func (i Infraction) String() string {
	if name, ok := infractionNames[i]; ok {
		return name
	}
	return "unknown"
}

// ParseInfraction parses the dashed infraction name.
func ParseInfraction(s string) (Infraction, error) {
	for inf, name := range infractionNames {
		if name == s {
			return inf, nil
		}
	}
	return 0, errors.Errorf("unknown infraction %q", s)
}

func (i Infraction) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Infraction) UnmarshalText(text []byte) error {
	parsed, err := ParseInfraction(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
