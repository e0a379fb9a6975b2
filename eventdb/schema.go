// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb

// create a table for committed ledger events
const eventTableSchema = `
create table if not exists event (
	seq integer primary key,
	height integer not null,
	txIndex integer not null,
	type text not null,
	validator blob(20) not null,
	account blob(20) not null,
	epoch integer not null,
	amount text,
	attrs blob
);

CREATE INDEX if not exists heightIndex on event(height);
CREATE INDEX if not exists validatorIndex on event(validator);
CREATE INDEX if not exists accountIndex on event(account);
`
