// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package httpserver

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/vechain/thorpos/event"
	"github.com/vechain/thorpos/eventdb"
	"github.com/vechain/thorpos/log"
	"github.com/vechain/thorpos/thor"
)

const maxLimit = 1000

var logger = log.WithContext("pkg", "httpserver")

// Event is the JSON form of an indexed event.
type Event struct {
	Seq       uint64            `json:"seq"`
	Height    uint64            `json:"height"`
	TxIndex   int               `json:"txIndex"`
	Type      event.Type        `json:"type"`
	Validator *thor.Address     `json:"validator,omitempty"`
	Account   *thor.Address     `json:"account,omitempty"`
	Epoch     uint64            `json:"epoch"`
	Amount    string            `json:"amount,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

func convertEntry(e *eventdb.Entry) *Event {
	out := &Event{
		Seq:     e.Seq,
		Height:  e.Height,
		TxIndex: e.TxIndex,
		Type:    e.Event.Type,
		Epoch:   e.Event.Epoch,
	}
	if !e.Event.Validator.IsZero() {
		v := e.Event.Validator
		out.Validator = &v
	}
	if !e.Event.Account.IsZero() {
		a := e.Event.Account
		out.Account = &a
	}
	if e.Event.Amount != nil {
		out.Amount = e.Event.Amount.Dec()
	}
	if len(e.Event.Attrs) > 0 {
		out.Attrs = make(map[string]string, len(e.Event.Attrs))
		for _, attr := range e.Event.Attrs {
			out.Attrs[attr.Key] = attr.Value
		}
	}
	return out
}

type eventsHandler struct {
	db *eventdb.EventDB
}

func newEventsHandler(db *eventdb.EventDB) http.Handler {
	return &eventsHandler{db}
}

func (h *eventsHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	filter, err := parseFilter(req.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entries, err := h.db.Filter(req.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]*Event, 0, len(entries))
	for _, e := range entries {
		out = append(out, convertEntry(e))
	}
	if err := writeJSON(w, out); err != nil {
		logger.Debug("failed to write events response", "err", err)
	}
}

// writeJSON writes v as the JSON response body.
func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(v)
}

// parseFilter reads type (comma separated), validator, account, from, to,
// order and limit. The limit is capped.
func parseFilter(q url.Values) (*eventdb.Filter, error) {
	filter := &eventdb.Filter{Order: eventdb.ASC, Limit: maxLimit}
	if s := q.Get("type"); s != "" {
		for _, name := range strings.Split(s, ",") {
			t, err := event.ParseType(name)
			if err != nil {
				return nil, err
			}
			filter.Types = append(filter.Types, t)
		}
	}
	for key, dst := range map[string]**thor.Address{"validator": &filter.Validator, "account": &filter.Account} {
		if s := q.Get(key); s != "" {
			addr, err := thor.ParseAddress(s)
			if err != nil {
				return nil, errors.Wrap(err, key)
			}
			*dst = addr
		}
	}
	for key, dst := range map[string]*uint64{"from": &filter.From, "to": &filter.To, "limit": &filter.Limit} {
		if s := q.Get(key); s != "" {
			n, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return nil, errors.Wrap(err, key)
			}
			*dst = n
		}
	}
	if filter.Limit == 0 || filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	switch strings.ToUpper(q.Get("order")) {
	case "", string(eventdb.ASC):
	case string(eventdb.DESC):
		filter.Order = eventdb.DESC
	default:
		return nil, errors.New("order: want asc or desc")
	}
	return filter, nil
}
