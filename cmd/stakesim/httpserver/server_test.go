// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/thorpos/event"
	"github.com/vechain/thorpos/eventdb"
	"github.com/vechain/thorpos/thor"
)

var (
	valA  = thor.BytesToAddress([]byte("validator-a"))
	alice = thor.BytesToAddress([]byte("alice"))
)

func newEventDB(t *testing.T) *eventdb.EventDB {
	db, err := eventdb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for h := uint64(1); h <= 5; h++ {
		require.NoError(t, db.Write(h, []*eventdb.Entry{
			{TxIndex: 0, Event: &event.Event{Type: event.TypeBonded, Validator: valA, Account: alice, Epoch: 1, Amount: uint256.NewInt(h * 10)}},
			{TxIndex: eventdb.BlockHook, Event: &event.Event{Type: event.TypeSetPublished, Epoch: 1, Attrs: []event.Attr{{Key: "size", Value: "4"}}}},
		}))
	}
	return db
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
		check   func(*testing.T, *eventdb.Filter)
	}{
		{"defaults", "", false, func(t *testing.T, f *eventdb.Filter) {
			assert.Equal(t, eventdb.ASC, f.Order)
			assert.Equal(t, uint64(maxLimit), f.Limit)
			assert.Nil(t, f.Validator)
		}},
		{"types", "type=bonded,slashed", false, func(t *testing.T, f *eventdb.Filter) {
			assert.Equal(t, []event.Type{event.TypeBonded, event.TypeSlashed}, f.Types)
		}},
		{"range and order", "from=2&to=4&order=desc&limit=7", false, func(t *testing.T, f *eventdb.Filter) {
			assert.Equal(t, uint64(2), f.From)
			assert.Equal(t, uint64(4), f.To)
			assert.Equal(t, eventdb.DESC, f.Order)
			assert.Equal(t, uint64(7), f.Limit)
		}},
		{"limit capped", "limit=100000", false, func(t *testing.T, f *eventdb.Filter) {
			assert.Equal(t, uint64(maxLimit), f.Limit)
		}},
		{"validator", "validator=" + valA.String(), false, func(t *testing.T, f *eventdb.Filter) {
			require.NotNil(t, f.Validator)
			assert.Equal(t, valA, *f.Validator)
		}},
		{"bad type", "type=minted", true, nil},
		{"bad address", "account=0x12", true, nil},
		{"bad height", "from=-1", true, nil},
		{"bad order", "order=random", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			f, err := parseFilter(q)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, f)
		})
	}
}

func TestEventsHandler(t *testing.T) {
	h := newEventsHandler(newEventDB(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events?type=bonded&order=desc&limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []*Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, uint64(5), got[0].Height)
	assert.Equal(t, "50", got[0].Amount)
	assert.Equal(t, event.TypeBonded, got[0].Type)
	require.NotNil(t, got[0].Validator)
	assert.Equal(t, valA, *got[0].Validator)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events?type=set-published&from=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	got = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 3)
	assert.Equal(t, eventdb.BlockHook, got[0].TxIndex)
	assert.Nil(t, got[0].Validator)
	assert.Equal(t, "4", got[0].Attrs["size"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events?order=sideways", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// brokenWriter fails every body write, like a client that went away.
type brokenWriter struct {
	header http.Header
	code   int
}

func (w *brokenWriter) Header() http.Header {
	if w.header == nil {
		w.header = make(http.Header)
	}
	return w.header
}

func (w *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }
func (w *brokenWriter) WriteHeader(code int)      { w.code = code }

func TestWriteFailure(t *testing.T) {
	w := &brokenWriter{}
	assert.Error(t, writeJSON(w, []int{1}))
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	h := newEventsHandler(newEventDB(t))
	w = &brokenWriter{}
	assert.NotPanics(t, func() {
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events?type=bonded", nil))
	})
	assert.Equal(t, 0, w.code, "status is left to the first write")
}

func TestStartServer(t *testing.T) {
	base, stop, err := StartServer("127.0.0.1:0", newEventDB(t))
	require.NoError(t, err)
	defer stop()

	resp, err := http.Get(base + "/events?limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got []*Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Len(t, got, 1)
}
