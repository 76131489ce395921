package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	t      *testing.T
	router *mux.Router
	srv    *httptest.Server

	mu    sync.Mutex
	calls map[string]int
	posts []map[string]any
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{t: t, router: mux.NewRouter(), calls: map[string]int{}}
	f.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u, p, ok := r.BasicAuth(); !ok || u != "agent" || p != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			f.mu.Lock()
			f.calls[r.URL.Path]++
			f.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	f.srv = httptest.NewServer(f.router)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeServer) options(opts map[string]any) {
	f.router.HandleFunc("/check/{userId}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, opts)
	}).Methods(http.MethodGet)
}

// emptyPages answers every pull that has no dedicated handler.
func (f *fakeServer) emptyPages() {
	f.router.HandleFunc("/get/{type}/{token}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": []any{}})
	}).Methods(http.MethodGet)
}

func (f *fakeServer) acceptPosts(answer func(body map[string]any) map[string]any) {
	f.router.HandleFunc("/post/{token}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.posts = append(f.posts, body)
		f.mu.Unlock()
		writeJSON(w, answer(body))
	}).Methods(http.MethodPost)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", common.ContentTypeJSON)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestHTTP(baseURL string) *HTTP {
	return NewHTTP(HTTPConfig{
		BaseURL:            baseURL,
		UserID:             "u1",
		Username:           "agent",
		Password:           "secret",
		Timeout:            2 * time.Second,
		Retry:              RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		ContentParallelism: 2,
	}, logging.Discard())
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("event stream did not close")
		}
	}
}

func last(events []Event) Event { return events[len(events)-1] }

func records(events []Event, dt models.DataType) []models.Row {
	var out []models.Row
	for _, ev := range events {
		if ev.Kind == EventRecords && ev.DataType == dt {
			out = append(out, ev.Records...)
		}
	}
	return out
}

func pulled(events []Event) []models.DataType {
	var out []models.DataType
	for _, ev := range events {
		if ev.Kind == EventPulled {
			out = append(out, ev.DataType)
		}
	}
	return out
}

func TestHTTP_PaginationStopsAtRepeatedCursor(t *testing.T) {
	f := newFakeServer(t)
	f.options(map[string]any{"token": "tok", "read": true})
	pages := map[string]map[string]any{
		"tok":         {"data": []any{map[string]any{"guid": "g1"}}, "more": 50},
		"tok-more50":  {"data": []any{map[string]any{"guid": "g2"}}, "more": 120},
		"tok-more120": {"data": []any{map[string]any{"guid": "g3"}}, "more": 120},
	}
	f.router.HandleFunc("/get/goods/{token}", func(w http.ResponseWriter, r *http.Request) {
		p, ok := pages[mux.Vars(r)["token"]]
		if !ok {
			t.Errorf("unexpected continuation %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, p)
	})
	f.emptyPages()

	events := collect(t, newTestHTTP(f.srv.URL).Run(context.Background(), Request{Mode: ModeFull}))
	require.Equal(t, EventFinished, last(events).Kind, last(events).Err)

	assert.Len(t, records(events, models.TypeGoods), 3)
	assert.Equal(t, 1, f.count("/get/goods/tok"))
	assert.Equal(t, 1, f.count("/get/goods/tok-more50"))
	assert.Equal(t, 1, f.count("/get/goods/tok-more120"))
	assert.NotContains(t, pulled(events), models.TypeGoods, "an incomplete pull is not reported")
	assert.Contains(t, pulled(events), models.TypeClients)
}

func TestHTTP_TokenRequestFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{"read denied", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"token": "tok", "read": false})
		}, common.ErrAccessDenied},
		{"empty token", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"token": "", "read": true})
		}, common.ErrAccessDenied},
		{"forbidden", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}, common.ErrUnauthorized},
		{"redirect", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/login", http.StatusFound)
		}, common.ErrUnauthorized},
		{"malformed", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}, common.ErrProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeServer(t)
			f.router.HandleFunc("/check/{userId}", tt.handler)
			f.emptyPages()

			events := collect(t, newTestHTTP(f.srv.URL).Run(context.Background(), Request{Mode: ModeFull}))
			require.Len(t, events, 1)
			assert.Equal(t, EventFailed, events[0].Kind)
			assert.ErrorIs(t, events[0].Err, tt.want)
			assert.Zero(t, f.count("/get/goods/tok"))
		})
	}
}

func TestHTTP_BadCredentials(t *testing.T) {
	f := newFakeServer(t)
	f.options(map[string]any{"token": "tok", "read": true})

	tr := newTestHTTP(f.srv.URL)
	tr.api.password = "wrong"
	events := collect(t, tr.Run(context.Background(), Request{Mode: ModeFull}))
	require.Equal(t, EventFailed, last(events).Kind)
	assert.Equal(t, common.CodeAuth, common.Classify(last(events).Err))
}

func TestHTTP_RetriesGETOnServerError(t *testing.T) {
	f := newFakeServer(t)
	var n atomic.Int32
	f.router.HandleFunc("/check/{userId}", func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]any{"token": "tok", "read": true})
	})
	f.emptyPages()

	events := collect(t, newTestHTTP(f.srv.URL).Run(context.Background(), Request{Mode: ModeFull}))
	require.Equal(t, EventFinished, last(events).Kind, last(events).Err)
	assert.Equal(t, int32(3), n.Load())
}

func TestHTTP_RetriesExhausted(t *testing.T) {
	f := newFakeServer(t)
	f.router.HandleFunc("/check/{userId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	events := collect(t, newTestHTTP(f.srv.URL).Run(context.Background(), Request{Mode: ModeFull}))
	require.Equal(t, EventFailed, last(events).Kind)
	assert.ErrorIs(t, last(events).Err, common.ErrServer)
	assert.Equal(t, 3, f.count("/check/u1"), "one attempt plus two retries")
}

func TestHTTP_ConnectivityFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	events := collect(t, newTestHTTP(url).Run(context.Background(), Request{Mode: ModeFull}))
	require.Equal(t, EventFailed, last(events).Kind)
	assert.Equal(t, common.CodeConnectivity, common.Classify(last(events).Err))
}

func TestHTTP_PostIsNotRetried(t *testing.T) {
	f := newFakeServer(t)
	f.options(map[string]any{"token": "tok", "read": true, "write": true})
	f.router.HandleFunc("/post/{token}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	req := Request{Mode: ModeSendOnly, Outbox: models.Outbox{Orders: []models.Order{{GUID: "o1"}, {GUID: "o2"}}}}
	events := collect(t, newTestHTTP(f.srv.URL).Run(context.Background(), req))
	require.Equal(t, EventFailed, last(events).Kind)
	assert.ErrorIs(t, last(events).Err, common.ErrServer)
	assert.Equal(t, 1, f.count("/post/tok"))
}

func TestHTTP_SendOnlyPushesAndPullsDiff(t *testing.T) {
	f := newFakeServer(t)
	f.options(map[string]any{
		"token": "tok", "read": true, "write": true, "differentialUpdates": true,
		"locations": true, "lastLocationTime": int64(1777622400000),
	})
	f.acceptPosts(func(body map[string]any) map[string]any {
		if body["type"] == "cash" {
			return map[string]any{"result": "error", "status": "rejected", "error": "closed period"}
		}
		return map[string]any{"result": "ok", "status": "accepted"}
	})
	f.router.HandleFunc("/get/diff/{token}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": []any{
			map[string]any{"type": "goods", "guid": "g1"},
			map[string]any{"type": "clients", "guid": "c1"},
		}})
	})

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	req := Request{Mode: ModeSendOnly, Outbox: models.Outbox{
		Orders:    []models.Order{{GUID: "o1", Lines: []models.OrderLine{{GoodsGUID: "g1", Quantity: 1}}}},
		Cash:      []models.CashDocument{{GUID: "k1", Sum: 5}},
		Locations: []models.Location{{Time: base}, {Time: base.Add(time.Minute)}},
		PushToken: "push-1",
	}}
	events := collect(t, newTestHTTP(f.srv.URL).Run(context.Background(), req))
	require.Equal(t, EventFinished, last(events).Kind, last(events).Err)

	var results []models.PendingResult
	var aux []models.AuxResult
	for _, ev := range events {
		switch ev.Kind {
		case EventResult:
			results = append(results, ev.Result)
		case EventAuxResult:
			aux = append(aux, ev.Aux)
		}
	}
	require.Len(t, results, 2)
	assert.Equal(t, models.PendingResult{Kind: models.KindOrder, GUID: "o1", Result: "ok", Status: "accepted"}, results[0])
	assert.Equal(t, "closed period", results[1].Error)
	assert.False(t, results[1].OK())

	require.Len(t, aux, 2)
	assert.Equal(t, models.AuxLocations, aux[0].Kind)
	assert.Equal(t, base.Add(time.Minute), aux[0].Until)
	assert.Equal(t, "push-1", aux[1].Value)

	diff := records(events, models.TypeDiff)
	require.Len(t, diff, 2)
	assert.Equal(t, models.TypeGoods, diff[0].DataType())
	assert.Equal(t, models.TypeClients, diff[1].DataType())

	require.Len(t, f.posts, 4)
	assert.Equal(t, "order", f.posts[0]["type"])
	assert.Len(t, f.posts[0]["items"], 1)
	locs := f.posts[2]["data"].([]any)
	assert.Len(t, locs, 1, "pings the server already has are not resent")
}

func TestHTTP_WriteDisabledSkipsDocuments(t *testing.T) {
	f := newFakeServer(t)
	f.options(map[string]any{"token": "tok", "read": true, "write": false, "differentialUpdates": true})
	f.acceptPosts(func(map[string]any) map[string]any { return map[string]any{"result": "ok"} })

	req := Request{Mode: ModeSendOnly, Outbox: models.Outbox{Orders: []models.Order{{GUID: "o1"}}}}
	events := collect(t, newTestHTTP(f.srv.URL).Run(context.Background(), req))
	require.Equal(t, EventFinished, last(events).Kind)
	assert.Zero(t, f.count("/post/tok"))
	assert.Zero(t, f.count("/get/diff/tok"))
}

func TestHTTP_DebtContentFetchedLazily(t *testing.T) {
	f := newFakeServer(t)
	f.options(map[string]any{"token": "tok", "read": true})
	f.router.HandleFunc("/get/debts/{token}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": []any{
			map[string]any{"client_guid": "c1", "doc_id": "", "sum": 10},
			map[string]any{"client_guid": "c1", "doc_id": "D1", "doc_guid": "d1", "doc_type": "invoice", "has_content": true},
			map[string]any{"client_guid": "c1", "doc_id": "D2", "doc_guid": "d2", "doc_type": "invoice", "has_content": true},
		}})
	})
	f.router.HandleFunc("/document/{type}/{guid}/{token}", func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["guid"] == "d2" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"content": "<p>invoice</p>"})
	})
	f.emptyPages()

	events := collect(t, newTestHTTP(f.srv.URL).Run(context.Background(), Request{Mode: ModeFull}))
	require.Equal(t, EventFinished, last(events).Kind, last(events).Err)

	assert.Len(t, records(events, models.TypeDebts), 3)
	content := records(events, models.TypeDocumentContent)
	require.Len(t, content, 1)
	assert.Equal(t, models.DocumentContent{DocType: "invoice", DocGUID: "d1", Content: "<p>invoice</p>"}, content[0])

	// the debts page reaches the consumer before any content it triggered
	debtsAt, contentAt := -1, -1
	for i, ev := range events {
		if ev.Kind != EventRecords {
			continue
		}
		switch {
		case ev.DataType == models.TypeDebts && debtsAt < 0:
			debtsAt = i
		case ev.DataType == models.TypeDocumentContent && contentAt < 0:
			contentAt = i
		}
	}
	require.GreaterOrEqual(t, debtsAt, 0)
	assert.Less(t, debtsAt, contentAt)
}

func TestHTTP_MalformedPageAbandonsOnlyThatType(t *testing.T) {
	f := newFakeServer(t)
	f.options(map[string]any{"token": "tok", "read": true})
	f.router.HandleFunc("/get/goods/{token}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [`))
	})
	f.router.HandleFunc("/get/clients/{token}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": []any{map[string]any{"guid": "c1"}}})
	})
	f.emptyPages()

	events := collect(t, newTestHTTP(f.srv.URL).Run(context.Background(), Request{Mode: ModeFull}))
	require.Equal(t, EventFinished, last(events).Kind, last(events).Err)
	assert.Empty(t, records(events, models.TypeGoods))
	assert.Len(t, records(events, models.TypeClients), 1)
	assert.Equal(t, 1, f.count("/get/prices/tok"))
	assert.Equal(t, []models.DataType{models.TypeClients, models.TypePriceTypes, models.TypePrices, models.TypeDebts}, pulled(events))
}

func TestHTTP_ConfirmAndPrint(t *testing.T) {
	f := newFakeServer(t)
	f.router.HandleFunc("/confirm/{code}/{guid}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", mux.Vars(r)["code"])
		writeJSON(w, map[string]any{"result": "OK", "status": "confirmed"})
	})
	f.router.HandleFunc("/print/{guid}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"result": "OK", "data": base64.StdEncoding.EncodeToString([]byte("%PDF"))})
	})
	tr := newTestHTTP(f.srv.URL)

	events := collect(t, tr.Run(context.Background(), Request{Mode: ModeConfirm, ConfirmKind: models.KindOrder, ConfirmGUID: "o1", ResponseCode: "42"}))
	require.Len(t, events, 2)
	assert.Equal(t, models.PendingResult{Kind: models.KindOrder, GUID: "o1", Result: "OK", Status: "confirmed"}, events[0].Result)
	assert.True(t, events[0].Result.OK())
	assert.Equal(t, EventFinished, events[1].Kind)

	events = collect(t, tr.Run(context.Background(), Request{Mode: ModePrint, PrintGUID: "o1"}))
	require.Len(t, events, 2)
	assert.Equal(t, EventPrint, events[0].Kind)
	assert.Equal(t, []byte("%PDF"), events[0].File)
	assert.Equal(t, StateFinished, tr.State())
}

func TestHTTP_DocumentContentOnDemand(t *testing.T) {
	f := newFakeServer(t)
	f.options(map[string]any{"token": "tok", "read": true})
	f.router.HandleFunc("/document/{type}/{guid}/{token}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", mux.Vars(r)["token"])
		writeJSON(w, map[string]any{"content": "body of " + mux.Vars(r)["guid"]})
	})

	c, err := newTestHTTP(f.srv.URL).DocumentContent(context.Background(), "invoice", "d9")
	require.NoError(t, err)
	assert.Equal(t, "body of d9", c)
	assert.Equal(t, 1, f.count("/check/u1"))
}

func TestDecodeRecord(t *testing.T) {
	row, err := decodeRecord([]byte(`{"guid":"g1"}`), models.TypeGoods)
	require.NoError(t, err)
	assert.Equal(t, models.Good{GUID: "g1", IsActive: true}, row)

	row, err = decodeRecord([]byte(`{"type":"prices","goods_guid":"g1","price_type_guid":"p1","price":3}`), models.TypeDiff)
	require.NoError(t, err)
	assert.Equal(t, models.Price{GoodsGUID: "g1", PriceTypeGUID: "p1", Price: 3}, row)

	_, err = decodeRecord([]byte(`{"guid":"x"}`), models.TypeDiff)
	assert.ErrorIs(t, err, common.ErrProtocol)

	_, err = decodeRecord([]byte(`{"type":"goods","price":"abc"}`), models.TypeGoods)
	assert.ErrorIs(t, err, common.ErrProtocol)
	assert.True(t, strings.Contains(err.Error(), "goods"))
}
