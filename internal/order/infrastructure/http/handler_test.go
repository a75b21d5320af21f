package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinehub/order-platform/internal/auth"
	"github.com/dinehub/order-platform/internal/order/application"
	"github.com/dinehub/order-platform/internal/order/domain"
)

type stubRepo struct {
	createFn func(context.Context, domain.Order) (domain.Order, error)
	getFn    func(context.Context, uuid.UUID) (domain.Order, error)
	listFn   func(context.Context, domain.Filter) ([]domain.Order, error)
	updateFn func(context.Context, uuid.UUID, domain.OrderStatus) (domain.Order, error)
	bulkFn   func(context.Context, []uuid.UUID, domain.OrderStatus) ([]domain.Order, error)
	deleteFn func(context.Context, uuid.UUID) (domain.Order, error)
	statsFn  func(context.Context) (domain.Stats, error)
}

var errUnexpected = errors.New("unexpected store call")

func (s *stubRepo) Create(ctx context.Context, o domain.Order) (domain.Order, error) {
	if s.createFn == nil {
		return domain.Order{}, errUnexpected
	}
	return s.createFn(ctx, o)
}

func (s *stubRepo) Get(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	if s.getFn == nil {
		return domain.Order{}, errUnexpected
	}
	return s.getFn(ctx, id)
}

func (s *stubRepo) List(ctx context.Context, f domain.Filter) ([]domain.Order, error) {
	if s.listFn == nil {
		return nil, errUnexpected
	}
	return s.listFn(ctx, f)
}

func (s *stubRepo) UpdateStatus(ctx context.Context, id uuid.UUID, st domain.OrderStatus) (domain.Order, error) {
	if s.updateFn == nil {
		return domain.Order{}, errUnexpected
	}
	return s.updateFn(ctx, id, st)
}

func (s *stubRepo) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, st domain.OrderStatus) ([]domain.Order, error) {
	if s.bulkFn == nil {
		return nil, errUnexpected
	}
	return s.bulkFn(ctx, ids, st)
}

func (s *stubRepo) Delete(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	if s.deleteFn == nil {
		return domain.Order{}, errUnexpected
	}
	return s.deleteFn(ctx, id)
}

func (s *stubRepo) Stats(ctx context.Context) (domain.Stats, error) {
	if s.statsFn == nil {
		return domain.Stats{}, errUnexpected
	}
	return s.statsFn(ctx)
}

type stubCatalog struct {
	items  map[int64]domain.MenuItem
	tables map[int64]domain.Table
}

func (s *stubCatalog) MenuItem(_ context.Context, id int64) (domain.MenuItem, error) {
	mi, ok := s.items[id]
	if !ok {
		return domain.MenuItem{}, domain.ErrMenuItemNotFound
	}
	return mi, nil
}

func (s *stubCatalog) Table(_ context.Context, id int64) (domain.Table, error) {
	tb, ok := s.tables[id]
	if !ok {
		return domain.Table{}, domain.ErrTableNotFound
	}
	return tb, nil
}

type nopBroadcaster struct{}

func (nopBroadcaster) Publish(domain.Event) {}

func defaultCatalog() *stubCatalog {
	return &stubCatalog{
		items: map[int64]domain.MenuItem{
			7: {ID: 7, Name: "Lasagna", Price: decimal.RequireFromString("12.00")},
		},
		tables: map[int64]domain.Table{
			3: {ID: 3, Number: 3, Active: true},
		},
	}
}

func newServer(t *testing.T, repo *stubRepo, staff Middleware) *httptest.Server {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	svc := application.NewService(log, repo, defaultCatalog(), nopBroadcaster{})
	srv := httptest.NewServer(NewHandler(log, svc).Routes(staff, nil))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestCreateOrder(t *testing.T) {
	repo := &stubRepo{
		createFn: func(_ context.Context, o domain.Order) (domain.Order, error) { return o, nil },
	}
	srv := newServer(t, repo, nil)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/orders",
		`{"table_id":3,"customer_name":"Asha","items":[{"menu_item_id":7,"quantity":2}]}`, nil)

	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", body)
	var o domain.Order
	require.NoError(t, json.Unmarshal(body, &o))
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("24.00")), "got %s", o.TotalAmount)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, 3, o.TableNumber)
}

func TestCreateOrderIgnoresClientPrices(t *testing.T) {
	repo := &stubRepo{
		createFn: func(_ context.Context, o domain.Order) (domain.Order, error) { return o, nil },
	}
	srv := newServer(t, repo, nil)

	// Price fields a client smuggles in are not part of the request schema
	// and never reach the total.
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/orders",
		`{"table_id":3,"customer_name":"Asha","total_amount":"0.01","items":[{"menu_item_id":7,"quantity":2,"unit_price":"0.01"}]}`, nil)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var o domain.Order
	require.NoError(t, json.Unmarshal(body, &o))
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("24.00")), "got %s", o.TotalAmount)
}

func TestCreateOrderBadRequests(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"table_id":`, http.StatusBadRequest},
		{"empty items", `{"table_id":3,"customer_name":"Asha","items":[]}`, http.StatusBadRequest},
		{"zero quantity", `{"table_id":3,"customer_name":"Asha","items":[{"menu_item_id":7,"quantity":0}]}`, http.StatusBadRequest},
		{"unknown table", `{"table_id":99,"customer_name":"Asha","items":[{"menu_item_id":7,"quantity":1}]}`, http.StatusNotFound},
		{"unknown menu item", `{"table_id":3,"customer_name":"Asha","items":[{"menu_item_id":99,"quantity":1}]}`, http.StatusNotFound},
	}
	srv := newServer(t, &stubRepo{}, nil)
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodPost, srv.URL+"/orders", c.body, nil)
			assert.Equal(t, c.want, resp.StatusCode, "body: %s", body)
		})
	}
}

func TestUpdateStatusRejectsUnknownStatusUnchanged(t *testing.T) {
	persisted := false
	id := uuid.New()
	repo := &stubRepo{
		getFn: func(_ context.Context, got uuid.UUID) (domain.Order, error) {
			return domain.Order{ID: got, Status: domain.StatusPending}, nil
		},
		updateFn: func(_ context.Context, got uuid.UUID, st domain.OrderStatus) (domain.Order, error) {
			persisted = true
			return domain.Order{ID: got, Status: st}, nil
		},
	}
	srv := newServer(t, repo, nil)

	resp, _ := doJSON(t, http.MethodPatch, srv.URL+"/orders/"+id.String()+"/status", `{"status":"served"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, persisted, "an invalid status must not reach the store")
}

func TestUpdateStatusHappyPath(t *testing.T) {
	id := uuid.New()
	repo := &stubRepo{
		getFn: func(_ context.Context, got uuid.UUID) (domain.Order, error) {
			return domain.Order{ID: got, Status: domain.StatusPreparing}, nil
		},
		updateFn: func(_ context.Context, got uuid.UUID, st domain.OrderStatus) (domain.Order, error) {
			return domain.Order{ID: got, Status: st}, nil
		},
	}
	srv := newServer(t, repo, nil)

	resp, body := doJSON(t, http.MethodPatch, srv.URL+"/orders/"+id.String()+"/status", `{"status":"ready"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var o domain.Order
	require.NoError(t, json.Unmarshal(body, &o))
	assert.Equal(t, domain.StatusReady, o.Status)
}

func TestBulkUpdateStatus(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	repo := &stubRepo{
		bulkFn: func(_ context.Context, got []uuid.UUID, st domain.OrderStatus) ([]domain.Order, error) {
			out := make([]domain.Order, len(got))
			for i, id := range got {
				out[i] = domain.Order{ID: id, Status: st}
			}
			return out, nil
		},
	}
	srv := newServer(t, repo, nil)

	payload, _ := json.Marshal(map[string]any{"orderIds": ids, "status": "ready"})
	resp, body := doJSON(t, http.MethodPatch, srv.URL+"/orders/bulk-status", string(payload), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Count         int            `json:"count"`
		UpdatedOrders []domain.Order `json:"updatedOrders"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 3, out.Count)
	require.Len(t, out.UpdatedOrders, 3)
	for _, o := range out.UpdatedOrders {
		assert.Equal(t, domain.StatusReady, o.Status)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	repo := &stubRepo{
		getFn: func(context.Context, uuid.UUID) (domain.Order, error) {
			return domain.Order{}, domain.ErrOrderNotFound
		},
	}
	srv := newServer(t, repo, nil)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/orders/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/orders/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchBuildsFilter(t *testing.T) {
	var captured domain.Filter
	repo := &stubRepo{
		listFn: func(_ context.Context, f domain.Filter) ([]domain.Order, error) {
			captured = f
			return nil, nil
		},
	}
	srv := newServer(t, repo, nil)

	resp, body := doJSON(t, http.MethodGet,
		srv.URL+"/orders/search?query=asha&status=pending&table_id=3&date_from=2026-08-01&date_to=2026-08-31", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[]", strings.TrimSpace(string(body)))

	assert.Equal(t, "asha", captured.Query)
	require.NotNil(t, captured.Status)
	assert.Equal(t, domain.StatusPending, *captured.Status)
	require.NotNil(t, captured.TableID)
	assert.Equal(t, int64(3), *captured.TableID)
	require.NotNil(t, captured.DateFrom)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), *captured.DateFrom)
	require.NotNil(t, captured.DateTo)
	assert.True(t, captured.DateTo.After(time.Date(2026, 8, 31, 23, 59, 0, 0, time.UTC)), "date_to is inclusive")
}

func TestStaffEndpointsRequireToken(t *testing.T) {
	verifier := auth.NewVerifier("test-secret")
	id := uuid.New()
	repo := &stubRepo{
		deleteFn: func(_ context.Context, got uuid.UUID) (domain.Order, error) {
			return domain.Order{ID: got}, nil
		},
	}
	srv := newServer(t, repo, verifier.Middleware)

	resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/orders/"+id.String(), "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/orders/"+id.String(), "",
		map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := verifier.Sign("dana", "admin", time.Hour)
	require.NoError(t, err)
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/orders/"+id.String(), "",
		map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Customer-facing creation stays open.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/orders",
		`{"table_id":99,"customer_name":"x","items":[{"menu_item_id":7,"quantity":1}]}`, nil)
	assert.NotEqual(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStats(t *testing.T) {
	repo := &stubRepo{
		statsFn: func(context.Context) (domain.Stats, error) {
			return domain.Stats{
				TotalOrders:  5,
				ByStatus:     map[domain.OrderStatus]int{domain.StatusPending: 2, domain.StatusCompleted: 3},
				Revenue:      decimal.RequireFromString("120.50"),
				RevenueToday: decimal.RequireFromString("40.00"),
			}, nil
		},
	}
	srv := newServer(t, repo, nil)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/orders/stats", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out domain.Stats
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 5, out.TotalOrders)
	assert.Equal(t, 3, out.ByStatus[domain.StatusCompleted])
	assert.True(t, out.Revenue.Equal(decimal.RequireFromString("120.50")))
}
