package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/syncmart/branchd/internal/domain"
	"github.com/syncmart/branchd/internal/kvstore"
	"github.com/syncmart/branchd/internal/reconcile"
	"github.com/syncmart/branchd/internal/session"
	pkgerrors "github.com/syncmart/branchd/pkg/errors"
)

func TestRespondError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", &pkgerrors.ErrNotFound{Resource: "order", ID: "x"}, http.StatusNotFound},
		{"state violation", &pkgerrors.ErrStateViolation{OrderID: "x", Event: "pack"}, http.StatusConflict},
		{"validation", &pkgerrors.ErrValidation{Message: "bad"}, http.StatusBadRequest},
		{"unauthorized", &pkgerrors.ErrUnauthorized{}, http.StatusUnauthorized},
		{"network", &pkgerrors.ErrNetwork{Op: "pack"}, http.StatusBadGateway},
		{"upstream", &pkgerrors.ErrRequestFailed{Op: "pack", Status: 500}, http.StatusBadGateway},
		{"unknown", context.Canceled, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondError(c, zap.NewNop(), tc.err)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func newTestHandler(t *testing.T) (*OrderHandler, *reconcile.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	kv, err := kvstore.Open(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	engine := reconcile.New(context.Background(), nil, nil, nil)
	sess := session.New("b1", nil, engine, nil, kv, nil)
	return NewOrderHandler(sess, zap.NewNop()), engine
}

func seedOrder(t *testing.T, engine *reconcile.Engine, id string, status domain.OrderStatus) {
	t.Helper()
	fulfillment := domain.FulfillmentPickup
	count := 2
	price := int64(500)
	name := "Milk"
	_, err := engine.ApplyRestSnapshot(&reconcile.Snapshot{
		ID:          id,
		Status:      &status,
		Fulfillment: &fulfillment,
		Items:       []reconcile.ItemSnapshot{{ID: "i1", Count: &count, Name: &name, UnitPrice: &price}},
	})
	require.NoError(t, err)
}

func TestGet_ReturnsReconciledView(t *testing.T) {
	h, engine := newTestHandler(t)
	seedOrder(t, engine, "o1", domain.OrderStatusAccepted)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/orders/o1", nil)
	c.Params = gin.Params{{Key: "id", Value: "o1"}}
	h.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	var resp OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "o1", resp.ID)
	assert.Equal(t, domain.OrderStatusAccepted, resp.Status)
	require.NotNil(t, resp.Total)
	assert.Equal(t, int64(1000), *resp.Total)
	require.Len(t, resp.Items, 1)
	assert.True(t, resp.Items[0].Resolved)
}

func TestGet_UnknownOrderIs404(t *testing.T) {
	h, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/orders/nope", nil)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestList_FiltersByStatus(t *testing.T) {
	h, engine := newTestHandler(t)
	seedOrder(t, engine, "o1", domain.OrderStatusPlaced)
	seedOrder(t, engine, "o2", domain.OrderStatusAccepted)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/orders?status=placed", nil)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []OrderResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "o1", resp.Data[0].ID)
}

func TestList_RejectsUnknownStatus(t *testing.T) {
	h, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/orders?status=bogus", nil)
	h.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
