package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/danribes/mystic-ecom-sub011/api/web"
	"github.com/danribes/mystic-ecom-sub011/api/weberr"
	"github.com/danribes/mystic-ecom-sub011/config"
	"github.com/danribes/mystic-ecom-sub011/core/claims"
	"github.com/danribes/mystic-ecom-sub011/core/webhook"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	mock "github.com/stripe/stripe-mock/param"
)

const userID = "user_1"

func newDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, m, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return sqlx.NewDb(db, "postgres"), m
}

func authed() context.Context {
	return claims.Set(context.Background(), claims.Claims{UserID: userID, Role: claims.RoleUser})
}

func expectBasket(m sqlmock.Sqlmock, courses map[string]int) {
	m.ExpectQuery(regexp.QuoteMeta("SELECT name, email, phone FROM users WHERE user_id = $1")).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"name", "email", "phone"}).AddRow("Ada", "ada@example.com", ""))

	now := time.Now()
	items := sqlmock.NewRows([]string{"user_id", "course_id", "created_at", "updated_at"})
	for _, id := range []string{"course_1", "course_2"} {
		if _, ok := courses[id]; ok {
			items.AddRow(userID, id, now, now)
		}
	}
	m.ExpectQuery("FROM cart_items").WithArgs(userID).WillReturnRows(items)

	for _, id := range []string{"course_1", "course_2"} {
		price, ok := courses[id]
		if !ok {
			continue
		}
		row := sqlmock.NewRows([]string{"course_id", "name", "description", "image_url", "price", "created_at", "updated_at", "version"}).
			AddRow(id, "Tarot "+id, "Reading the cards", "https://img.example.com/"+id, price, now, now, 1)
		m.ExpectQuery("FROM courses").WithArgs(id).WillReturnRows(row)
	}
}

func TestHandleStripe(t *testing.T) {
	db, m := newDB(t)
	expectBasket(m, map[string]int{"course_1": 10, "course_2": 25})

	m.ExpectBegin()
	m.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectExec("INSERT INTO order_items").WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectExec("INSERT INTO order_items").WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectCommit()

	var params map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/checkout/sessions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		var err error
		if params, err = mock.ParseParams(r); err != nil {
			web.Respond(r.Context(), w, nil, http.StatusBadRequest)
			return
		}

		s := map[string]any{
			"id":     "cs_test_1",
			"object": "checkout.session",
			"url":    "https://checkout.stripe.com/c/pay/cs_test_1",
		}
		web.Respond(r.Context(), w, s, http.StatusOK)
	}))
	defer srv.Close()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
	})
	strp := &stripecl.API{}
	strp.Init("sk_test_123", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	h := HandleStripe(db, strp, config.Stripe{SuccessURL: "https://shop.example.com/ok", CancelURL: "https://shop.example.com/cancel"})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/orders/stripe", nil)
	require.NoError(t, h(authed(), w, r))
	require.Equal(t, http.StatusOK, w.Code)

	var url string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &url))
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", url)

	orderID, _ := params["client_reference_id"].(string)
	require.NotEmpty(t, orderID)

	md := params["metadata"].(map[string]any)
	assert.Equal(t, orderID, md["order_id"])

	pid := params["payment_intent_data"].(map[string]any)
	assert.Equal(t, orderID, pid["metadata"].(map[string]any)["order_id"])

	assert.Equal(t, "ada@example.com", params["customer_email"])

	lines := params["line_items"].(map[string]any)
	assert.Len(t, lines, 2)

	assert.NoError(t, m.ExpectationsWereMet())
}

func TestHandleStripeEmptyCart(t *testing.T) {
	db, m := newDB(t)
	expectBasket(m, map[string]int{})

	h := HandleStripe(db, &stripecl.API{}, config.Stripe{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/orders/stripe", nil)
	err := h(authed(), w, r)

	_, status, ok := weberr.Response(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestHandlePaypalCapture(t *testing.T) {
	db, m := newDB(t)
	now := time.Now()

	cols := []string{"order_id", "user_id", "provider_id", "payment_ref", "email", "total", "status", "created_at", "updated_at"}
	orderRow := func() *sqlmock.Rows {
		return sqlmock.NewRows(cols).AddRow("order_1", userID, "PP-1", "", "ada@example.com", 35, "pending", now, now)
	}

	m.ExpectQuery("FROM orders WHERE provider_id").WithArgs("PP-1").WillReturnRows(orderRow())
	m.ExpectQuery("FROM orders WHERE order_id").WithArgs("order_1").WillReturnRows(orderRow())
	m.ExpectBegin()
	m.ExpectExec("UPDATE orders SET status").
		WithArgs("order_1", "completed", "CAP-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectQuery("FROM order_items").WithArgs("order_1").
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "item_type", "item_id", "price", "quantity", "created_at"}).
			AddRow("order_1", "course", "course_1", 35, 1, now))
	m.ExpectQuery(regexp.QuoteMeta("SELECT name, email, phone FROM users")).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"name", "email", "phone"}).AddRow("Ada", "ada@example.com", ""))
	m.ExpectExec("INSERT INTO access_grants").
		WithArgs("order_1", userID, "course", "course_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectCommit()
	m.ExpectExec(regexp.QuoteMeta("DELETE FROM carts WHERE user_id = $1")).WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	router := mux.NewRouter()
	router.HandleFunc("/v2/checkout/orders/{id}/capture", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"id":     mux.Vars(r)["id"],
			"status": "COMPLETED",
			"payer":  map[string]any{"email_address": "ada@example.com"},
			"purchase_units": []any{map[string]any{
				"payments": map[string]any{"captures": []any{map[string]any{"id": "CAP-1"}}},
			}},
		}
		web.Respond(r.Context(), w, resp, http.StatusCreated)
	}).Methods(http.MethodPost)
	srv := httptest.NewServer(router)
	defer srv.Close()

	pp, err := paypal.NewClient("client", "secret", srv.URL)
	require.NoError(t, err)

	log, _ := test.NewNullLogger()
	p := webhook.NewPipeline(webhook.PipelineConfig{DB: db, Log: log})

	h := HandlePaypalCapture(db, pp, p)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/orders/paypal/PP-1/capture", nil)
	r = mux.SetURLVars(r, map[string]string{"id": "PP-1"})

	require.NoError(t, h(authed(), w, r))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestHandlePaypalCaptureOtherUser(t *testing.T) {
	db, m := newDB(t)
	now := time.Now()

	m.ExpectQuery("FROM orders WHERE provider_id").WithArgs("PP-1").
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "user_id", "provider_id", "payment_ref", "email", "total", "status", "created_at", "updated_at"}).
			AddRow("order_1", "user_2", "PP-1", "", "", 35, "pending", now, now))

	log, _ := test.NewNullLogger()
	h := HandlePaypalCapture(db, nil, webhook.NewPipeline(webhook.PipelineConfig{DB: db, Log: log}))

	w := httptest.NewRecorder()
	r := mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/orders/paypal/PP-1/capture", nil), map[string]string{"id": "PP-1"})

	_, status, ok := weberr.Response(h(authed(), w, r))
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, status)
	assert.NoError(t, m.ExpectationsWereMet())
}
