package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"xmb-trader-go/market"
)

var btcUSD = market.Pair{Base: "BTC", Quote: "USD"}

func testExmoClient(ts *httptest.Server) *ExmoClient {
	cli := NewExmoClient("key", "secret", nil)
	cli.BaseURL = ts.URL
	cli.HTTPClient = ts.Client()
	cli.nonce = func() int64 { return 1234567890000 } // deterministic
	return cli
}

func TestExmoClientSignsRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Header.Get("Key") != "key" {
			t.Errorf("missing Key header")
		}
		want := SignForm(string(body), "secret")
		if r.Header.Get("Sign") != want {
			t.Errorf("bad signature: got %s want %s", r.Header.Get("Sign"), want)
		}
		vals, _ := url.ParseQuery(string(body))
		if vals.Get("nonce") != "1234567890000" {
			t.Errorf("missing nonce, body: %s", body)
		}
		io.WriteString(w, `{"BTC_USD":[]}`)
	}))
	defer ts.Close()

	cli := testExmoClient(ts)
	if _, err := cli.GetOpenOrders(context.Background(), btcUSD); err != nil {
		t.Fatalf("GetOpenOrders: %v", err)
	}
}

func TestExmoClientOpenOrdersAndCreate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user_open_orders":
			io.WriteString(w, `{"BTC_USD":[
				{"order_id":"14","created":"1435517311","type":"buy","pair":"BTC_USD","price":"100","quantity":"1","amount":"100"}
			]}`)
		case "/order_create":
			body, _ := io.ReadAll(r.Body)
			vals, _ := url.ParseQuery(string(body))
			if vals.Get("pair") != "BTC_USD" || vals.Get("type") != "sell" {
				t.Errorf("bad create params: %s", body)
			}
			io.WriteString(w, `{"result":true,"error":"","order_id":190034}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	cli := testExmoClient(ts)
	open, err := cli.GetOpenOrders(context.Background(), btcUSD)
	if err != nil {
		t.Fatalf("GetOpenOrders: %v", err)
	}
	if len(open) != 1 || open[0].ID != "14" || open[0].Side != "buy" || open[0].Price != 100 {
		t.Fatalf("open orders = %+v", open)
	}

	id, err := cli.CreateOrder(context.Background(), btcUSD, 0.001, 1200, "sell")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if id != "190034" {
		t.Fatalf("order id = %s, want 190034", id)
	}
}

func TestExmoClientBusinessError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"result":false,"error":"Error 50052: Insufficient funds"}`)
	}))
	defer ts.Close()

	cli := testExmoClient(ts)
	_, err := cli.CreateOrder(context.Background(), btcUSD, 1, 100, "buy")
	if err == nil {
		t.Fatal("expected business error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.Method != "order_create" {
		t.Fatalf("method = %s", apiErr.Method)
	}
}

// 查询与撤单瞬时失败后重试一次；下单失败绝不重放。
func TestExmoClientRetriesIdempotentCallsOnce(t *testing.T) {
	var openCalls, createCalls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user_open_orders":
			openCalls++
			if openCalls == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			io.WriteString(w, `{"BTC_USD":[]}`)
		case "/order_create":
			createCalls++
			w.WriteHeader(http.StatusBadGateway)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	cli := testExmoClient(ts)
	cli.RetryDelay = 0

	if _, err := cli.GetOpenOrders(context.Background(), btcUSD); err != nil {
		t.Fatalf("GetOpenOrders after retry: %v", err)
	}
	if openCalls != 2 {
		t.Fatalf("open-order calls = %d, want 2", openCalls)
	}

	if _, err := cli.CreateOrder(context.Background(), btcUSD, 1, 100, "buy"); err == nil {
		t.Fatal("expected create error")
	}
	if createCalls != 1 {
		t.Fatalf("create calls = %d, want 1", createCalls)
	}
}

func TestExmoClientIsPartiallyFilled(t *testing.T) {
	filled := true
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if filled {
			io.WriteString(w, `{"trades":[{"trade_id":3,"date":1435488248,"type":"buy","pair":"BTC_USD","order_id":7,"quantity":1,"price":100,"amount":100}]}`)
		} else {
			io.WriteString(w, `{"result":false,"error":"Error 50304: Order was not found"}`)
		}
	}))
	defer ts.Close()

	cli := testExmoClient(ts)
	got, err := cli.IsPartiallyFilled(context.Background(), "7")
	if err != nil || !got {
		t.Fatalf("IsPartiallyFilled = %v, %v; want true", got, err)
	}

	filled = false
	got, err = cli.IsPartiallyFilled(context.Background(), "7")
	if err != nil || got {
		t.Fatalf("IsPartiallyFilled = %v, %v; want false", got, err)
	}
}

func TestExmoClientUserTrades(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"BTC_USD":[
			{"trade_id":3,"date":1435488248,"type":"buy","pair":"BTC_USD","order_id":7,"quantity":1,"price":100,"amount":100}
		]}`)
	}))
	defer ts.Close()

	cli := testExmoClient(ts)
	trades, err := cli.GetUserTrades(context.Background(), btcUSD)
	if err != nil {
		t.Fatalf("GetUserTrades: %v", err)
	}
	if len(trades) != 1 || trades[0].OrderID != "7" || trades[0].TradeID != 3 || trades[0].Qty != 1 {
		t.Fatalf("user trades = %+v", trades)
	}
}
