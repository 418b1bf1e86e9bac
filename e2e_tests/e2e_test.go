//go:build e2e

// Package e2etests drives running ledgerd instances over HTTP.
//
//	E2E_BASE_URL  first instance (default http://localhost:8080)
//	E2E_PEER_URL  optional second instance sharing the same store and bus
package e2etests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	timeout   = 5 * time.Second
	waitReady = 20 * time.Second
)

var httpClient = &http.Client{Timeout: timeout}

func baseURL() string {
	if u := os.Getenv("E2E_BASE_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

type result struct {
	TransactionID string `json:"transactionId"`
	Balance       string `json:"balance"`
	Version       int64  `json:"version"`
	Replayed      bool   `json:"replayed"`
}

type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func TestE2E_CreditDebitReplay(t *testing.T) {
	base := baseURL()
	waitUntilReady(t, base)
	acc := uuid.NewString()

	code, body := send(t, http.MethodPost, base+"/accounts/"+acc+"/credit",
		map[string]string{"amount": "10.15", "transactionId": uniqTxID("win"), "reason": "win", "game": "e2e"})
	require.Equal(t, http.StatusOK, code, body)

	dup := uniqTxID("dup")
	code, body = send(t, http.MethodPost, base+"/accounts/"+acc+"/credit",
		map[string]string{"amount": "5.00", "transactionId": dup})
	require.Equal(t, http.StatusOK, code, body)

	code, body = send(t, http.MethodPost, base+"/accounts/"+acc+"/credit",
		map[string]string{"amount": "5.00", "transactionId": dup})
	require.Equal(t, http.StatusOK, code, body)
	assert.True(t, decode[result](t, body).Replayed)

	code, body = send(t, http.MethodPost, base+"/accounts/"+acc+"/debit",
		map[string]string{"amount": "1.15", "transactionId": uniqTxID("bet"), "reason": "bet"})
	require.Equal(t, http.StatusOK, code, body)

	assert.Equal(t, "14.00", balance(t, base, acc))
}

func TestE2E_InsufficientFundsAndValidation(t *testing.T) {
	base := baseURL()
	waitUntilReady(t, base)
	acc := uuid.NewString()

	code, body := send(t, http.MethodPost, base+"/accounts/"+acc+"/debit",
		map[string]string{"amount": "1.00"})
	require.Equal(t, http.StatusConflict, code, body)
	assert.Equal(t, "insufficient_funds", decode[apiError](t, body).Kind)

	code, body = send(t, http.MethodPost, base+"/accounts/"+acc+"/credit",
		map[string]string{"amount": "1.001"})
	require.Equal(t, http.StatusBadRequest, code, body)

	code, _ = send(t, http.MethodGet, base+"/accounts/"+acc+"/balance", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestE2E_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	base := baseURL()
	waitUntilReady(t, base)
	acc := uuid.NewString()

	code, body := send(t, http.MethodPost, base+"/accounts/"+acc+"/credit",
		map[string]string{"amount": "10.00"})
	require.Equal(t, http.StatusOK, code, body)

	urls := []string{base}
	if peer := os.Getenv("E2E_PEER_URL"); peer != "" {
		waitUntilReady(t, peer)
		urls = append(urls, peer)
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u := urls[i%len(urls)]
			code, _ := send(t, http.MethodPost, u+"/accounts/"+acc+"/debit",
				map[string]string{"amount": "1.00", "transactionId": fmt.Sprintf("%s-%d", acc, i)})
			if code == http.StatusOK {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, "0.00", balance(t, base, acc))
}

func TestE2E_PeerSeesCommit(t *testing.T) {
	peer := os.Getenv("E2E_PEER_URL")
	if peer == "" {
		t.Skip("E2E_PEER_URL not set")
	}
	base := baseURL()
	waitUntilReady(t, base)
	waitUntilReady(t, peer)
	acc := uuid.NewString()

	code, body := send(t, http.MethodPost, base+"/accounts/"+acc+"/credit", map[string]string{"amount": "3.00"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "3.00", balance(t, peer, acc))

	code, body = send(t, http.MethodPost, base+"/accounts/"+acc+"/credit", map[string]string{"amount": "2.00"})
	require.Equal(t, http.StatusOK, code, body)

	assert.Eventually(t, func() bool {
		got, ok := tryBalance(peer, acc)
		return ok && got == "5.00"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestE2E_Transfer(t *testing.T) {
	base := baseURL()
	waitUntilReady(t, base)
	from, to := uuid.NewString(), uuid.NewString()

	code, body := send(t, http.MethodPost, base+"/accounts/"+from+"/credit", map[string]string{"amount": "8.00"})
	require.Equal(t, http.StatusOK, code, body)

	tx := uniqTxID("tr")
	req := map[string]string{"from": from, "to": to, "amount": "2.50", "transactionId": tx}
	code, body = send(t, http.MethodPost, base+"/transfers", req)
	require.Equal(t, http.StatusOK, code, body)

	code, body = send(t, http.MethodPost, base+"/transfers", req)
	require.Equal(t, http.StatusOK, code, body)

	assert.Equal(t, "5.50", balance(t, base, from))
	assert.Equal(t, "2.50", balance(t, base, to))
}

// --- helpers ---

func send(t *testing.T, method, url string, payload any) (int, string) {
	t.Helper()

	var buf bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(payload))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func decode[T any](t *testing.T, body string) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v), body)
	return v
}

func balance(t *testing.T, base, acc string) string {
	t.Helper()

	code, body := send(t, http.MethodGet, base+"/accounts/"+acc+"/balance", nil)
	require.Equal(t, http.StatusOK, code, body)
	return decode[result](t, body).Balance
}

// tryBalance is balance without assertions, for polling.
func tryBalance(base, acc string) (string, bool) {
	resp, err := httpClient.Get(base + "/accounts/" + acc + "/balance")
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	var r result
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&r) != nil {
		return "", false
	}
	return r.Balance, true
}

// waitUntilReady polls /healthz until it answers 200.
func waitUntilReady(t *testing.T, base string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitReady)
	defer cancel()

	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("service not ready at %s within %s", base, waitReady)
		case <-tick.C:
			resp, err := httpClient.Get(base + "/healthz")
			if err != nil {
				continue
			}
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
	}
}

func uniqTxID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
