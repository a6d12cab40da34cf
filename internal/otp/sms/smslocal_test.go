package sms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("api-key", "", "")
	if c.baseURL != defaultBaseURL {
		t.Errorf("baseURL = %q, want default", c.baseURL)
	}
	if c.http.Timeout != defaultTimeout {
		t.Errorf("timeout = %v, want %v", c.http.Timeout, defaultTimeout)
	}
	if !c.Configured() {
		t.Error("client with key should be configured")
	}
	if NewClient("", "", "").Configured() {
		t.Error("client without key should not be configured")
	}
}

func TestSend_Success(t *testing.T) {
	var body sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if r.Header.Get("Authorization") != "test-api-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer server.Close()

	c := NewClient("test-api-key", server.URL, "SWDHRM")
	if err := c.Send(context.Background(), "+91 98765-43210", "654321"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	want := sendRequest{Route: "otp", Numbers: "919876543210", Variables: "654321", SenderID: "SWDHRM"}
	if body != want {
		t.Errorf("body = %+v, want %+v", body, want)
	}
}

func TestSend_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid request"}`))
	}))
	defer server.Close()

	tests := []struct {
		name    string
		client  *Client
		wantIs  error
		wantSub string
	}{
		{"missing key", NewClient("", server.URL, ""), ErrNotConfigured, ""},
		{"non-200", NewClient("k", server.URL, ""), nil, "status=400"},
		{"unreachable", NewClient("k", "http://127.0.0.1:1", ""), nil, "sms:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.client.Send(context.Background(), "9876543210", "123456")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("err = %v, want %v", err, tt.wantIs)
			}
			if tt.wantSub != "" && !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("err = %q, want substring %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestSend_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewClient("k", "http://127.0.0.1:1", "").Send(ctx, "1", "123456"); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
