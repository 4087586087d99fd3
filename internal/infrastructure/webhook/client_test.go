package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"

	"github.com/energosales/portal/internal/core/domain"
)

func testLead() domain.Lead {
	return domain.Lead{
		FullName:     "Ivanov Ivan Ivanovich",
		Phone:        "+79000000000",
		BirthDate:    "01.02.1960",
		Region:       "Moscow oblast",
		Document:     "4510 123456",
		Message:      "call back & confirm",
		Telephony:    domain.TelephonyWhatsapp,
		OperatorID:   7,
		OperatorName: "Olga",
		SubmittedAt:  time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC),
	}
}

func TestClient_ForwardPostsSpreadsheetForm(t *testing.T) {
	var (
		form       url.Values
		method, ct string
		parseErr   error
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, ct = r.Method, r.Header.Get("Content-Type")
		parseErr = r.ParseForm()
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"success"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL}, zerolog.Nop())
	require.NoError(t, c.Forward(context.Background(), testLead()))

	require.NoError(t, parseErr)
	require.Equal(t, http.MethodPost, method)
	require.Equal(t, "application/x-www-form-urlencoded", ct)
	require.Equal(t, url.Values{
		"fio":          {"Ivanov Ivan Ivanovich"},
		"phone":        {"+79000000000"},
		"dataroz":      {"01.02.1960"},
		"region":       {"Moscow oblast"},
		"document":     {"4510 123456"},
		"message":      {"call back & confirm"},
		"purchaseType": {"Whatsapp"},
		"accountName":  {"Olga"},
	}, form)
}

func TestClient_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(Config{URL: srv.URL}, zerolog.Nop()).Forward(context.Background(), testLead())
	require.ErrorContains(t, err, "502")
	require.False(t, errors.Is(err, domain.ErrRelayUnavailable))
}

func TestClient_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	for i := 0; i < 3; i++ {
		require.Error(t, c.Forward(context.Background(), testLead()))
	}

	err := c.Forward(context.Background(), testLead())
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.ErrorIs(t, err, domain.ErrRelayUnavailable)
	require.Equal(t, int32(3), calls.Load())
}
