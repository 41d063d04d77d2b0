package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwilioSenderSend(t *testing.T) {
	var gotPath, gotTo, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotTo = r.PostForm.Get("To")
		gotBody = r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM123","status":"queued"}`))
	}))
	defer server.Close()

	sender, err := NewTwilioSender(TwilioConfig{
		AccountSID: "AC1",
		AuthToken:  "token",
		FromNumber: "+15550001111",
		BaseURL:    server.URL,
	})
	require.NoError(t, err)

	sid, err := sender.Send(context.Background(), "+919876543210", "hello")
	require.NoError(t, err)
	assert.Equal(t, "SM123", sid)
	assert.Equal(t, "/2010-04-01/Accounts/AC1/Messages.json", gotPath)
	assert.Equal(t, "+919876543210", gotTo)
	assert.Equal(t, "hello", gotBody)
}

func TestTwilioSenderRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid number"}`))
	}))
	defer server.Close()

	sender, err := NewTwilioSender(TwilioConfig{AccountSID: "AC1", AuthToken: "t", FromNumber: "+1", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = sender.Send(context.Background(), "bad", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid number")
}

func TestNewTwilioSenderRequiresCredentials(t *testing.T) {
	_, err := NewTwilioSender(TwilioConfig{})
	require.Error(t, err)
}
