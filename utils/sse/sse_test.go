package sse

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendFormatsFrame(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	require.NoError(t, Send(w, Event{ID: "7", Event: "invalidate", Data: map[string]string{"table": "resources"}}))
	assert.Equal(t, "id: 7\nevent: invalidate\ndata: {\"table\":\"resources\"}\n\n", buf.String())
}

func TestSendSplitsMultilineData(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	require.NoError(t, SendNamed(w, "toast", "line one\nline two"))
	assert.Equal(t, "event: toast\ndata: line one\ndata: line two\n\n", buf.String())
}

func TestSendErrorAndKeepAlive(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	require.NoError(t, SendError(w, errors.New("nope")))
	require.NoError(t, SendKeepAlive(w))
	assert.Contains(t, buf.String(), `"message":"nope"`)
	assert.Contains(t, buf.String(), ": ping\n\n")
}

func TestSendReadyCarriesRetry(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	require.NoError(t, SendReady(w, "ok"))
	assert.Equal(t, "retry: 3000\nevent: ready\ndata: ok\n\n", buf.String())
}
