package main

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type closeRecorder struct {
	closed bool
	err    error
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return c.err
}

func TestServe_ClosesStoreWhenListenFails(t *testing.T) {
	store := &closeRecorder{}
	err := serve(&http.Server{Addr: "127.0.0.1:-1"}, store)
	assert.Error(t, err)
	assert.True(t, store.closed)
}

func TestServe_ReportsCloseError(t *testing.T) {
	store := &closeRecorder{err: errors.New("checkpoint failed")}
	err := serve(&http.Server{Addr: "127.0.0.1:-1"}, store)
	assert.ErrorContains(t, err, "checkpoint failed")
	assert.True(t, store.closed)
}
