// SPDX-License-Identifier: MIT

package poster

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/telepost-bot/telepost/internal/cache"
)

func TestLookupReturnsPoster(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Dune", r.URL.Query().Get("t"))
		assert.Equal(t, "2021", r.URL.Query().Get("y"))
		fmt.Fprint(w, `{"Response":"True","Poster":"https://img.example/dune.jpg"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "k", nil, 0)
	assert.Equal(t, "https://img.example/dune.jpg", c.Lookup(context.Background(), "Dune", 2021))
}

func TestLookupDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"Response":"False","Error":"Movie not found!"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "k", nil, 0)
	assert.Empty(t, c.Lookup(context.Background(), "No Such Thing", 0))
}

func TestLookupTreatsNAAsMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"Response":"True","Poster":"N/A"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "k", nil, 0)
	assert.Empty(t, c.Lookup(context.Background(), "Obscure Film", 1999))
}

func TestLookupCachesResults(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"Response":"True","Poster":"https://img.example/p.jpg"}`)
	}))
	defer srv.Close()

	mem := cache.NewMemoryCache(0)
	defer mem.Close()
	c := New(srv.URL, "k", mem, 0)

	c.Lookup(context.Background(), "Dune", 2021)
	c.Lookup(context.Background(), "Dune", 2021)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLookupDisabledWithoutConfig(t *testing.T) {
	c := New("", "", nil, 0)
	assert.Empty(t, c.Lookup(context.Background(), "Dune", 2021))
}
