package server

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobals_stopIsIdempotent(t *testing.T) {
	g := NewGlobals()
	assert.False(t, g.StopRequested())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.RequestStop()
		}()
	}
	wg.Wait()

	assert.True(t, g.StopRequested())
	select {
	case <-g.Stopped():
	default:
		t.Fatal("Stopped channel not closed")
	}
}

func TestGlobals_note(t *testing.T) {
	g := NewGlobals()
	assert.Empty(t, g.Note())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			g.SetNote("maintenance at noon")
		}()
		go func() {
			defer wg.Done()
			_ = g.Note()
		}()
	}
	wg.Wait()
	assert.Equal(t, "maintenance at noon", g.Note())
}
