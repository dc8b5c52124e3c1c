package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFunc(t *testing.T) {
	var got []int
	r := Func(func(p int) { got = append(got, p) })
	r.Report(10)
	r.Report(100)
	require.Equal(t, []int{10, 100}, got)

	Nop.Report(50)
}

func TestAsyncDeliversLastValue(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []int
	)
	a := NewAsync(func(p int) {
		time.Sleep(time.Millisecond)
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})

	for i := 0; i <= 100; i++ {
		a.Report(i)
	}
	a.Close()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	require.Equal(t, 100, seen[len(seen)-1])
	for i := 1; i < len(seen); i++ {
		require.GreaterOrEqual(t, seen[i], seen[i-1])
	}
}

func TestAsyncDoesNotBlockOnSlowRenderer(t *testing.T) {
	release := make(chan struct{})
	a := NewAsync(func(int) { <-release })

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			a.Report(i % 101)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Report blocked on a slow renderer")
	}

	close(release)
	a.Close()
	a.Report(1)
	a.Close()
}
