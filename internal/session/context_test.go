package session

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/combatsim/pkg/core"
)

func TestNewContext(t *testing.T) {
	c := NewContext()
	require.NotNil(t, c.GetRun())
	assert.Equal(t, "No run loaded", c.GetRun().Scenario)
	assert.Equal(t, 0, c.Step())
	assert.Nil(t, c.LogAttrs(), "no attributes before a run is set")
}

func TestSetRun_ResetsStep(t *testing.T) {
	c := NewContext()
	c.SetStep(12)

	run := core.NewRun("skirmish", 800, 600, 1, 50)
	c.SetRun(run)

	assert.Same(t, run, c.GetRun())
	assert.Equal(t, 0, c.Step())
}

func TestLogAttrs(t *testing.T) {
	c := NewContext()
	run := core.NewRun("skirmish", 800, 600, 1, 50)
	c.SetRun(run)
	c.SetStep(3)

	attrs := c.LogAttrs()
	require.Len(t, attrs, 2)
	assert.True(t, attrs[0].Equal(slog.String("run", run.UUID)))
	assert.True(t, attrs[1].Equal(slog.Int("step", 3)))
}

func TestConcurrentAccess(t *testing.T) {
	c := NewContext()
	c.SetRun(core.NewRun("skirmish", 800, 600, 1, 50))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(step int) {
			defer wg.Done()
			c.SetStep(step)
		}(i)
		go func() {
			defer wg.Done()
			_ = c.LogAttrs()
			_ = c.GetRun()
		}()
	}
	wg.Wait()
}
