package goroutine

import (
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeGo_RecoversPanic(t *testing.T) {
	log, hook := test.NewNullLogger()
	rh := NewRecoveryHandler(log)

	var ran atomic.Int32
	rh.SafeGo("ok", func() { ran.Add(1) })
	rh.SafeGo("push", func() { panic("boom") })
	rh.Wait()

	assert.Equal(t, int32(1), ran.Load())
	assert.Equal(t, int64(1), rh.Panics())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "push", entry.Data["goroutine"])
	assert.Equal(t, "boom", entry.Data["panic"])
}

func TestSafeGo_WaitWithoutGoroutines(t *testing.T) {
	log, _ := test.NewNullLogger()
	rh := NewRecoveryHandler(log)
	rh.Wait()
	assert.Zero(t, rh.Panics())
}
