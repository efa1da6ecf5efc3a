package hardware

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/Zhima-Mochi/kitchen-ops/internal/domain/hardware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawerRequiresConnection(t *testing.T) {
	ctx := context.Background()
	d := NewDrawer(nil)

	require.ErrorIs(t, d.Open(ctx), domain.ErrNotConnected)
	require.NoError(t, d.Connect(ctx))
	require.NoError(t, d.Open(ctx))
	assert.Equal(t, 1, d.Opens())
	assert.Equal(t, domain.StateReady, d.Status().State)
}

func TestStatusSubscription(t *testing.T) {
	ctx := context.Background()
	p := NewPrinter(nil)
	var states []domain.State
	unsubscribe := p.Subscribe(func(s domain.Status) { states = append(states, s.State) })

	require.NoError(t, p.Connect(ctx))
	require.NoError(t, p.Print(ctx, domain.Receipt{OrderNumber: "A-1"}))
	unsubscribe()
	require.NoError(t, p.Test(ctx))

	assert.Equal(t, []domain.State{domain.StateReady, domain.StateBusy, domain.StateReady}, states)
	require.Len(t, p.Printed(), 1)
}

func TestFailNextLeavesErrorState(t *testing.T) {
	ctx := context.Background()
	p := NewPrinter(nil)
	require.NoError(t, p.Connect(ctx))
	paper := errors.New("out of paper")
	p.FailNext(paper)

	require.ErrorIs(t, p.Print(ctx, domain.Receipt{}), paper)
	assert.Equal(t, domain.StateError, p.Status().State)
	assert.Equal(t, "out of paper", p.Status().Message)
	assert.Empty(t, p.Printed())
}

func TestScannerReturnsFedCode(t *testing.T) {
	s := NewScanner(nil)
	require.NoError(t, s.Connect(context.Background()))
	s.Feed("4006381333931")

	code, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4006381333931", code)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = s.Scan(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
