package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/guincho-facil/internal/models"
	"github.com/digkill/guincho-facil/internal/repository"
	"github.com/digkill/guincho-facil/pkg/logger"
)

func newMetering(e *env) *MeteringService {
	svc := NewMeteringService(logger.Discard(), e.providers, e.subscriptions)
	svc.now = fixedClock
	return svc
}

func TestRecordRideFirstCallStartsTrial(t *testing.T) {
	e := newEnv(t)
	p := e.provider(t, "joao", "5511999990001")
	svc := newMetering(e)

	res, err := svc.RecordRide(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.TrialStarted)
	assert.Equal(t, models.DefaultTrialRides, res.TrialRidesRemaining)
	assert.Zero(t, res.RidesUsed)

	res, err = svc.RecordRide(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.TrialStarted)
	assert.Equal(t, models.DefaultTrialRides-1, res.TrialRidesRemaining)
	assert.Equal(t, 1, res.RidesUsed)
}

func TestRecordRideTrialExhausted(t *testing.T) {
	e := newEnv(t)
	p := e.provider(t, "joao", "5511999990001")
	svc := newMetering(e)
	ctx := context.Background()

	_, err := e.subscriptions.SetTrialRides(ctx, p.ID, 2, fixedNow)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		res, err := svc.RecordRide(ctx, p.ID)
		require.NoError(t, err)
		require.True(t, res.Success)
	}

	res, err := svc.RecordRide(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Blocked)
	assert.Equal(t, ReasonTrialExhausted, res.Reason)
	assert.NotEmpty(t, res.Message)
	assert.Equal(t, 0, res.TrialRidesRemaining)
	assert.Equal(t, 2, res.RidesUsed)

	sub, err := e.subscriptions.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sub.RidesUsed)
	assert.True(t, sub.NeedsPlanSelection())
}

func TestRecordRideNoPlan(t *testing.T) {
	e := newEnv(t)
	p := e.provider(t, "joao", "5511999990001")
	svc := newMetering(e)
	ctx := context.Background()

	_, err := e.subscriptions.ToggleTrial(ctx, p.ID, fixedNow)
	require.NoError(t, err)

	res, err := svc.RecordRide(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, res.Blocked)
	assert.Equal(t, ReasonNoPlan, res.Reason)
}

func TestRecordRideCappedPlan(t *testing.T) {
	e := newEnv(t)
	p := e.provider(t, "joao", "5511999990001")
	svc := newMetering(e)
	ctx := context.Background()

	basico, _ := models.LookupPlan(models.PlanBasico)
	_, err := e.subscriptions.ActivatePlan(ctx, p.ID, basico, repository.StripeRefs{}, fixedNow)
	require.NoError(t, err)

	for i := 0; i < basico.RideLimit; i++ {
		res, err := svc.RecordRide(ctx, p.ID)
		require.NoError(t, err)
		require.True(t, res.Success, "ride %d", i+1)
	}

	res, err := svc.RecordRide(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, res.Blocked)
	assert.Equal(t, ReasonLimitReached, res.Reason)
	assert.Equal(t, basico.RideLimit, res.RidesUsed)
	assert.Equal(t, basico.RideLimit, res.RideLimit)
}

func TestRecordRideUnlimitedPlan(t *testing.T) {
	e := newEnv(t)
	p := e.provider(t, "joao", "5511999990001")
	svc := newMetering(e)
	ctx := context.Background()

	pro, _ := models.LookupPlan(models.PlanPro)
	_, err := e.subscriptions.ActivatePlan(ctx, p.ID, pro, repository.StripeRefs{}, fixedNow)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		res, err := svc.RecordRide(ctx, p.ID)
		require.NoError(t, err)
		require.True(t, res.Success)
	}
	sub, err := e.subscriptions.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 200, sub.RidesUsed)
	assert.Equal(t, models.UnlimitedRides, sub.RideLimit)
}

func TestRecordRideValidation(t *testing.T) {
	e := newEnv(t)
	svc := newMetering(e)

	_, err := svc.RecordRide(context.Background(), " ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.RecordRide(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestRecordRideConcurrentCallsNeverOvershoot(t *testing.T) {
	e := newEnv(t)
	p := e.provider(t, "joao", "5511999990001")
	svc := newMetering(e)
	ctx := context.Background()

	const remaining = 5
	_, err := e.subscriptions.SetTrialRides(ctx, p.ID, remaining, fixedNow)
	require.NoError(t, err)

	const callers = 16
	var (
		wg                  sync.WaitGroup
		mu                  sync.Mutex
		successes, rejected int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.RecordRide(ctx, p.ID)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Success {
				successes++
			} else {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, remaining, successes)
	assert.Equal(t, callers-remaining, rejected)
	sub, err := e.subscriptions.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, sub.TrialRidesRemaining)
	assert.Equal(t, remaining, sub.RidesUsed)
}
