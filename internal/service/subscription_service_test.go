package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/guincho-facil/internal/models"
)

func TestSnapshotFallsBackToDefaultWithoutWriting(t *testing.T) {
	e := newEnv(t)
	p := e.provider(t, "joao", "5511999990001")
	svc := NewSubscriptionService(e.providers, e.subscriptions, e.customizations)
	ctx := context.Background()

	snap, err := svc.Snapshot(ctx, ProviderLookup{WhatsApp: "(11) 99999-0001"})
	require.NoError(t, err)
	assert.True(t, snap.Found)
	assert.Equal(t, p.ID, snap.Provider.ID)
	assert.Equal(t, models.DefaultSubscription(p.ID), *snap.Subscription)
	assert.Nil(t, snap.Customization)
	assert.False(t, snap.NeedsPlanSelection)

	stored, err := e.subscriptions.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestSnapshotPrefersProviderID(t *testing.T) {
	e := newEnv(t)
	a := e.provider(t, "joao", "5511999990001")
	e.provider(t, "maria", "5511999990002")
	svc := NewSubscriptionService(e.providers, e.subscriptions, e.customizations)

	snap, err := svc.Snapshot(context.Background(), ProviderLookup{ProviderID: a.ID, WhatsApp: "5511999990002"})
	require.NoError(t, err)
	assert.Equal(t, a.ID, snap.Provider.ID)
}

func TestSnapshotNeedsPlanSelection(t *testing.T) {
	e := newEnv(t)
	p := e.provider(t, "joao", "5511999990001")
	svc := NewSubscriptionService(e.providers, e.subscriptions, e.customizations)
	ctx := context.Background()

	_, err := e.subscriptions.SetTrialRides(ctx, p.ID, 0, fixedNow)
	require.NoError(t, err)
	_, err = e.customizations.Upsert(ctx, models.ProviderCustomization{ProviderID: p.ID, PrimaryColor: "#101010"}, fixedNow)
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx, ProviderLookup{ProviderID: p.ID})
	require.NoError(t, err)
	assert.True(t, snap.NeedsPlanSelection)
	require.NotNil(t, snap.Customization)
	assert.Equal(t, "#101010", snap.Customization.PrimaryColor)
}

func TestSnapshotUnknownProvider(t *testing.T) {
	e := newEnv(t)
	svc := NewSubscriptionService(e.providers, e.subscriptions, e.customizations)

	snap, err := svc.Snapshot(context.Background(), ProviderLookup{ProviderID: "missing"})
	require.NoError(t, err)
	assert.False(t, snap.Found)
	assert.Nil(t, snap.Subscription)

	_, err = svc.Snapshot(context.Background(), ProviderLookup{})
	assert.ErrorIs(t, err, ErrValidation)
}
