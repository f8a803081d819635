// File: internal/monitor/monitor_test.go (complete file)

package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baptistax/connscope/internal/conninfo"
	"github.com/baptistax/connscope/internal/controller"
	"github.com/baptistax/connscope/internal/ipcodec"
)

func collect() (*Monitor, *[]Event) {
	var got []Event
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := New(Options{Now: func() time.Time { return now }}, func(e Event) { got = append(got, e) })
	return m, &got
}

func live(asn uint32, v4 ...uint32) controller.Update {
	return controller.Update{
		State:     controller.LiveFocused,
		Reason:    controller.EventActivate,
		Snapshot:  &conninfo.Snapshot{ASNumber: asn},
		Addresses: ipcodec.Set{V4: v4},
	}
}

func TestMonitor_ActivateThenLive(t *testing.T) {
	m, got := collect()
	m.Notify(controller.Update{State: controller.Activating, Reason: controller.EventActivate})
	u := live(13335, 16843009)
	u.Recorded = &conninfo.Stored{ID: 4}
	m.Notify(u)

	require.Len(t, *got, 2)
	assert.Equal(t, KindActivating, (*got)[0].Kind)
	ev := (*got)[1]
	assert.Equal(t, KindLive, ev.Kind)
	require.NotNil(t, ev.Current)
	assert.Equal(t, []string{"1.1.1.1"}, ev.Current.Addresses)
	assert.Nil(t, ev.Previous)
	require.NotNil(t, ev.RecordedID)
	assert.Equal(t, uint64(4), *ev.RecordedID)
	assert.Contains(t, ev.Text(), "LIVE live [saved #4]")
}

func TestMonitor_LiveOnDifferentConnection(t *testing.T) {
	m, got := collect()
	m.Notify(live(13335, 16843009))
	m.Notify(live(13335, 16843009))
	m.Notify(live(13335, 42390786))

	require.Len(t, *got, 3)
	assert.Equal(t, "live", (*got)[1].Message)
	assert.Nil(t, (*got)[1].Previous)
	assert.Equal(t, "live on a different connection", (*got)[2].Message)
	require.NotNil(t, (*got)[2].Previous)
	assert.Equal(t, []string{"1.1.1.1"}, (*got)[2].Previous.Addresses)
}

func TestMonitor_OfflineCollapsesAndRecovers(t *testing.T) {
	m, got := collect()
	m.Notify(live(13335))
	m.Notify(controller.Update{State: controller.Offline, Reason: controller.EventOffline})
	m.Notify(controller.Update{State: controller.Offline, Reason: controller.EventOffline})
	m.Notify(controller.Update{State: controller.Activating, Reason: controller.EventPeriodicCheck})

	require.Len(t, *got, 3)
	assert.Equal(t, KindOffline, (*got)[1].Kind)
	assert.Equal(t, KindActivating, (*got)[2].Kind)
	assert.Equal(t, "origin reachable again, refreshing", (*got)[2].Message)
}

func TestMonitor_ChangedCarriesFields(t *testing.T) {
	m, got := collect()
	m.Notify(live(13335))
	m.Notify(controller.Update{
		State:   controller.Activating,
		Reason:  controller.EventConnectionChanged,
		Changed: []string{"DatacenterCode"},
	})

	require.Len(t, *got, 2)
	ev := (*got)[1]
	assert.Equal(t, KindChanged, ev.Kind)
	assert.Equal(t, []string{"DatacenterCode"}, ev.Changed)
	require.NotNil(t, ev.Previous)
	assert.Equal(t, uint32(13335), ev.Previous.ASN)
}

func TestMonitor_FocusOnlyOnStateChange(t *testing.T) {
	m, got := collect()
	m.Notify(live(13335))
	m.Notify(controller.Update{State: controller.LiveFocused, Reason: controller.EventFocus})
	m.Notify(controller.Update{State: controller.LiveBlurred, Reason: controller.EventBlur, Suppressed: true})

	require.Len(t, *got, 2)
	assert.Equal(t, KindFocus, (*got)[1].Kind)
	assert.Equal(t, "blurred", (*got)[1].Message)
	assert.True(t, (*got)[1].Suppressed)
}
