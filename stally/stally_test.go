package stally_test

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stagehand-audio/stagehand/sproto"
	"github.com/stagehand-audio/stagehand/stally"
	"github.com/stretchr/testify/require"
)

func TestTracker(t *testing.T) {
	t.Parallel()

	tr := stally.NewTracker[sproto.MessageKind]()
	require.Zero(t, tr.Get(sproto.BeatDataKind))

	tr.Record(sproto.BeatDataKind, 8)
	tr.Record(sproto.BeatDataKind, 8)
	tr.Record(sproto.HeartbeatKind, 30)

	require.Equal(t, stally.Entry{Count: 2, Bytes: 16}, tr.Get(sproto.BeatDataKind))
	require.Equal(t, stally.Entry{Count: 3, Bytes: 46}, tr.Total())

	snap := tr.Snapshot()
	require.Len(t, snap, 2)

	// Snapshot is a copy.
	tr.Record(sproto.BeatDataKind, 1)
	require.Equal(t, stally.Entry{Count: 2, Bytes: 16}, snap[sproto.BeatDataKind])

	require.Equal(t,
		[]sproto.MessageKind{sproto.BeatDataKind, sproto.HeartbeatKind},
		stally.SortedKeys(snap),
	)

	tr.Reset()
	require.Empty(t, tr.Snapshot())
	require.Zero(t, tr.Total())
}

func TestTracker_Record_panicsOnNegativeSize(t *testing.T) {
	t.Parallel()

	tr := stally.NewTracker[sproto.RequestKind]()
	require.Panics(t, func() {
		tr.Record(sproto.PingKind, -1)
	})
}

func TestTracker_concurrentReaders(t *testing.T) {
	t.Parallel()

	tr := stally.NewTracker[sproto.RequestKind]()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 1000 {
			tr.Record(sproto.ControlCommandKind, 3)
		}
	}()
	go func() {
		defer wg.Done()
		for range 1000 {
			_ = tr.Snapshot()
			_ = tr.Total()
		}
	}()
	wg.Wait()

	require.Equal(t, stally.Entry{Count: 1000, Bytes: 3000}, tr.Get(sproto.ControlCommandKind))
}

func TestCollector(t *testing.T) {
	t.Parallel()

	tr := stally.NewTracker[sproto.MessageKind]()
	tr.Record(sproto.TransportDataKind, 9)
	tr.Record(sproto.TransportDataKind, 9)
	tr.Record(sproto.CueDataKind, 400)

	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(stally.NewCollector("received", tr))

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got := map[string]map[string]float64{}
	for _, mf := range mfs {
		byKind := map[string]float64{}
		for _, m := range mf.GetMetric() {
			byKind[labelValue(m, "kind")] = m.GetCounter().GetValue()
		}
		got[mf.GetName()] = byKind
	}

	require.Equal(t, map[string]map[string]float64{
		"stagehand_received_messages_total": {"TransportData": 2, "CueData": 1},
		"stagehand_received_bytes_total":    {"TransportData": 18, "CueData": 400},
	}, got)
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
