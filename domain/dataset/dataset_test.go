package dataset

import (
	"math"
	"testing"

	"zerofield/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() *Dataset {
	return &Dataset{
		Name:  "bao_test",
		Probe: ProbeBAO,
		Observations: []Observation{
			{Z: 0.1, Value: 1.0, Sigma: 0.1},
			{Z: 0.5, Value: 1.05, Sigma: 0.1},
		},
	}
}

func TestDataset_ValidateAcceptsGoodData(t *testing.T) {
	require.NoError(t, sampleDataset().Validate())
}

func TestDataset_ValidateRejectsBadRecords(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Dataset)
		field  string
	}{
		{"zero sigma", func(d *Dataset) { d.Observations[1].Sigma = 0 }, "sigma"},
		{"negative sigma", func(d *Dataset) { d.Observations[0].Sigma = -0.1 }, "sigma"},
		{"negative z", func(d *Dataset) { d.Observations[0].Z = -0.01 }, "z"},
		{"NaN value", func(d *Dataset) { d.Observations[1].Value = math.NaN() }, "value"},
		{"infinite z", func(d *Dataset) { d.Observations[1].Z = math.Inf(1) }, "z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := sampleDataset()
			tt.mutate(ds)
			err := ds.Validate()
			require.Error(t, err)
			assert.True(t, core.IsDataIntegrityError(err))

			var die *core.DataIntegrityError
			require.ErrorAs(t, err, &die)
			assert.Equal(t, tt.field, die.Field)
		})
	}
}

func TestDataset_ValidateRejectsEmpty(t *testing.T) {
	ds := &Dataset{Name: "empty", Probe: ProbeSNe}
	assert.True(t, core.IsDataIntegrityError(ds.Validate()))
}

func TestFromColumns_MismatchedLengths(t *testing.T) {
	_, err := FromColumns("sn", ProbeSNe, []float64{0.1, 0.2}, []float64{40}, []float64{0.1, 0.1})
	require.Error(t, err)
	assert.True(t, core.IsDataIntegrityError(err))

	ds, err := FromColumns("sn", ProbeSNe, []float64{0.1}, []float64{40}, []float64{0.1})
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
}

func TestBundle_RedshiftUnionAndFingerprint(t *testing.T) {
	sn := &Dataset{Name: "sn", Probe: ProbeSNe, Observations: []Observation{
		{Z: 0.5, Value: 42, Sigma: 0.2},
		{Z: 0.05, Value: 36, Sigma: 0.2},
	}}
	b, err := NewBundle(sampleDataset(), sn)
	require.NoError(t, err)

	assert.Equal(t, []Probe{ProbeBAO, ProbeSNe}, b.Probes())
	assert.Equal(t, []float64{0.05, 0.1, 0.5}, b.Redshifts())
	assert.Equal(t, 4, b.TotalPoints())

	b2, err := NewBundle(sn, sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, b.Fingerprint(), b2.Fingerprint())
}

func TestBundle_RejectsDuplicatesAndInvalid(t *testing.T) {
	_, err := NewBundle(sampleDataset(), sampleDataset())
	assert.True(t, core.IsDataIntegrityError(err))

	bad := sampleDataset()
	bad.Observations[0].Sigma = 0
	_, err = NewBundle(bad)
	assert.True(t, core.IsDataIntegrityError(err))

	_, err = NewBundle()
	assert.True(t, core.IsDataIntegrityError(err))
}

func TestParseProbe(t *testing.T) {
	for in, want := range map[string]Probe{"BAO": ProbeBAO, "sn": ProbeSNe, "CMB": ProbeCMB, "hz": ProbeHubble} {
		got, err := ParseProbe(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseProbe("lensing")
	assert.Error(t, err)
}

func TestBundle_RejectsUnknownProbe(t *testing.T) {
	lensing := &Dataset{Name: "lensing", Probe: "lensing", Observations: []Observation{
		{Z: 3.5, Value: 1e6, Sigma: 0.001},
	}}
	assert.False(t, lensing.Probe.Known())
	assert.True(t, ProbeHubble.Known())

	_, err := NewBundle(sampleDataset(), lensing)
	require.Error(t, err)
	assert.True(t, core.IsDataIntegrityError(err))
	assert.Contains(t, err.Error(), `unknown probe "lensing"`)
}
