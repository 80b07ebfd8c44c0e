package reading

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bina-refinery/logbook/internal/catalog"
	"github.com/bina-refinery/logbook/internal/models"
	"github.com/bina-refinery/logbook/internal/storage"
	"github.com/bina-refinery/logbook/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pressureCatalog = `
variant: %s
locations:
  - name: Column
    parameters:
      - { name: Pressure, unit: bar, min: 1, max: 3 }
      - { name: Level, unit: "%" }
unit_types:
  Pressure: pressure
units:
  pressure:
    - { unit: bar, factor: 1 }
    - { unit: kPa, factor: 0.01 }
`

var fixedNow = time.Date(2024, 3, 1, 8, 30, 15, 500, time.Local)

type fixture struct {
	svc       *Service
	table     *testutil.MemoryTable
	store     *storage.LogStore
	publisher *testutil.RecordingPublisher
}

func newFixture(t *testing.T, variant models.Variant, gate bool) fixture {
	t.Helper()
	cat, err := catalog.LoadFromReader(strings.NewReader(strings.Replace(pressureCatalog, "%s", string(variant), 1)), catalog.Options{})
	require.NoError(t, err)

	table := testutil.NewMemoryTable()
	store := storage.NewLogStore(table, storage.SchemaFor(variant))
	require.NoError(t, store.EnsureInitialized(context.Background()))

	pub := &testutil.RecordingPublisher{}
	svc := NewService(cat, store, gate,
		WithClock(func() time.Time { return fixedNow }),
		WithPublisher(pub),
	)
	return fixture{svc: svc, table: table, store: store, publisher: pub}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		text   string
		want   float64
		wantOK bool
	}{
		{text: "value is 123.5 and 99", want: 123.5, wantOK: true},
		{text: "pressure is 2.5", want: 2.5, wantOK: true},
		{text: "42", want: 42, wantOK: true},
		{text: ".75 bar", want: 0.75, wantOK: true},
		{text: "minus -4 degrees", want: -4, wantOK: true},
		{text: "+3.0", want: 3, wantOK: true},
		{text: "reading 7. then", want: 7, wantOK: true},
		{text: "two point five"},
		{text: ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := Extract(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		value float64
		want  models.Status
	}{
		{value: 0.99, want: models.StatusBelowRange},
		{value: 1, want: models.StatusNormal},
		{value: 2, want: models.StatusNormal},
		{value: 3, want: models.StatusNormal},
		{value: 3.01, want: models.StatusAboveRange},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.value, 1, 3), "value %v", tt.value)
	}
	assert.Equal(t, models.StatusNormal, Classify(5, 5, 5))
}

func TestTranscriptWithoutDigitsFailsExtraction(t *testing.T) {
	f := newFixture(t, models.VariantArea, true)

	out, err := f.svc.RecordTranscript(context.Background(), "Column", "Pressure", "two point five")
	assert.Nil(t, out)
	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "two point five", extErr.Transcript)
	assert.Len(t, f.table.Rows(), 1, "only the header")
}

func TestTranscriptAppendsNormalReading(t *testing.T) {
	f := newFixture(t, models.VariantArea, true)

	out, err := f.svc.RecordTranscript(context.Background(), "Column", "Pressure", "pressure is 2.5")
	require.NoError(t, err)
	assert.Equal(t, "pressure is 2.5", out.Transcript)
	assert.Equal(t, models.StatusNormal, out.Reading.Status)
	assert.Equal(t, "Successfully logged: Pressure = 2.5 bar", out.Message)

	rows := f.table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Column", "Pressure", "2.5", "bar", "2024-03-01 08:30:15", "Normal"}, rows[1])
	assert.Len(t, f.publisher.Published(), 1)
}

func TestGatedManualEntryOutOfRangeIsRejected(t *testing.T) {
	f := newFixture(t, models.VariantArea, true)

	out, err := f.svc.RecordValue(context.Background(), Entry{Location: "Column", Parameter: "Pressure", Value: 5.0})
	assert.Nil(t, out)

	var rv *RangeViolationError
	require.ErrorAs(t, err, &rv)
	assert.Equal(t, models.StatusAboveRange, rv.Status)
	assert.Equal(t, 1.0, rv.Min)
	assert.Equal(t, 3.0, rv.Max)
	assert.Equal(t, "ALERT: Pressure value 5 bar is Above Range! Must be between 1 and 3 bar", rv.Error())

	assert.Len(t, f.table.Rows(), 1, "nothing appended")
	assert.Empty(t, f.publisher.Published())
}

func TestUngatedOutOfRangeIsPersisted(t *testing.T) {
	f := newFixture(t, models.VariantEquipment, false)

	out, err := f.svc.RecordValue(context.Background(), Entry{Location: "Column", Parameter: "Pressure", Value: 0.4})
	require.NoError(t, err)
	assert.Equal(t, models.StatusBelowRange, out.Reading.Status, "status still reported")
	assert.Contains(t, out.Message, "Below Range")

	rows := f.table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Column", "Pressure", "0.4", "bar", "2024-03-01 08:30:15"}, rows[1])
}

func TestUnitConversionBeforeClassification(t *testing.T) {
	f := newFixture(t, models.VariantArea, true)

	out, err := f.svc.RecordValue(context.Background(), Entry{Location: "Column", Parameter: "Pressure", Value: 250, Unit: "kPa"})
	require.NoError(t, err)
	assert.InDelta(t, 2.5, out.Reading.Value, 1e-9)
	assert.Equal(t, "bar", out.Reading.Unit)

	_, err = f.svc.RecordValue(context.Background(), Entry{Location: "Column", Parameter: "Pressure", Value: 400, Unit: "kPa"})
	var rv *RangeViolationError
	require.ErrorAs(t, err, &rv)
	assert.InDelta(t, 4.0, rv.Value, 1e-9)

	_, err = f.svc.RecordValue(context.Background(), Entry{Location: "Column", Parameter: "Pressure", Value: 1, Unit: "psi"})
	assert.ErrorIs(t, err, catalog.ErrUnsupportedUnit)
}

func TestParameterWithoutRangeHasNoStatus(t *testing.T) {
	f := newFixture(t, models.VariantArea, true)

	out, err := f.svc.RecordValue(context.Background(), Entry{Location: "Column", Parameter: "Level", Value: 80})
	require.NoError(t, err)
	assert.Equal(t, models.Status(""), out.Reading.Status)
	assert.Equal(t, "", f.table.Rows()[1][5])
}

func TestUnknownSelection(t *testing.T) {
	f := newFixture(t, models.VariantArea, true)

	_, err := f.svc.RecordTranscript(context.Background(), "Tank", "Pressure", "2")
	assert.ErrorIs(t, err, catalog.ErrUnknownLocation)

	_, err = f.svc.RecordValue(context.Background(), Entry{Location: "Column", Parameter: "Flow", Value: 2})
	assert.ErrorIs(t, err, catalog.ErrUnknownParameter)
}

func TestStoreFailureSurfaces(t *testing.T) {
	f := newFixture(t, models.VariantArea, true)
	f.table.FailErr = errors.New("disk full")

	_, err := f.svc.RecordValue(context.Background(), Entry{Location: "Column", Parameter: "Pressure", Value: 2})
	var ioErr *storage.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, f.publisher.Published())
}

func TestPublishFailureDoesNotFailReading(t *testing.T) {
	f := newFixture(t, models.VariantArea, true)
	f.publisher.Fail = true

	out, err := f.svc.RecordValue(context.Background(), Entry{Location: "Column", Parameter: "Pressure", Value: 2})
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Len(t, f.table.Rows(), 2)
}
