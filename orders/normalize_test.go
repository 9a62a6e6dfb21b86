package orders

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_ScheduleDateIsLocalMidnight(t *testing.T) {
	for _, zone := range []string{"UTC", "America/New_York", "Asia/Kolkata"} {
		t.Run(zone, func(t *testing.T) {
			loc, err := time.LoadLocation(zone)
			require.NoError(t, err)

			p, err := Normalize(mustKind(t, "receipt"), completeReceipt(), loc, time.Now())
			require.NoError(t, err)

			want := time.Date(2024, time.March, 15, 0, 0, 0, 0, loc)
			assert.True(t, want.Equal(p.ScheduleDate), "got %s", p.ScheduleDate)
			assert.Equal(t, loc, p.ScheduleDate.Location())
		})
	}
}

func TestNormalize_MissingDateFallsBackToNow(t *testing.T) {
	d := completeTransfer()
	delete(d.Header, "schedule_date")
	now := time.Date(2024, time.June, 1, 13, 45, 0, 0, time.UTC)

	p, err := Normalize(mustKind(t, "transfer"), d, time.UTC, now)
	require.NoError(t, err)
	assert.True(t, now.Equal(p.ScheduleDate))
}

func TestNormalize_Quantities(t *testing.T) {
	k := mustKind(t, "delivery")

	for _, raw := range []string{"3", "2.5", "0.125", "1000000", " 7 "} {
		t.Run(raw, func(t *testing.T) {
			d := completeReceipt()
			d.Kind = "delivery"
			d.Header["delivery_address"] = "1 Main St"
			d.Lines[0].Quantity = raw

			p, err := Normalize(k, d, time.UTC, time.Now())
			require.NoError(t, err)
			require.Len(t, p.Lines, 1)

			want, err := decimal.NewFromString(strings.TrimSpace(raw))
			require.NoError(t, err)
			assert.True(t, want.Equal(p.Lines[0].Quantity), "got %s", p.Lines[0].Quantity)
			assert.Nil(t, p.Lines[0].UnitCost, "deliveries never carry unit costs")
		})
	}
}

func TestNormalize_DropsPlaceholdersAndPassesHeader(t *testing.T) {
	k := mustKind(t, "receipt")
	d := completeReceipt()
	d.Lines = []Line{
		{ProductRef: "P1", Quantity: "3", UnitCost: "4.20"},
		{Quantity: "1"},
		{ProductRef: "P2", Quantity: "1.5"},
	}

	p, err := Normalize(k, d, time.UTC, time.Now())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"receive_from": "ACME Supplies",
		"warehouse_id": "W1",
		"location_id":  "L1",
	}, p.Header)
	require.Len(t, p.Lines, 2)
	assert.Equal(t, "P1", p.Lines[0].ProductID)
	require.NotNil(t, p.Lines[0].UnitCost)
	assert.Equal(t, "4.2", p.Lines[0].UnitCost.String())
	assert.Equal(t, "P2", p.Lines[1].ProductID)
	assert.Nil(t, p.Lines[1].UnitCost, "empty unit cost means catalog default")
}

func TestNormalize_Rejects(t *testing.T) {
	k := mustKind(t, "receipt")

	t.Run("no product lines", func(t *testing.T) {
		d := completeReceipt()
		d.Lines = []Line{{Quantity: "1"}}
		_, err := Normalize(k, d, time.UTC, time.Now())
		assert.ErrorIs(t, err, ErrNotNormalizable)
	})

	t.Run("bad quantity", func(t *testing.T) {
		d := completeReceipt()
		d.Lines[0].Quantity = "x"
		_, err := Normalize(k, d, time.UTC, time.Now())
		assert.ErrorIs(t, err, ErrNotNormalizable)
	})

	t.Run("exponent quantity", func(t *testing.T) {
		d := completeReceipt()
		d.Lines[0].Quantity = "1e200000000"
		_, err := Normalize(k, d, time.UTC, time.Now())
		assert.ErrorIs(t, err, ErrNotNormalizable)
	})

	t.Run("bad date", func(t *testing.T) {
		d := completeReceipt()
		d.Header["schedule_date"] = "tomorrow"
		_, err := Normalize(k, d, time.UTC, time.Now())
		assert.ErrorIs(t, err, ErrNotNormalizable)
	})
}

func TestPayload_MarshalJSON(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	d := completeTransfer()
	d.Header["notes"] = "fragile"
	d.Lines[0].Quantity = "2.50"

	p, err := Normalize(mustKind(t, "transfer"), d, loc, time.Now())
	require.NoError(t, err)

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))

	assert.Equal(t, "2024-03-15T00:00:00+02:00", body["schedule_date"])
	assert.Equal(t, "W1", body["from_warehouse_id"])
	assert.Equal(t, "L2", body["to_location_id"])
	assert.Equal(t, "fragile", body["notes"])

	products := body["products"].([]interface{})
	require.Len(t, products, 1)
	line := products[0].(map[string]interface{})
	assert.Equal(t, "P1", line["product_id"])
	assert.Equal(t, 2.5, line["quantity"], "quantities are JSON numbers")
	assert.NotContains(t, line, "unit_cost")
}

func TestPayload_MarshalJSONOmitsEmptyOptionalFields(t *testing.T) {
	p, err := Normalize(mustKind(t, "transfer"), completeTransfer(), time.UTC, time.Now())
	require.NoError(t, err)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "notes")
}

func TestParseDate(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	got, err := ParseDate("2024-03-15", loc)
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 15, 0, 0, 0, 0, loc).Equal(got), "got %s", got)

	got, err = ParseDate("2024-03-15T22:30:00Z", loc)
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 15, 0, 0, 0, 0, loc).Equal(got), "23:30 in Berlin is still the 15th, got %s", got)

	_, err = ParseDate("03/15/2024", loc)
	assert.Error(t, err)
}
