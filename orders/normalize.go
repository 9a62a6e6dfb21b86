package orders

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used by date header fields
const DateLayout = "2006-01-02"

// ErrNotNormalizable is returned when a draft cannot be converted to a payload
var ErrNotNormalizable = errors.New("draft cannot be normalized")

// PayloadLine is one product line in the submission payload
type PayloadLine struct {
	ProductID string
	Quantity  decimal.Decimal
	UnitCost  *decimal.Decimal
}

// Payload is the canonical submission body for an order kind. Only one
// date field per kind is supported; it is sent as schedule_date.
type Payload struct {
	Header       map[string]string
	ScheduleDate time.Time
	Lines        []PayloadLine
}

type wireLine struct {
	ProductID string       `json:"product_id"`
	Quantity  json.Number  `json:"quantity"`
	UnitCost  *json.Number `json:"unit_cost,omitempty"`
}

// MarshalJSON flattens header fields next to schedule_date and products
func (p *Payload) MarshalJSON() ([]byte, error) {
	body := make(map[string]interface{}, len(p.Header)+2)
	for name, value := range p.Header {
		body[name] = value
	}
	body["schedule_date"] = p.ScheduleDate.Format(time.RFC3339)

	products := make([]wireLine, 0, len(p.Lines))
	for _, line := range p.Lines {
		wl := wireLine{
			ProductID: line.ProductID,
			Quantity:  json.Number(line.Quantity.String()),
		}
		if line.UnitCost != nil {
			cost := json.Number(line.UnitCost.String())
			wl.UnitCost = &cost
		}
		products = append(products, wl)
	}
	body["products"] = products

	return json.Marshal(body)
}

// ParseDate reads a calendar date as midnight in loc. Full RFC 3339
// timestamps are accepted as well and truncated to their local date.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(DateLayout, raw, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}

// Normalize converts a validated draft into its submission payload.
// Placeholder lines are dropped and the schedule date becomes a timestamp at
// local midnight, or now when the draft has none.
func Normalize(k *Kind, d *Draft, loc *time.Location, now time.Time) (*Payload, error) {
	p := &Payload{
		Header:       make(map[string]string),
		ScheduleDate: now.In(loc),
	}

	for _, f := range k.Fields {
		value := d.Header[f.Name]
		if value == "" {
			continue
		}
		if f.Date {
			t, err := ParseDate(value, loc)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrNotNormalizable, err)
			}
			p.ScheduleDate = t
			continue
		}
		p.Header[f.Name] = value
	}

	for i, line := range d.Lines {
		if line.Placeholder() {
			continue
		}
		q, ok := ParseQuantity(line.Quantity)
		if !ok {
			return nil, fmt.Errorf("%w: line %d has quantity %q", ErrNotNormalizable, i, line.Quantity)
		}
		pl := PayloadLine{ProductID: line.ProductRef, Quantity: q}
		if k.UnitCost {
			cost, ok := ParseUnitCost(line.UnitCost)
			if !ok {
				return nil, fmt.Errorf("%w: line %d has unit cost %q", ErrNotNormalizable, i, line.UnitCost)
			}
			pl.UnitCost = cost
		}
		p.Lines = append(p.Lines, pl)
	}

	if len(p.Lines) == 0 {
		return nil, fmt.Errorf("%w: no product lines", ErrNotNormalizable)
	}
	return p, nil
}
