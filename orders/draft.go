package orders

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Line field names accepted by UpdateLine
const (
	FieldProduct  = "product_id"
	FieldQuantity = "quantity"
	FieldUnitCost = "unit_cost"
)

// DefaultQuantity is the quantity of a freshly added line
const DefaultQuantity = "1"

var (
	// ErrLastLine is returned when removing the only remaining line
	ErrLastLine = errors.New("a draft must keep at least one line")
	// ErrLineIndex is returned for a line index outside the draft
	ErrLineIndex = errors.New("line index out of range")
	// ErrUnknownField is returned for a field the order kind does not have
	ErrUnknownField = errors.New("unknown field")
	// ErrDependencyUnset is returned when setting a field whose parent is empty
	ErrDependencyUnset = errors.New("dependent field requires its parent to be set")
	// ErrInvalidOption is returned for a value outside a field's options
	ErrInvalidOption = errors.New("value is not one of the allowed options")
)

// Line is one product entry of a draft. Values are raw user input.
type Line struct {
	ProductRef string `json:"product_id"`
	Quantity   string `json:"quantity"`
	UnitCost   string `json:"unit_cost,omitempty"`
}

// Placeholder reports whether the line has no product selected
func (l Line) Placeholder() bool {
	return l.ProductRef == ""
}

// Annotation is a server-reported stock shortfall for one product
type Annotation struct {
	ProductRef        string          `json:"product_id"`
	ProductName       string          `json:"product_name"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
}

// Draft is an unsaved receipt, delivery or transfer
type Draft struct {
	Kind        string            `json:"kind"`
	RecordID    string            `json:"record_id,omitempty"`
	Header      map[string]string `json:"header"`
	Lines       []Line            `json:"lines"`
	Annotations []Annotation      `json:"annotations"`
}

// NewDraft returns an empty draft of the given kind with one placeholder line.
// today is the calendar date (YYYY-MM-DD) used for date fields.
func NewDraft(k *Kind, today string) *Draft {
	d := &Draft{}
	d.Reset(k, nil, today)
	return d
}

// AddLine appends a placeholder line
func (d *Draft) AddLine() {
	d.Lines = append(d.Lines, Line{Quantity: DefaultQuantity})
}

// RemoveLine removes the line at index i. The last remaining line is never removed.
func (d *Draft) RemoveLine(i int) error {
	if i < 0 || i >= len(d.Lines) {
		return fmt.Errorf("%w: %d (draft has %d lines)", ErrLineIndex, i, len(d.Lines))
	}
	if len(d.Lines) == 1 {
		return ErrLastLine
	}
	d.Lines = append(d.Lines[:i], d.Lines[i+1:]...)
	return nil
}

// UpdateLine stores a raw value into one field of the line at index i
func (d *Draft) UpdateLine(k *Kind, i int, field, value string) error {
	if i < 0 || i >= len(d.Lines) {
		return fmt.Errorf("%w: %d (draft has %d lines)", ErrLineIndex, i, len(d.Lines))
	}

	line := &d.Lines[i]
	switch field {
	case FieldProduct:
		line.ProductRef = value
	case FieldQuantity:
		line.Quantity = value
	case FieldUnitCost:
		if !k.UnitCost {
			return fmt.Errorf("%w: %s does not apply to %s", ErrUnknownField, field, k.Name)
		}
		line.UnitCost = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

// SetHeader sets a header field. Fields depending on it are cleared when its
// value changes, and a dependent field cannot be set while its parent is empty.
func (d *Draft) SetHeader(k *Kind, field, value string) error {
	f, ok := k.Field(field)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	if f.DependsOn != "" && value != "" && d.Header[f.DependsOn] == "" {
		return fmt.Errorf("%w: select %s first", ErrDependencyUnset, f.DependsOn)
	}
	if value != "" && len(f.Options) > 0 && !contains(f.Options, value) {
		return fmt.Errorf("%w: %s=%q", ErrInvalidOption, field, value)
	}

	if d.Header == nil {
		d.Header = make(map[string]string)
	}
	if d.Header[field] != value {
		for _, dep := range k.Dependents(field) {
			delete(d.Header, dep)
		}
	}
	if value == "" {
		delete(d.Header, field)
	} else {
		d.Header[field] = value
	}
	return nil
}

// Reset replaces the draft with a fresh one, or with the values of initial
// when editing an existing record. Annotations are always cleared.
func (d *Draft) Reset(k *Kind, initial *Draft, today string) {
	header := make(map[string]string)
	var lines []Line
	recordID := ""

	if initial != nil {
		for name, value := range initial.Header {
			if _, ok := k.Field(name); ok && value != "" {
				header[name] = value
			}
		}
		lines = append(lines, initial.Lines...)
		recordID = initial.RecordID
	}
	for _, f := range k.Fields {
		if f.Date && header[f.Name] == "" {
			header[f.Name] = today
		}
	}
	if len(lines) == 0 {
		lines = []Line{{Quantity: DefaultQuantity}}
	}

	*d = Draft{
		Kind:        k.Name,
		RecordID:    recordID,
		Header:      header,
		Lines:       lines,
		Annotations: []Annotation{},
	}
}

// Flagged reports whether the line at index i matches an out-of-stock annotation
func (d *Draft) Flagged(i int) bool {
	if i < 0 || i >= len(d.Lines) || d.Lines[i].Placeholder() {
		return false
	}
	for _, a := range d.Annotations {
		if a.ProductRef == d.Lines[i].ProductRef {
			return true
		}
	}
	return false
}

// FlaggedLines returns the indexes of all flagged lines
func (d *Draft) FlaggedLines() []int {
	out := []int{}
	for i := range d.Lines {
		if d.Flagged(i) {
			out = append(out, i)
		}
	}
	return out
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
