package orders

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Messages reported for line problems
const (
	MsgSelectProduct = "Please select a product for all items"
	MsgValidQuantity = "Please enter valid quantities (greater than 0)"
	MsgValidUnitCost = "Please enter valid unit costs"
	MsgAddOneProduct = "Please add at least one product"
)

// Violations is the list of reasons a draft cannot be submitted
type Violations []string

// Error joins the violations into one message
func (v Violations) Error() string {
	return strings.Join(v, "; ")
}

// Valid reports whether there is nothing to report
func (v Violations) Valid() bool {
	return len(v) == 0
}

// Validate decides whether a draft is ready to submit. Checks run in a fixed
// order and the first failing class is the only one reported.
func Validate(k *Kind, d *Draft) Violations {
	if v := validateHeader(k, d); len(v) > 0 {
		return v
	}

	// A draft without any product is reported as empty rather than as a
	// draft with unselected products.
	if countProducts(d) == 0 {
		return Violations{MsgAddOneProduct}
	}
	for _, line := range d.Lines {
		if line.Placeholder() {
			return Violations{MsgSelectProduct}
		}
	}

	for _, line := range d.Lines {
		if _, ok := ParseQuantity(line.Quantity); !ok {
			return Violations{MsgValidQuantity}
		}
	}
	if k.UnitCost {
		for _, line := range d.Lines {
			if _, ok := ParseUnitCost(line.UnitCost); !ok {
				return Violations{MsgValidUnitCost}
			}
		}
	}

	return nil
}

func validateHeader(k *Kind, d *Draft) Violations {
	var v Violations
	for _, f := range k.Fields {
		if f.Required && strings.TrimSpace(d.Header[f.Name]) == "" {
			msg := f.Message
			if msg == "" {
				msg = fmt.Sprintf("%s is required", f.Label)
			}
			v = append(v, msg)
			continue
		}
		if f.Date && d.Header[f.Name] != "" {
			if _, err := ParseDate(d.Header[f.Name], time.Local); err != nil {
				v = append(v, fmt.Sprintf("%s must be a valid date", f.Label))
			}
		}
	}
	if k.Distinct != nil {
		a := d.Header[k.Distinct.Fields[0]]
		b := d.Header[k.Distinct.Fields[1]]
		if a != "" && a == b {
			v = append(v, k.Distinct.Message)
		}
	}
	return v
}

func countProducts(d *Draft) int {
	n := 0
	for _, line := range d.Lines {
		if !line.Placeholder() {
			n++
		}
	}
	return n
}

// plainNumber is the decimal notation a number input produces. Exponents are
// refused so that a short input cannot expand into a huge wire value.
var plainNumber = regexp.MustCompile(`^[0-9]{1,12}(\.[0-9]{1,6})?$|^\.[0-9]{1,6}$`)

func parsePlain(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if !plainNumber.MatchString(raw) {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

// ParseQuantity parses raw quantity input. Only plain decimals greater than
// zero are accepted, with at most 12 integer and 6 fractional digits.
func ParseQuantity(raw string) (decimal.Decimal, bool) {
	q, ok := parsePlain(raw)
	if !ok || !q.IsPositive() {
		return decimal.Zero, false
	}
	return q, true
}

// ParseUnitCost parses raw unit cost input. Empty input means the catalog
// default and yields ok with a nil cost.
func ParseUnitCost(raw string) (*decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	c, ok := parsePlain(raw)
	if !ok {
		return nil, false
	}
	return &c, true
}
