package models

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/ajitpratap0/sfbridge/pkg/errors"
)

const (
	dayStart = "T00:00:00Z"
	dayEnd   = "T23:59:59Z"
)

// DateRange is an optional inclusive calendar-date window on LastModifiedDate.
// Either bound may be absent.
type DateRange struct {
	From *civil.Date
	To   *civil.Date
}

// ParseDateRange parses YYYY-MM-DD bounds. An empty string means the bound is absent.
func ParseDateRange(from, to string) (DateRange, error) {
	var r DateRange

	var err error
	if r.From, err = parseDate("from", from); err != nil {
		return DateRange{}, err
	}
	if r.To, err = parseDate("to", to); err != nil {
		return DateRange{}, err
	}

	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return DateRange{}, errors.New(errors.ErrorTypeValidation, "from date is after to date").
			WithDetail("from", r.From.String()).
			WithDetail("to", r.To.String())
	}
	return r, nil
}

func parseDate(name, value string) (*civil.Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(value)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, name+" must be a YYYY-MM-DD date").
			WithDetail(name, value)
	}
	return &d, nil
}

// IsZero reports whether both bounds are absent
func (r DateRange) IsZero() bool {
	return r.From == nil && r.To == nil
}

// LowerBound renders From at the start of the day, or "" when absent
func (r DateRange) LowerBound() string {
	if r.From == nil {
		return ""
	}
	return r.From.String() + dayStart
}

// UpperBound renders To at the last second of the day, or "" when absent
func (r DateRange) UpperBound() string {
	if r.To == nil {
		return ""
	}
	return r.To.String() + dayEnd
}
