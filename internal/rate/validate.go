package rate

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

var (
	// ErrSchema reports a payload whose shape or types do not match the
	// expected document.
	ErrSchema = errors.New("schema error")
	// ErrMissingCurrency reports a well-formed payload that carries no rates
	// for the requested base currency.
	ErrMissingCurrency = errors.New("missing currency")
)

// Validate parses a raw payload of the form
//
//	{"date": "2024-04-01", "eur": {"usd": 1.08, ...}}
//
// into a Snapshot for base. Target codes are upper-cased. Zero and negative
// rates are accepted as long as they are finite JSON numbers. Any string date
// is accepted; Snapshot.Date is set only when it parses.
func Validate(raw []byte, base string) (Snapshot, error) {
	if !ValidCode(base) {
		return Snapshot{}, fmt.Errorf("%w: invalid base currency %q", ErrSchema, base)
	}
	if !gjson.ValidBytes(raw) {
		return Snapshot{}, fmt.Errorf("%w: payload is not valid JSON", ErrSchema)
	}

	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return Snapshot{}, fmt.Errorf("%w: payload is not an object", ErrSchema)
	}

	dateField := doc.Get("date")
	if !dateField.Exists() {
		return Snapshot{}, fmt.Errorf("%w: missing date", ErrSchema)
	}
	if dateField.Type != gjson.String {
		return Snapshot{}, fmt.Errorf("%w: date must be a string, got %s", ErrSchema, dateField.Type)
	}
	// Rows are keyed by the requested day, so an odd date string is kept
	// for the caller to report rather than rejected.
	date, _ := time.Parse(DateFormat, dateField.Str)

	base = strings.ToUpper(base)
	nested := doc.Get(strings.ToLower(base))
	if !nested.Exists() || nested.Type == gjson.Null {
		return Snapshot{}, fmt.Errorf("%w: no rates for %s", ErrMissingCurrency, base)
	}
	if !nested.IsObject() {
		return Snapshot{}, fmt.Errorf("%w: rates for %s must be an object", ErrSchema, base)
	}

	rates := make(map[string]float64)
	var fieldErr error
	nested.ForEach(func(key, value gjson.Result) bool {
		code := strings.ToUpper(key.String())
		if value.Type != gjson.Number {
			fieldErr = fmt.Errorf("%w: rate %s/%s is not a number", ErrSchema, base, code)
			return false
		}
		if _, dup := rates[code]; dup {
			fieldErr = fmt.Errorf("%w: duplicate rate %s/%s", ErrSchema, base, code)
			return false
		}
		// gjson saturates out-of-range literals such as 1e400 to ±Inf.
		f := value.Float()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			fieldErr = fmt.Errorf("%w: rate %s/%s is not finite", ErrSchema, base, code)
			return false
		}
		rates[code] = f
		return true
	})
	if fieldErr != nil {
		return Snapshot{}, fieldErr
	}
	if len(rates) == 0 {
		return Snapshot{}, fmt.Errorf("%w: empty rates for %s", ErrMissingCurrency, base)
	}

	return Snapshot{Date: date, RawDate: dateField.Str, Base: base, Rates: rates}, nil
}

// ValidCode reports whether code looks like an ISO 4217 currency code.
func ValidCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}
