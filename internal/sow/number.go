package sow

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a numeric document field. Language models emit numbers as JSON
// numbers, numeric strings, null, or garbage; Number accepts all of them and
// records whether a finite value was recovered.
type Number struct {
	Value float64
	Valid bool
}

// Num returns a valid Number unless v is NaN or infinite.
func Num(v float64) Number {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Number{}
	}
	return Number{Value: v, Valid: true}
}

// ParseNumber interprets s leniently: surrounding space, a leading "$" and
// thousands separators are ignored.
func ParseNumber(s string) Number {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return Number{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number{}
	}
	return Num(f)
}

// Float returns the value, or zero when the number is not valid.
func (n Number) Float() float64 {
	if !n.Valid {
		return 0
	}
	return n.Value
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.Value, 'f', -1, 64)), nil
}

// UnmarshalJSON never fails: unusable input leaves the number invalid.
func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		*n = ParseNumber(str)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	*n = Num(f)
	return nil
}

// Rate is a role's hourly rate. The model frequently puts the rate-card role
// name in this field ("rate": "Tech - Specialist"), so the textual form is
// kept alongside the numeric interpretation and written back the way it
// arrived.
type Rate struct {
	Text   string
	Value  Number
	Quoted bool
}

// NumericRate builds a rate serialized as a JSON number.
func NumericRate(v float64) Rate {
	return Rate{Text: formatFloat(v), Value: Num(v)}
}

// TextRate builds a rate serialized as a JSON string.
func TextRate(s string) Rate {
	return Rate{Text: s, Value: ParseNumber(s), Quoted: true}
}

// Resolved returns the usable hourly rate. Zero and negative values do not
// count as a rate.
func (r Rate) Resolved() (float64, bool) {
	if r.Value.Valid && r.Value.Value > 0 {
		return r.Value.Value, true
	}
	return 0, false
}

// With returns r holding v, keeping r's serialization form. A rate that was
// absent is stored as a string.
func (r Rate) With(v float64) Rate {
	if !r.Quoted && r.Text != "" {
		return NumericRate(v)
	}
	return TextRate(formatFloat(v))
}

func (r Rate) MarshalJSON() ([]byte, error) {
	if r.Quoted {
		return json.Marshal(r.Text)
	}
	return r.Value.MarshalJSON()
}

func (r *Rate) UnmarshalJSON(b []byte) error {
	*r = Rate{}
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		*r = TextRate(str)
		return nil
	}
	var n Number
	_ = n.UnmarshalJSON(b)
	if !n.Valid {
		return nil
	}
	*r = Rate{Text: s, Value: n}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
