// Package extract finds the structured expense a model embeds in its
// free-text reply.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"expense-coach/internal/models"

	"github.com/shopspring/decimal"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// ExpenseTag is the value of the "type" field that marks an expense payload.
const ExpenseTag = "expense"

// payloadSchema constrains an expense-tagged object before it is accepted.
const payloadSchema = `{
	"type": "object",
	"required": ["type", "amount", "category"],
	"properties": {
		"type": {"enum": ["expense"]},
		"amount": {"type": "number"},
		"category": {"type": "string", "pattern": "\\S"},
		"description": {"type": ["string", "null"]},
		"date": {
			"oneOf": [
				{"type": "null"},
				{"type": "string", "maxLength": 0},
				{"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"}
			]
		}
	}
}`

// Amounts must lie in [0, 10^maxAmountExponent) with an exponent no lower
// than minAmountExponent. Exponents are checked before any arithmetic.
const (
	maxAmountExponent = 15
	minAmountExponent = -18
)

var maxAmount = decimal.New(1, maxAmountExponent)

// ErrInvalidPayload is wrapped by ParseError when an expense-tagged object
// does not satisfy the payload schema.
var ErrInvalidPayload = errors.New("invalid expense payload")

// ParseError records why a candidate region was not accepted.
type ParseError struct {
	Start, End int
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("expense payload at [%d:%d]: %v", e.Start, e.End, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Match is a validated payload and the byte range [Start, End) it occupied.
type Match struct {
	Payload models.ExpensePayload
	Start   int
	End     int
}

// Extractor locates expense payloads in model output.
type Extractor struct {
	schema *gojsonschema.Schema
	log    *zap.Logger
}

// New returns an Extractor that reports rejected candidates to log.
func New(log *zap.Logger) *Extractor {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(payloadSchema))
	if err != nil {
		panic(fmt.Sprintf("extract: invalid payload schema: %v", err))
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{schema: schema, log: log}
}

// Extract returns the first brace-balanced region of text that parses as a
// JSON object tagged "type":"expense", validated and normalised. Regions that
// are not JSON, or JSON without the tag, are skipped. If the first tagged
// object fails validation there is no match. Missing or empty dates become
// today. Extract never fails: rejections are logged and reported as no match.
func (x *Extractor) Extract(text string, today time.Time) (Match, bool) {
	braces := newBraceIndex(text)
	for start := strings.IndexByte(text, '{'); start >= 0; {
		end, ok := braces.closing(start)
		if ok {
			region := text[start:end]
			tagged, err := isTagged(region)
			switch {
			case err != nil:
				x.log.Debug("skipping non-JSON brace region",
					zap.Int("start", start), zap.Error(err))
			case tagged:
				payload, err := x.parsePayload(region, today)
				if err != nil {
					x.log.Warn("Error parsing expense",
						zap.Error(&ParseError{Start: start, End: end, Err: err}))
					return Match{}, false
				}
				return Match{Payload: payload, Start: start, End: end}, true
			}
		}

		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return Match{}, false
}

// braceIndex memoizes closing positions. A scan from an opening brace runs
// until that brace closes and resolves every brace it passes outside a
// string, including those that never close. An unbalanced prefix therefore
// costs one scan, not one per brace.
type braceIndex struct {
	text    string
	ends    map[int]int
	scanned map[int]bool
	scans   int
}

func newBraceIndex(text string) *braceIndex {
	return &braceIndex{text: text, ends: map[int]int{}, scanned: map[int]bool{}}
}

// closing returns the index just past the brace that closes the one at open,
// skipping braces inside JSON strings.
func (b *braceIndex) closing(open int) (int, bool) {
	if !b.scanned[open] {
		b.scan(open)
	}
	end, ok := b.ends[open]
	return end, ok
}

func (b *braceIndex) scan(open int) {
	b.scanned[open] = true
	if open < 0 || open >= len(b.text) || b.text[open] != '{' {
		return
	}
	b.scans++
	var stack []int
	inString := false
	escaped := false
	for i := open; i < len(b.text); i++ {
		c := b.text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			b.scanned[i] = true
			stack = append(stack, i)
		case '}':
			b.ends[stack[len(stack)-1]] = i + 1
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return
			}
		}
	}
}

func closingBrace(text string, open int) (int, bool) {
	return newBraceIndex(text).closing(open)
}

// isTagged reports whether region is a JSON object whose type is "expense".
func isTagged(region string) (bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(region), &fields); err != nil {
		return false, err
	}
	var tag string
	if raw, ok := fields["type"]; !ok || json.Unmarshal(raw, &tag) != nil {
		return false, nil
	}
	return tag == ExpenseTag, nil
}

type wirePayload struct {
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	Description *string     `json:"description"`
	Date        *string     `json:"date"`
}

func (x *Extractor) parsePayload(region string, today time.Time) (models.ExpensePayload, error) {
	var wire wirePayload
	if err := json.Unmarshal([]byte(region), &wire); err != nil {
		return models.ExpensePayload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	amount, err := parseAmount(wire.Amount)
	if err != nil {
		return models.ExpensePayload{}, err
	}

	result, err := x.schema.Validate(gojsonschema.NewStringLoader(region))
	if err != nil {
		return models.ExpensePayload{}, err
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return models.ExpensePayload{}, fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(problems, "; "))
	}

	date := today.Format(models.DateLayout)
	if wire.Date != nil && *wire.Date != "" {
		if _, err := time.Parse(models.DateLayout, *wire.Date); err != nil {
			return models.ExpensePayload{}, fmt.Errorf("%w: date %q: %v", ErrInvalidPayload, *wire.Date, err)
		}
		date = *wire.Date
	}

	var description *string
	if wire.Description != nil {
		if d := strings.TrimSpace(*wire.Description); d != "" {
			description = &d
		}
	}

	return models.ExpensePayload{
		Type:        ExpenseTag,
		Amount:      amount,
		Category:    strings.TrimSpace(wire.Category),
		Description: description,
		Date:        date,
	}, nil
}

// parseAmount accepts a non-negative decimal below maxAmount. A missing
// amount is left to the schema.
func parseAmount(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: amount %q: %v", ErrInvalidPayload, n, err)
	}
	if exp := amount.Exponent(); exp > maxAmountExponent || exp < minAmountExponent {
		return decimal.Decimal{}, fmt.Errorf("%w: amount %q out of range", ErrInvalidPayload, n)
	}
	if amount.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: negative amount %s", ErrInvalidPayload, amount)
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return decimal.Decimal{}, fmt.Errorf("%w: amount %s out of range", ErrInvalidPayload, amount)
	}
	return amount, nil
}
