// Package catalog turns supplier catalog exports into keyed product records.
//
// The input is line oriented. Every line is a ';' separated record whose first
// field is a type tag:
//
//	1;<code>;<name>;...           starts a product block
//	3;<code>;<barcode>;...        adds a barcode to the current block
//	4;0;<code>;1;<price>;<price>  sets the price of the current block
//
// Other tags are ignored. Incomplete blocks are dropped without error.
package catalog

import (
	"regexp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tuanvumaihuynh/inventory-count/internal/model"
	"github.com/tuanvumaihuynh/inventory-count/pkg/ptr"
)

const (
	tagName    = "1"
	tagBarcode = "3"
	tagPrice   = "4"
)

var (
	shortCodeRegex = regexp.MustCompile(`^\d{3,8}$`)
	barcodeRegex   = regexp.MustCompile(`^\d+$`)
)

// Stats describes what a parse run saw.
type Stats struct {
	Lines   int `json:"lines"`
	Blocks  int `json:"blocks"`
	Emitted int `json:"emitted"`
	Dropped int `json:"dropped"`
	Records int `json:"records"`
}

// Parse converts catalog text into keyed product records. One record is
// produced per barcode of every complete block plus one for its short code.
// When two blocks claim the same key the later one wins. Records are returned
// in the order their keys were first seen.
func Parse(text string) []model.Product {
	records, _ := ParseWithStats(text)
	return records
}

// ParseWithStats is Parse that also reports block statistics.
func ParseWithStats(text string) ([]model.Product, Stats) {
	st := newState()
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		st.stats.Lines++
		st.consume(strings.Split(line, ";"))
	}
	st.flush()

	st.stats.Dropped = st.stats.Blocks - st.stats.Emitted
	st.stats.Records = len(st.keys)

	records := make([]model.Product, 0, len(st.keys))
	for _, k := range st.keys {
		records = append(records, st.records[k])
	}
	return records, st.stats
}

// block accumulates the lines of one product.
type block struct {
	name      string
	price     decimal.Decimal
	hasPrice  bool
	barcodes  []string
	shortCode *string
}

func (b *block) complete() bool {
	return b.name != "" && b.hasPrice && len(b.barcodes) > 0
}

func (b *block) addBarcode(bc string) {
	if !slices.Contains(b.barcodes, bc) {
		b.barcodes = append(b.barcodes, bc)
	}
}

type state struct {
	current block
	keys    []string
	records map[string]model.Product
	stats   Stats
}

func newState() *state {
	return &state{records: make(map[string]model.Product)}
}

func (s *state) consume(fields []string) {
	switch fields[0] {
	case tagName:
		s.flush()
		s.current = block{}
		s.stats.Blocks++

		s.current.name = strings.TrimSpace(field(fields, 2))
		if sc, ok := firstShortCode(fields, 1, 4); ok {
			s.current.shortCode = ptr.New(sc)
		}

	case tagBarcode:
		bc := strings.TrimSpace(field(fields, 2))
		if barcodeRegex.MatchString(bc) {
			s.current.addBarcode(bc)
		}

	case tagPrice:
		if price, ok := parsePrice(field(fields, 4)); ok {
			s.current.price = price
			s.current.hasPrice = true
		}
		if s.current.shortCode == nil {
			if sc, ok := firstShortCode(fields, 1, 5); ok {
				s.current.shortCode = ptr.New(sc)
			}
		}
	}
}

// flush materializes the current block if it is complete. A block without
// barcodes never reaches the output, so it is not reset here; the next name
// line replaces it.
func (s *state) flush() {
	b := s.current
	if len(b.barcodes) == 0 {
		return
	}
	s.current = block{}
	if !b.complete() {
		return
	}
	s.stats.Emitted++

	for _, bc := range b.barcodes {
		s.put(b, bc)
	}
	if b.shortCode != nil {
		s.put(b, *b.shortCode)
	}
}

func (s *state) put(b block, key string) {
	var shortCode *string
	if b.shortCode != nil {
		shortCode = ptr.New(*b.shortCode)
	}

	if _, exists := s.records[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.records[key] = model.Product{
		Code:      key,
		Name:      b.name,
		Price:     b.price,
		ShortCode: shortCode,
		Barcodes:  slices.Clone(b.barcodes),
	}
}

func field(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

// firstShortCode scans fields[from..to] inclusive.
func firstShortCode(fields []string, from, to int) (string, bool) {
	for i := from; i <= to && i < len(fields); i++ {
		if shortCodeRegex.MatchString(fields[i]) {
			return fields[i], true
		}
	}
	return "", false
}

// parsePrice accepts a decimal with '.' or a single ',' separator. An empty
// or missing field reads as zero. Negative and non-numeric values are
// rejected.
func parsePrice(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	if s == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d, true
}
