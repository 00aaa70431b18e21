package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FieldSet is the structured output of parsing raw receipt text. A nil
// field means the value was not found; absence is valid output, never an
// error. RawText keeps the full input for diagnostics.
type FieldSet struct {
	Date            *time.Time
	Amount          *int64 // kopecks/cents
	OperationNumber *string
	Sender          *string
	Receiver        *string
	Organization    *string
	Fee             *int64 // kopecks/cents
	RawText         string
}

// Per-field rules, tried in order; the first rule that matches wins and
// later candidates are ignored. A receipt carrying two dates (issue date
// and processing date) therefore yields whichever the first rule hits
// first — a known accuracy limitation, kept deliberately.
//
// Note: RE2's \b is ASCII-only and never fires next to Cyrillic letters,
// so the label rules anchor on the bare label text instead.
var (
	dateRules = []*regexp.Regexp{
		regexp.MustCompile(`(\d{2}\.\d{2}\.\d{4})`),
	}

	// Label-anchored amounts first; the bare number rule refuses matches
	// flanked by date punctuation so "03.02" inside "03.02.2025" is not
	// mistaken for money.
	amountRules = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Сумма:?\s*(\d+[.,]\d{2})`),
		regexp.MustCompile(`(?i)Итого:?\s*(\d+[.,]\d{2})`),
		regexp.MustCompile(`(?:^|[^\d.,])(\d+[.,]\d{2})(?:[^\d.,]|$)`),
	}

	operationRules = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Операция:?\s+([A-Za-z0-9-]+)`),
	}

	senderRules = []*regexp.Regexp{
		regexp.MustCompile(`(?i)От кого:?\s+([^\n]+)`),
	}

	receiverRules = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Получатель:?\s+([^\n]+)`),
	}

	organizationRules = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Организация:?\s+([^\n]+)`),
	}

	feeRules = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Комиссия:?\s*(\d+[.,]\d{2})`),
	}
)

// ParseFields extracts structured fields from raw receipt text. Every
// field is independently optional; text with no recognizable fields
// produces an all-nil FieldSet.
func ParseFields(raw string) FieldSet {
	fs := FieldSet{RawText: raw}

	if m, ok := firstMatch(dateRules, raw); ok {
		// An unparsable match (day 32, month 13) yields nil, not an error
		if d, err := time.Parse("02.01.2006", m); err == nil {
			fs.Date = &d
		}
	}
	if m, ok := firstMatch(amountRules, raw); ok {
		fs.Amount = parseMoney(m)
	}
	if m, ok := firstMatch(operationRules, raw); ok {
		fs.OperationNumber = trimmed(m)
	}
	if m, ok := firstMatch(senderRules, raw); ok {
		fs.Sender = trimmed(m)
	}
	if m, ok := firstMatch(receiverRules, raw); ok {
		fs.Receiver = trimmed(m)
	}
	if m, ok := firstMatch(organizationRules, raw); ok {
		fs.Organization = trimmed(m)
	}
	if m, ok := firstMatch(feeRules, raw); ok {
		fs.Fee = parseMoney(m)
	}

	return fs
}

// firstMatch returns the first capture of the first rule that matches.
func firstMatch(rules []*regexp.Regexp, text string) (string, bool) {
	for _, rule := range rules {
		if m := rule.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// parseMoney converts "1234,56" or "1234.56" into kopecks/cents.
func parseMoney(s string) *int64 {
	s = strings.ReplaceAll(s, ",", ".")
	whole, frac, ok := strings.Cut(s, ".")
	if !ok || len(frac) != 2 {
		return nil
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return nil
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return nil
	}
	v := w*100 + f
	return &v
}

func trimmed(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
