package utils

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// GenerateID generates a unique ID with the given prefix
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, randomString(10))
}

func randomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[num.Int64()]
	}
	return string(result)
}

// GenerateAccountNumber generates an 8-digit ledger account number starting with 01
func GenerateAccountNumber() string {
	num, _ := rand.Int(rand.Reader, big.NewInt(1000000))
	return fmt.Sprintf("01%06d", num.Int64())
}

// GenerateInvoiceNumber returns INV-YYYYMM-XXXXXX for the issue month.
func GenerateInvoiceNumber(issued time.Time) string {
	return fmt.Sprintf("INV-%s-%s", issued.Format("200601"), strings.ToUpper(randomString(6)))
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword checks if a password matches a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func ValidateAccountNumber(accountNumber string) bool {
	if len(accountNumber) != 8 || !strings.HasPrefix(accountNumber, "01") {
		return false
	}
	for _, r := range accountNumber {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Slugify lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// RoundMoney rounds half away from zero to cents.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round rounds to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// SafeDiv returns a/b, or 0 when b is zero.
func SafeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Period granularities used by reporting endpoints.
const (
	PeriodMonth   = "month"
	PeriodQuarter = "quarter"
	PeriodYear    = "year"
)

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Months returns the number of calendar months the window spans.
func (w Window) Months() int {
	return (w.End.Year()-w.Start.Year())*12 + int(w.End.Month()-w.Start.Month())
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// PeriodWindow returns the calendar month, quarter or year containing asOf.
func PeriodWindow(period string, asOf time.Time) (Window, error) {
	asOf = asOf.UTC()
	y, m := asOf.Year(), asOf.Month()
	switch period {
	case PeriodMonth, "":
		start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
		return Window{Start: start, End: start.AddDate(0, 1, 0)}, nil
	case PeriodQuarter:
		qStart := time.Month((int(m)-1)/3*3 + 1)
		start := time.Date(y, qStart, 1, 0, 0, 0, 0, time.UTC)
		return Window{Start: start, End: start.AddDate(0, 3, 0)}, nil
	case PeriodYear:
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
		return Window{Start: start, End: start.AddDate(1, 0, 0)}, nil
	default:
		return Window{}, fmt.Errorf("unknown period %q", period)
	}
}

// Previous returns the window of equal calendar length immediately before w.
func (w Window) Previous() Window {
	months := w.Months()
	return Window{Start: w.Start.AddDate(0, -months, 0), End: w.Start}
}

// MonthStart truncates t to the first instant of its month (UTC).
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DayStart truncates t to midnight UTC.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD or RFC3339; empty input yields fallback.
func ParseDate(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t.UTC(), nil
}
