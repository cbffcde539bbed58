package domain

import (
	"strconv"
	"time"
)

// Phone is a phone value. A nil Number marks the unverified placeholder
// phone every account starts with.
type Phone struct {
	Code   int
	Number *int64
}

func NewPhone(code int, number int64) Phone {
	n := number
	return Phone{Code: code, Number: &n}
}

// DefaultCountryCode is the country code of a new account's placeholder phone.
const DefaultCountryCode = 7

// PlaceholderPhone is assigned at account creation.
func PlaceholderPhone(code int) Phone {
	return Phone{Code: code}
}

func (p Phone) Verified() bool { return p.Number != nil }

// Equal compares by value; two placeholders with the same code are equal.
func (p Phone) Equal(o Phone) bool {
	if p.Code != o.Code {
		return false
	}
	if p.Number == nil || o.Number == nil {
		return p.Number == nil && o.Number == nil
	}
	return *p.Number == *o.Number
}

// Destination renders the phone as country code digits followed by number digits.
func (p Phone) Destination() string {
	if p.Number == nil {
		return strconv.Itoa(p.Code)
	}
	return strconv.Itoa(p.Code) + strconv.FormatInt(*p.Number, 10)
}

// Masked keeps the country code and the last two digits, for logs.
func (p Phone) Masked() string {
	if p.Number == nil {
		return "+" + strconv.Itoa(p.Code) + " <unset>"
	}
	n := strconv.FormatInt(*p.Number, 10)
	if len(n) <= 2 {
		return "+" + strconv.Itoa(p.Code) + " **"
	}
	masked := make([]byte, len(n))
	for i := range masked {
		masked[i] = '*'
	}
	copy(masked[len(n)-2:], n[len(n)-2:])
	return "+" + strconv.Itoa(p.Code) + " " + string(masked)
}

type User struct {
	TelegramID int64
	Name       string
	Nickname   string
	Phone      Phone
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
