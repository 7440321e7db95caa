package domain

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var oaPhonePattern = regexp.MustCompile(`^(\d*#){3}(\d*)$`)

// Phone is a telephone number split the way OA stores it.
type Phone struct {
	CountryCode string
	AreaCode    string
	Number      string
	Extension   string
}

// PhoneNumber is the Connect representation of a phone.
type PhoneNumber struct {
	CountryCode string `json:"country_code"`
	AreaCode    string `json:"area_code"`
	PhoneNumber string `json:"phone_number"`
	Extension   string `json:"extension"`
}

// ParsePhone accepts either the OA "country#area#number#extension" form or
// a free-form international number. An empty value yields a zero Phone.
func ParsePhone(value string) (Phone, error) {
	if value == "" {
		return Phone{}, nil
	}
	if oaPhonePattern.MatchString(value) {
		parts := strings.Split(value, "#")
		return Phone{
			CountryCode: parts[0],
			AreaCode:    parts[1],
			Number:      parts[2],
			Extension:   parts[3],
		}, nil
	}

	international := value
	if !strings.HasPrefix(international, "+") {
		international = "+" + international
	}
	num, err := phonenumbers.Parse(international, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return Phone{}, &InvalidPhoneError{Value: international}
	}
	return Phone{
		CountryCode: "+" + strconv.Itoa(int(num.GetCountryCode())),
		Number:      phonenumbers.GetNationalSignificantNumber(num),
	}, nil
}

// IsZero reports whether no phone was given.
func (p Phone) IsZero() bool {
	return p == Phone{}
}

// String renders the OA form, without the leading plus.
func (p Phone) String() string {
	if p.IsZero() {
		return ""
	}
	return strings.Join([]string{strings.TrimPrefix(p.CountryCode, "+"), p.AreaCode, p.Number, p.Extension}, "#")
}

// Public renders the Connect form, or nil for an empty phone.
func (p Phone) Public() *PhoneNumber {
	if p.IsZero() {
		return nil
	}
	return &PhoneNumber{
		CountryCode: p.CountryCode,
		AreaCode:    p.AreaCode,
		PhoneNumber: p.Number,
		Extension:   p.Extension,
	}
}
