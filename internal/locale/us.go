package locale

import (
	"fmt"
	"math/rand"
	"regexp"
)

type UnitedStates struct{}

func NewUnitedStates() *UnitedStates {
	return &UnitedStates{}
}

var (
	usStates = []string{
		"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA",
		"HI", "ID", "IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD",
		"MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH", "NJ",
		"NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC",
		"SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV", "WI", "WY",
	}

	usCities = []string{
		"New York", "Los Angeles", "Chicago", "Houston", "Phoenix",
		"Philadelphia", "San Antonio", "San Diego", "Dallas", "San Jose",
		"Austin", "Jacksonville", "Fort Worth", "Columbus", "Charlotte",
		"Indianapolis", "Seattle", "Denver", "Boston", "Nashville",
		"Detroit", "Portland", "Las Vegas", "Memphis", "Louisville",
	}

	usStreetNames = []string{
		"Main", "Oak", "Pine", "Maple", "Cedar", "Elm", "Washington", "Lake",
		"Hill", "Park", "Sunset", "Lincoln", "Jefferson", "Madison", "Franklin",
	}

	usStreetSuffixes = []string{"St", "Ave", "Blvd", "Rd", "Dr", "Ln", "Ct", "Way"}

	usCompanyStems = []string{
		"Liberty", "Summit", "Pioneer", "Keystone", "Evergreen", "Frontier",
		"Golden Gate", "Lakeshore", "Redwood", "Granite", "Heartland",
	}

	usCompanySuffixes = []string{"Inc.", "LLC", "Corp.", "Co."}

	usPostcodeRe = regexp.MustCompile(`^\d{5}$`)
	usPhoneRe    = regexp.MustCompile(`^\([2-9]\d{2}\) [2-9]\d{2}-\d{4}$`)
)

func (u *UnitedStates) Code() string    { return "us" }
func (u *UnitedStates) Country() string { return "United States" }

func (u *UnitedStates) States() []string {
	out := make([]string, len(usStates))
	copy(out, usStates)
	return out
}

func (u *UnitedStates) StreetAddress(rng *rand.Rand) string {
	return fmt.Sprintf("%d %s %s", rng.Intn(9899)+100, pick(rng, usStreetNames), pick(rng, usStreetSuffixes))
}

func (u *UnitedStates) City(rng *rand.Rand) string {
	return pick(rng, usCities)
}

func (u *UnitedStates) StateAbbr(rng *rand.Rand) string {
	return pick(rng, usStates)
}

func (u *UnitedStates) Postcode(rng *rand.Rand) string {
	return fmt.Sprintf("%05d", rng.Intn(99000)+501)
}

func (u *UnitedStates) PostcodePattern() *regexp.Regexp {
	return usPostcodeRe
}

func (u *UnitedStates) Phone(rng *rand.Rand) string {
	return fmt.Sprintf("(%d%s) %d%s-%s",
		rng.Intn(8)+2, digits(rng, 2), rng.Intn(8)+2, digits(rng, 2), digits(rng, 4))
}

func (u *UnitedStates) PhonePattern() *regexp.Regexp {
	return usPhoneRe
}

func (u *UnitedStates) Company(rng *rand.Rand) string {
	return pick(rng, usCompanyStems) + " " + pick(rng, usCompanySuffixes)
}
