// Package locale holds the region-specific producers used for address-shaped
// columns. Swapping the Pack changes the generated data without touching the
// synthesizer's decision procedure.
package locale

import (
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strings"
)

type Pack interface {
	Code() string
	Country() string
	StreetAddress(rng *rand.Rand) string
	City(rng *rand.Rand) string
	StateAbbr(rng *rand.Rand) string
	States() []string
	Postcode(rng *rand.Rand) string
	PostcodePattern() *regexp.Regexp
	Phone(rng *rand.Rand) string
	PhonePattern() *regexp.Regexp
	Company(rng *rand.Rand) string
}

const DefaultCode = "au"

var packs = map[string]func() Pack{
	"au": func() Pack { return NewAustralia() },
	"us": func() Pack { return NewUnitedStates() },
}

func Lookup(code string) (Pack, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		code = DefaultCode
	}
	ctor, ok := packs[code]
	if !ok {
		return nil, fmt.Errorf("unknown locale: %s (available: %s)", code, strings.Join(Codes(), ", "))
	}
	return ctor(), nil
}

func Default() Pack {
	return NewAustralia()
}

func Codes() []string {
	codes := make([]string, 0, len(packs))
	for c := range packs {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

func pick(rng *rand.Rand, items []string) string {
	return items[rng.Intn(len(items))]
}

func digits(rng *rand.Rand, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(byte('0' + rng.Intn(10)))
	}
	return b.String()
}
