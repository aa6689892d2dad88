package locale

import (
	"fmt"
	"math/rand"
	"regexp"
)

type postcodeRange struct {
	lo, hi int
}

type Australia struct {
	stateRanges map[string][]postcodeRange
}

func NewAustralia() *Australia {
	return &Australia{
		stateRanges: map[string][]postcodeRange{
			"NSW": {{2000, 2599}, {2619, 2899}, {2921, 2999}},
			"ACT": {{2600, 2618}, {2900, 2920}},
			"VIC": {{3000, 3999}},
			"QLD": {{4000, 4999}},
			"SA":  {{5000, 5799}},
			"WA":  {{6000, 6797}},
			"TAS": {{7000, 7799}},
			"NT":  {{800, 899}},
		},
	}
}

var (
	auStates = []string{"NSW", "VIC", "QLD", "WA", "SA", "TAS", "ACT", "NT"}

	auCities = []string{
		"Sydney", "Melbourne", "Brisbane", "Perth", "Adelaide", "Hobart",
		"Canberra", "Darwin", "Newcastle", "Wollongong", "Geelong", "Townsville",
		"Cairns", "Ballarat", "Bendigo", "Toowoomba", "Launceston", "Albury",
		"Mackay", "Rockhampton", "Bunbury", "Bundaberg", "Wagga Wagga", "Mildura",
		"Shepparton", "Gladstone", "Tamworth", "Orange", "Dubbo", "Geraldton",
	}

	auStreetNames = []string{
		"George", "King", "Queen", "Elizabeth", "Victoria", "Albert", "Bourke",
		"Collins", "Flinders", "Swanston", "Pitt", "Macquarie", "Hunter", "Church",
		"Station", "Railway", "Park", "High", "Bridge", "Wattle", "Banksia",
		"Acacia", "Murray", "Darling", "Hume", "Cook", "Phillip", "Lachlan",
	}

	auStreetSuffixes = []string{
		"Street", "Road", "Avenue", "Parade", "Crescent", "Drive", "Place",
		"Lane", "Terrace", "Court", "Close", "Way", "Highway", "Esplanade",
	}

	auCompanyStems = []string{
		"Southern Cross", "Harbour", "Outback", "Coastal", "Eucalypt", "Red Gum",
		"Kookaburra", "Bluestone", "Ironbark", "Coral Sea", "Tasman", "Pacific",
		"Great Dividing", "Sunburnt", "Wattle", "Blue Mountains", "Goldfields",
	}

	auCompanyTrades = []string{
		"Logistics", "Holdings", "Constructions", "Consulting", "Traders",
		"Engineering", "Partners", "Group", "Industries", "Solutions", "Services",
	}

	auPostcodeRe = regexp.MustCompile(`^\d{4}$`)
	auPhoneRe    = regexp.MustCompile(`^(04\d{2} \d{3} \d{3}|\(0[2378]\) \d{4} \d{4}|\+61 4\d{2} \d{3} \d{3})$`)
)

func (a *Australia) Code() string    { return "au" }
func (a *Australia) Country() string { return "Australia" }

func (a *Australia) States() []string {
	out := make([]string, len(auStates))
	copy(out, auStates)
	return out
}

func (a *Australia) StreetAddress(rng *rand.Rand) string {
	number := rng.Intn(399) + 1
	street := pick(rng, auStreetNames) + " " + pick(rng, auStreetSuffixes)
	if rng.Intn(5) == 0 {
		return fmt.Sprintf("Unit %d, %d %s", rng.Intn(40)+1, number, street)
	}
	return fmt.Sprintf("%d %s", number, street)
}

func (a *Australia) City(rng *rand.Rand) string {
	return pick(rng, auCities)
}

func (a *Australia) StateAbbr(rng *rand.Rand) string {
	return pick(rng, auStates)
}

// Postcode draws a state at random, then a code inside that state's ranges.
func (a *Australia) Postcode(rng *rand.Rand) string {
	ranges := a.stateRanges[a.StateAbbr(rng)]
	r := ranges[rng.Intn(len(ranges))]
	return fmt.Sprintf("%04d", r.lo+rng.Intn(r.hi-r.lo+1))
}

func (a *Australia) PostcodePattern() *regexp.Regexp {
	return auPostcodeRe
}

func (a *Australia) Phone(rng *rand.Rand) string {
	switch rng.Intn(3) {
	case 0:
		return fmt.Sprintf("04%s %s %s", digits(rng, 2), digits(rng, 3), digits(rng, 3))
	case 1:
		area := []string{"02", "03", "07", "08"}[rng.Intn(4)]
		return fmt.Sprintf("(%s) %s %s", area, digits(rng, 4), digits(rng, 4))
	default:
		return fmt.Sprintf("+61 4%s %s %s", digits(rng, 2), digits(rng, 3), digits(rng, 3))
	}
}

func (a *Australia) PhonePattern() *regexp.Regexp {
	return auPhoneRe
}

func (a *Australia) Company(rng *rand.Rand) string {
	return pick(rng, auCompanyStems) + " " + pick(rng, auCompanyTrades) + " Pty Ltd"
}
