package signal

import (
	"strings"

	a "github.com/petar-dambovaliev/aho-corasick"
)

// countryByName maps lowercase country names (including common aliases the
// host app's result banner uses) to ISO 3166-1 alpha-2 codes. The address
// banner is free text, so aliases matter more than completeness.
var countryByName = map[string]string{
	"afghanistan": "AF", "albania": "AL", "algeria": "DZ", "andorra": "AD",
	"argentina": "AR", "armenia": "AM", "australia": "AU", "austria": "AT",
	"azerbaijan": "AZ", "bangladesh": "BD", "belarus": "BY", "belgium": "BE",
	"bhutan": "BT", "bolivia": "BO", "bosnia and herzegovina": "BA",
	"botswana": "BW", "brazil": "BR", "bulgaria": "BG", "cambodia": "KH",
	"canada": "CA", "chile": "CL", "china": "CN", "colombia": "CO",
	"costa rica": "CR", "croatia": "HR", "curacao": "CW", "cyprus": "CY",
	"czechia": "CZ", "czech republic": "CZ", "denmark": "DK",
	"dominican republic": "DO", "ecuador": "EC", "egypt": "EG",
	"estonia": "EE", "eswatini": "SZ", "finland": "FI", "france": "FR",
	"germany": "DE", "ghana": "GH", "greece": "GR", "greenland": "GL",
	"guatemala": "GT", "hong kong": "HK", "hungary": "HU", "iceland": "IS",
	"india": "IN", "indonesia": "ID", "ireland": "IE", "israel": "IL",
	"italy": "IT", "japan": "JP", "jordan": "JO", "kazakhstan": "KZ",
	"kenya": "KE", "kyrgyzstan": "KG", "laos": "LA", "latvia": "LV",
	"lebanon": "LB", "lesotho": "LS", "lithuania": "LT", "luxembourg": "LU",
	"madagascar": "MG", "malaysia": "MY", "malta": "MT", "mexico": "MX",
	"mongolia": "MN", "montenegro": "ME", "morocco": "MA", "myanmar": "MM",
	"nepal": "NP", "netherlands": "NL", "new zealand": "NZ", "nigeria": "NG",
	"north macedonia": "MK", "norway": "NO", "pakistan": "PK", "panama": "PA",
	"peru": "PE", "philippines": "PH", "poland": "PL", "portugal": "PT",
	"qatar": "QA", "romania": "RO", "russia": "RU", "rwanda": "RW",
	"senegal": "SN", "serbia": "RS", "singapore": "SG", "slovakia": "SK",
	"slovenia": "SI", "south africa": "ZA", "south korea": "KR",
	"republic of korea": "KR", "spain": "ES", "sri lanka": "LK",
	"sweden": "SE", "switzerland": "CH", "taiwan": "TW", "thailand": "TH",
	"tunisia": "TN", "turkey": "TR", "turkiye": "TR", "uganda": "UG",
	"ukraine": "UA", "united arab emirates": "AE", "united kingdom": "GB",
	"great britain": "GB", "united states": "US",
	"united states of america": "US", "usa": "US", "uruguay": "UY",
	"uzbekistan": "UZ", "vietnam": "VN", "zambia": "ZM", "zimbabwe": "ZW",
}

// Aho-Corasick matcher over the country-name table, built once. The address
// banner text can contain the country anywhere ("Kadıköy, Istanbul, Turkey").
var (
	countryMatcherBuilder = a.NewAhoCorasickBuilder(a.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
		MatchKind:            a.LeftMostLongestMatch,
	})
	countryMatcher  a.AhoCorasick
	countryPatterns []string
)

func init() {
	countryPatterns = make([]string, 0, len(countryByName))
	for name := range countryByName {
		countryPatterns = append(countryPatterns, name)
	}
	countryMatcher = countryMatcherBuilder.Build(countryPatterns)
}

// MatchCountry scans free text for a known country name and returns the
// canonical name plus ISO code. The last match wins: banner text reads
// smallest unit first, so the trailing match is the country.
func MatchCountry(text string) (name, code string, ok bool) {
	lower := strings.ToLower(text)
	matches := countryMatcher.FindAll(lower)
	if len(matches) == 0 {
		return "", "", false
	}
	last := matches[len(matches)-1]
	matched := lower[last.Start():last.End()]
	code, ok = countryByName[matched]
	if !ok {
		return "", "", false
	}
	return CountryName(code), code, true
}

// canonicalName is the display name per code; first alias in the table that
// round-trips is not guaranteed, so display names live in their own table.
var canonicalName = map[string]string{
	"BA": "Bosnia and Herzegovina", "CZ": "Czechia", "AE": "United Arab Emirates",
	"GB": "United Kingdom", "US": "United States", "KR": "South Korea",
	"MK": "North Macedonia", "NZ": "New Zealand", "ZA": "South Africa",
	"LK": "Sri Lanka", "CR": "Costa Rica", "DO": "Dominican Republic",
	"HK": "Hong Kong", "TR": "Turkey",
}

// CountryName returns the display name for an ISO code, falling back to the
// title-cased table alias, then the code itself.
func CountryName(code string) string {
	code = strings.ToUpper(code)
	if n, ok := canonicalName[code]; ok {
		return n
	}
	for name, c := range countryByName {
		if c == code {
			return titleCase(name)
		}
	}
	return code
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "and" || w == "of" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
