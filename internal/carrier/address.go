package carrier

import "strings"

const (
	// EMS 日本邮政 EMS
	EMS = "ems"
	// FedEx 联邦快递
	FedEx = "fedex"
)

var countryAliases = map[string]string{
	"US":                       "US",
	"USA":                      "US",
	"UNITED STATES":            "US",
	"UNITED STATES OF AMERICA": "US",
	"CA":                       "CA",
	"CANADA":                   "CA",
	"AU":                       "AU",
	"AUSTRALIA":                "AU",
	"IS":                       "IS",
	"ICELAND":                  "IS",
	"RS":                       "RS",
	"SERBIA":                   "RS",
	"MD":                       "MD",
	"MOLDOVA":                  "MD",
	"GE":                       "GE",
	"GEORGIA":                  "GE",
}

// EMS 暂停收寄的目的地
var emsSuspended = map[string]struct{}{
	"US": {},
	"IS": {},
	"RS": {},
	"MD": {},
	"GE": {},
}

// 必须填写州/省的国家
var stateRequired = map[string]struct{}{
	"US": {},
	"CA": {},
	"AU": {},
}

// CanonicalCountry 统一国家写法，未知国家返回大写原值
func CanonicalCountry(country string) string {
	key := strings.ToUpper(strings.Join(strings.Fields(country), " "))
	if code, ok := countryAliases[key]; ok {
		return code
	}
	return key
}

// EMSAllowed 目的地是否可用 EMS
func EMSAllowed(country string) bool {
	_, suspended := emsSuspended[CanonicalCountry(country)]
	return !suspended
}

// RequiresState 目的地是否要求州/省
func RequiresState(country string) bool {
	_, ok := stateRequired[CanonicalCountry(country)]
	return ok
}

// NormalizePostalCode 去除空白并转大写
func NormalizePostalCode(postal string) string {
	return strings.ToUpper(strings.Join(strings.Fields(postal), ""))
}

// ValidMethod 是否为支持的运输方式
func ValidMethod(method string) bool {
	return method == EMS || method == FedEx
}

// 美国州缩写与全称
var usStates = map[string]string{
	"AL": "Alabama",
	"AK": "Alaska",
	"AZ": "Arizona",
	"AR": "Arkansas",
	"CA": "California",
	"CO": "Colorado",
	"CT": "Connecticut",
	"DE": "Delaware",
	"DC": "District of Columbia",
	"FL": "Florida",
	"GA": "Georgia",
	"HI": "Hawaii",
	"ID": "Idaho",
	"IL": "Illinois",
	"IN": "Indiana",
	"IA": "Iowa",
	"KS": "Kansas",
	"KY": "Kentucky",
	"LA": "Louisiana",
	"ME": "Maine",
	"MD": "Maryland",
	"MA": "Massachusetts",
	"MI": "Michigan",
	"MN": "Minnesota",
	"MS": "Mississippi",
	"MO": "Missouri",
	"MT": "Montana",
	"NE": "Nebraska",
	"NV": "Nevada",
	"NH": "New Hampshire",
	"NJ": "New Jersey",
	"NM": "New Mexico",
	"NY": "New York",
	"NC": "North Carolina",
	"ND": "North Dakota",
	"OH": "Ohio",
	"OK": "Oklahoma",
	"OR": "Oregon",
	"PA": "Pennsylvania",
	"RI": "Rhode Island",
	"SC": "South Carolina",
	"SD": "South Dakota",
	"TN": "Tennessee",
	"TX": "Texas",
	"UT": "Utah",
	"VT": "Vermont",
	"VA": "Virginia",
	"WA": "Washington",
	"WV": "West Virginia",
	"WI": "Wisconsin",
	"WY": "Wyoming",
	"PR": "Puerto Rico",
}

// NormalizeUSState 美国州缩写转全称，已是全称时统一大小写
func NormalizeUSState(state string) string {
	trimmed := strings.TrimSpace(state)
	if name, ok := usStates[strings.ToUpper(trimmed)]; ok {
		return name
	}
	for _, name := range usStates {
		if strings.EqualFold(name, trimmed) {
			return name
		}
	}
	return trimmed
}
