// Package era converts Japanese era-year notation to Gregorian years.
package era

// offsets maps each era name to its Gregorian offset: era year n = offset + n.
var offsets = map[string]int{
	"明治": 1867,
	"大正": 1911,
	"昭和": 1925,
	"平成": 1988,
	"令和": 2018,
}

// Names lists the supported era names in chronological order.
var Names = []string{"明治", "大正", "昭和", "平成", "令和"}

// ToGregorian converts an era name and era-relative year to a Gregorian year.
// Unknown era names report ok=false; there is no fallback guess.
func ToGregorian(name string, year int) (int, bool) {
	offset, ok := offsets[name]
	if !ok {
		return 0, false
	}
	if year < 1 || year > 99 {
		return 0, false
	}
	return offset + year, true
}
