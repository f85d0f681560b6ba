package table

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var groupedNumber = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// ParseNumber reads a cell as a number. Plain decimal and exponent forms are
// accepted, and so are comma thousands separators when the groups are well
// formed ("12,000.5" but not "1,2"). NaN and infinities are not numbers.
func ParseNumber(cell string) (float64, bool) {
	text := strings.TrimSpace(cell)
	if text == "" {
		return 0, false
	}
	if strings.Contains(text, ",") {
		if !groupedNumber.MatchString(text) {
			return 0, false
		}
		text = strings.ReplaceAll(text, ",", "")
	}
	num, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, false
	}
	return num, true
}
