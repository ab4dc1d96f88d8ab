/*
code.go - Settlement code derivation

PURPOSE:
  Derives the human-facing settlement code: CLT-<MM><YYYY>-<FIRSTNAME>,
  from the period start and the driver's name at creation time. The code is
  stored on the header and never re-derived on edit.

NOTE:
  Driver names are Brazilian Portuguese, so the first name is folded to
  unaccented uppercase ASCII ("João da Silva" -> "JOAO") to keep codes
  filesystem- and URL-safe.
*/
package settlement

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/frotaops/settlement-engine/payroll"
)

// DeriveCode builds the settlement code from the period start and driver name.
func DeriveCode(periodStart payroll.Date, driverName string) string {
	return fmt.Sprintf("CLT-%02d%04d-%s",
		int(periodStart.Month()), periodStart.Year(), firstNameUpper(driverName))
}

func firstNameUpper(name string) string {
	fields := strings.Fields(strings.TrimSpace(name))
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(stripDiacritics(fields[0]))
}

// stripDiacritics decomposes the string and drops combining marks
// (NFD + remove Mn + NFC).
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
