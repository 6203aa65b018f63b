// Package locator derives public summary-document URLs from FDA
// submission identifiers. Pure policy; no network I/O.
package locator

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	base510k   = "https://www.accessdata.fda.gov/cdrh_docs/pdf"
	baseDeNovo = "https://www.accessdata.fda.gov/cdrh_docs/reviews"
)

// SummaryURL maps a submission id to the URL of its summary PDF.
// Returns false for families with no deterministic URL scheme (PMA and
// friends); the caller must acquire those documents out of band.
//
// 510(k) ids are K + 2-digit year + sequence, filed under a pdf{YY}
// directory: K251406 -> {base}25/K251406.pdf. De Novo ids are DEN +
// 2-digit year + sequence, zero-padded to four digits under a flat
// reviews directory: DEN240047 -> {base}/DEN240047.pdf.
func SummaryURL(submissionID string) (string, bool) {
	id := strings.TrimSpace(submissionID)
	switch {
	case strings.HasPrefix(id, "DEN") && len(id) >= 6 && allDigits(id[3:]):
		year := id[3:5]
		seq := id[5:]
		for len(seq) < 4 {
			seq = "0" + seq
		}
		return fmt.Sprintf("%s/DEN%s%s.pdf", baseDeNovo, year, seq), true
	case strings.HasPrefix(id, "K") && len(id) >= 4 && allDigits(id[1:]):
		year := id[1:3]
		return fmt.Sprintf("%s%s/%s.pdf", base510k, year, id), true
	default:
		return "", false
	}
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
