package locator

import "testing"

func TestSummaryURL(t *testing.T) {
	tests := []struct {
		id      string
		wantURL string
		wantOK  bool
	}{
		{
			id:      "K251406",
			wantURL: "https://www.accessdata.fda.gov/cdrh_docs/pdf25/K251406.pdf",
			wantOK:  true,
		},
		{
			id:      "K090001",
			wantURL: "https://www.accessdata.fda.gov/cdrh_docs/pdf09/K090001.pdf",
			wantOK:  true,
		},
		{
			id:      "DEN240047",
			wantURL: "https://www.accessdata.fda.gov/cdrh_docs/reviews/DEN240047.pdf",
			wantOK:  true,
		},
		{
			// Short sequence is zero-padded to four digits.
			id:      "DEN2447",
			wantURL: "https://www.accessdata.fda.gov/cdrh_docs/reviews/DEN240047.pdf",
			wantOK:  true,
		},
		// PMA and other families have no URL scheme.
		{id: "P170019", wantOK: false},
		{id: "H200004", wantOK: false},
		{id: "N180001", wantOK: false},
		// Malformed ids never produce a URL.
		{id: "", wantOK: false},
		{id: "K", wantOK: false},
		{id: "K25a406", wantOK: false},
		{id: "DEN", wantOK: false},
		{id: "DENX40047", wantOK: false},
	}

	for _, tt := range tests {
		url, ok := SummaryURL(tt.id)
		if ok != tt.wantOK {
			t.Errorf("SummaryURL(%q) ok = %v, want %v", tt.id, ok, tt.wantOK)
			continue
		}
		if ok && url != tt.wantURL {
			t.Errorf("SummaryURL(%q) = %q, want %q", tt.id, url, tt.wantURL)
		}
	}
}

func TestSummaryURL_TrimsWhitespace(t *testing.T) {
	url, ok := SummaryURL("  K251406 ")
	if !ok || url != "https://www.accessdata.fda.gov/cdrh_docs/pdf25/K251406.pdf" {
		t.Errorf("got %q, %v", url, ok)
	}
}
