package export

import (
	"io"
	"strconv"

	"github.com/alvmarrod/site-weaver/internal/storage"
	"github.com/rodaine/table"
)

// PrintFindings writes a console table of broken links grouped by the page
// that referred to them. Referrers appear in first-finding order.
func PrintFindings(w io.Writer, findings []storage.Finding) {
	if len(findings) == 0 {
		io.WriteString(w, "No broken links found.\n")
		return
	}

	var referrers []string
	grouped := make(map[string][]storage.Finding)
	for _, f := range findings {
		if _, exists := grouped[f.Referrer]; !exists {
			referrers = append(referrers, f.Referrer)
		}
		grouped[f.Referrer] = append(grouped[f.Referrer], f)
	}

	tbl := table.New("Page", "Counts", "Broken Links", "Status").WithWriter(w)
	for _, referrer := range referrers {
		for i, f := range grouped[referrer] {
			if i == 0 {
				tbl.AddRow(referrer, len(grouped[referrer]), f.URL, statusText(f))
			} else {
				tbl.AddRow("", "", f.URL, statusText(f))
			}
		}
	}
	tbl.Print()
}

func statusText(f storage.Finding) string {
	if f.Status == 0 {
		if f.Error != "" {
			return "error: " + f.Error
		}
		return "error"
	}
	return strconv.Itoa(f.Status)
}
