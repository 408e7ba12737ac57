package bulk

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/model"
)

// ExportColumns is the CSV header written by WriteCSV. Import accepts the same header.
var ExportColumns = []string{
	"id", "fullName", "email", "phone", "city", "propertyType", "bhk", "purpose",
	"budgetMin", "budgetMax", "timeline", "source", "status", "notes", "tags", "updatedAt",
}

// WriteCSV writes buyers with a header row.
func WriteCSV(w io.Writer, buyers []model.Buyer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return err
	}
	for _, b := range buyers {
		rec := []string{
			b.ID.String(),
			b.FullName,
			str(b.Email),
			b.Phone,
			string(b.City),
			string(b.PropertyType),
			str(b.BHK),
			string(b.Purpose),
			num(b.BudgetMin),
			num(b.BudgetMax),
			string(b.Timeline),
			string(b.Source),
			string(b.Status),
			str(b.Notes),
			strings.Join(b.Tags, ", "),
			b.UpdatedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func str[T ~string](p *T) string {
	if p == nil {
		return ""
	}
	return string(*p)
}

func num(p *int64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(*p, 10)
}
