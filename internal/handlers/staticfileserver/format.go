package staticfileserver

import (
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// listingDateLayout renders modification dates as month/day/year.
const listingDateLayout = "1/2/2006"

// FormatSize renders a byte count in base-1024 units rounded to two decimal
// places with trailing zeros dropped: 0 -> "0 B", 1536 -> "1.5 KB".
// Sizes beyond the GB range stay in GB.
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}

	unit := 0
	threshold := int64(1024)
	for unit < len(sizeUnits)-1 && bytes >= threshold {
		unit++
		threshold *= 1024
	}

	scaled := float64(bytes) / math.Pow(1024, float64(unit))
	rounded := math.Round(scaled*100) / 100
	return humanize.FtoaWithDigits(rounded, 2) + " " + sizeUnits[unit]
}

// FormatDate renders the modified column of a listing row.
func FormatDate(t time.Time) string {
	return t.Local().Format(listingDateLayout)
}

// FormatDateTitle renders the tooltip for the modified column: the full
// timestamp and its age relative to now.
func FormatDateTitle(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05") + " (" + humanize.Time(t) + ")"
}
