package batchexport

import "time"

// JST is the business timezone for exports. The window boundaries follow the
// Japanese calendar day regardless of where the process runs.
var JST = time.FixedZone("JST", 9*3600)

// JSTDayRange returns the inclusive start and end instants of the JST
// calendar day containing t.
func JSTDayRange(t time.Time) (start, end time.Time) {
	local := t.In(JST)
	start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, JST)
	end = start.Add(24*time.Hour - time.Millisecond)
	return start, end
}

// DateKey formats t's JST calendar date as YYYY-MM-DD, used both as the
// export file name stem and the ledger's export_date.
func DateKey(t time.Time) string {
	return t.In(JST).Format("2006-01-02")
}
