// Package domain models hourly venue foot-traffic data exported by the
// people-counting vendor (VemCount).
//
// # Data Source
//
// The vendor mails one spreadsheet per day ("Traffic By Hour - Mel Syd.xlsx")
// to an operations mailbox shortly after midnight, local time. Upstream
// collectors hand the raw workbook bytes to this service together with the
// message send time, or a file modification time when only a downloaded copy
// is available.
//
// # Data Date Attribution
//
// A report sent on day N contains day N-1's counts. The send time is first
// converted to the reference zone (Australia/Melbourne) and then stepped back
// one calendar day:
//
//	sent 2024-06-03 03:00 AEST  →  data date 2024-06-02
//
// # Report Conventions
//
// Hours:
//
//	Integer 0–26. Hours 24–26 belong to the same operating day for venues
//	trading past midnight and are stored as-is, never rolled into the next
//	calendar date. Their DateTime key (date + hour) therefore lands on the
//	following day, which is why sorting breaks ties on Date.
//
// Counts:
//
//	"Visitors entering" is over-reported by the door sensors and is corrected
//	by a fixed multiplier (0.95 by default). "Visitors inside" is reported
//	as-is.
//
// Operating hours:
//
//	A weekly (open, close) table per venue, weekday 0 = Monday. A close hour
//	above 24 wraps past midnight: (12, 25) is open from noon until 01:00, so
//	hours 12–23 and 24 as well as 0 count as open. A close hour of exactly 24
//	does not wrap, so hour 24 is closed.
//
// # Identity
//
// A record is identified by (Date, Hour, Venue). The merge store replaces
// whole dates, so reprocessing a day's report is idempotent.
package domain
