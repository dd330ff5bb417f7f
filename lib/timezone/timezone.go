package timezone

import (
	"time"
	_ "time/tzdata"
)

// Location is the timezone szhdy.com publishes in, promotions start and end on
// Beijing time regardless of where the monitor runs.
var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Asia/Shanghai")
	if err != nil {
		panic(err)
	}
}

func Now() time.Time {
	return time.Now().In(Location)
}

// Format renders t in Location, the zero time renders as "never".
func Format(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.In(Location).Format("2006-01-02 15:04:05 MST")
}
