package query

import (
	"regexp"
	"strconv"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Clock supplies "now" to date resolution so queries are deterministic
// under test.
type Clock func() time.Time

var relSpanPattern = regexp.MustCompile(`^(\d+)([dwmy])$`)

var naturalParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ResolveDate turns a date-like value into epoch milliseconds. Handles the
// relative tokens (today, yesterday, Nd/Nw/Nm/Ny), ISO dates, and falls back
// to natural-language parsing ("last monday") before giving up.
func ResolveDate(v Value, now time.Time) (int64, bool) {
	s := v.Str
	switch s {
	case "today":
		return startOfDay(now).UnixMilli(), true
	case "yesterday":
		return startOfDay(now.AddDate(0, 0, -1)).UnixMilli(), true
	}
	if m := relSpanPattern.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "d":
			return now.AddDate(0, 0, -n).UnixMilli(), true
		case "w":
			return now.AddDate(0, 0, -7*n).UnixMilli(), true
		case "m":
			return now.AddDate(0, -n, 0).UnixMilli(), true
		case "y":
			return now.AddDate(-n, 0, 0).UnixMilli(), true
		}
	}
	for _, layout := range []string{"2006-01-02", "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t.UnixMilli(), true
		}
	}
	if r, err := naturalParser.Parse(s, now); err == nil && r != nil {
		return r.Time.UnixMilli(), true
	}
	return 0, false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
