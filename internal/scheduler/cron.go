package scheduler

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/framepulse/framepulse-core/internal/models"
)

// The accepted dialect is the plain 5-field form: minute, hour,
// day-of-month, month, day-of-week with * , - / and numeric values only.
// Day-of-week runs 0-6 with 0 = Sunday. No seconds, no names, no L/W/#.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ParseCron validates an expression against the restricted dialect.
func ParseCron(expr string) (cron.Schedule, error) {
	const op = "scheduler.ParseCron"
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, models.E(models.KindConfig, op, "cron expression must have 5 fields")
	}
	for _, f := range fields {
		for _, r := range f {
			if (r < '0' || r > '9') && r != '*' && r != ',' && r != '-' && r != '/' {
				return nil, models.E(models.KindConfig, op, "cron field contains unsupported character: "+f)
			}
		}
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, models.E(models.KindConfig, op, err)
	}
	return sched, nil
}

// NextRun is the pure next-fire evaluation: strictly after the reference
// time, truncated to minute precision. It never reads the wall clock.
func NextRun(expr string, after time.Time) (time.Time, error) {
	sched, err := ParseCron(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}
