package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk"

	"drydock/internal/aws/client"
	"drydock/internal/output"
)

const maxEventRecords = 10

// eventTracker streams environment events during polling loops, keeping
// a seen set because the event API returns overlapping windows.
type eventTracker struct {
	eb       client.BeanstalkAPI
	envName  string
	lastTime *time.Time
	seen     map[string]struct{}
}

func newEventTracker(eb client.BeanstalkAPI, envName string) *eventTracker {
	return &eventTracker{eb: eb, envName: envName, seen: make(map[string]struct{})}
}

// printNew prints events not shown before, oldest first. Event fetch
// failures are logged and swallowed: losing a status line must not
// abort the wait.
func (t *eventTracker) printNew(ctx context.Context) {
	input := &elasticbeanstalk.DescribeEventsInput{
		EnvironmentName: aws.String(t.envName),
		MaxRecords:      aws.Int32(maxEventRecords),
	}
	if t.lastTime != nil {
		input.StartTime = t.lastTime
	}

	out, err := t.eb.DescribeEvents(ctx, input)
	if err != nil {
		slog.Debug("fetching environment events failed", "error", err)
		return
	}

	for i := len(out.Events) - 1; i >= 0; i-- {
		event := out.Events[i]
		if event.EventDate == nil {
			continue
		}
		key := event.EventDate.Format(time.RFC3339Nano) + "-" + aws.ToString(event.Message)
		if _, ok := t.seen[key]; ok {
			continue
		}
		t.seen[key] = struct{}{}

		output.Println(fmt.Sprintf("%s %s: %s",
			event.EventDate.Format("2006-01-02 15:04:05"),
			event.Severity,
			aws.ToString(event.Message)))

		if t.lastTime == nil || event.EventDate.After(*t.lastTime) {
			t.lastTime = event.EventDate
		}
	}
}
