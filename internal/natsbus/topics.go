package natsbus

import "fmt"

// Topic patterns for NATS pub/sub communication.

func TopicEventsReport(reportID string) string {
	return fmt.Sprintf("events.report.%s", reportID)
}

func TopicEventsScheduled(scheduleID string) string {
	return fmt.Sprintf("events.scheduled.%s", scheduleID)
}

const (
	TopicEventsAll          = "events.>"
	TopicEventsReports      = "events.report.*"
	TopicEventsScheduledAll = "events.scheduled.*"
)
