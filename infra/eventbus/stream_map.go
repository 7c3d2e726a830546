package eventbus

import (
	"fmt"
	"strings"
)

const defaultTopicPrefix = "checkoutflow.events"

// topicNameFor maps checkout.succeeded to <prefix>.checkout.succeeded.
func topicNameFor(prefix, eventType string) string {
	return fmt.Sprintf("%s.%s", topicPrefix(prefix), strings.ToLower(eventType))
}

func dlqTopicNameFor(prefix, eventType string) string {
	return fmt.Sprintf("%s.dlq.%s", topicPrefix(prefix), strings.ToLower(eventType))
}

func topicPrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return defaultTopicPrefix
	}
	return prefix
}

func dlqStreamName(stream string) string {
	return stream + "-DLQ"
}

func parseBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
