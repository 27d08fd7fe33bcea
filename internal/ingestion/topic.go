package ingestion

import (
	"fmt"
	"strings"
)

const (
	_topicRoot   = "device"
	_topicSuffix = "readings"
)

// TopicPattern is the subscription matching readings from every device of a
// hardware line: device/<line>/+/readings.
func TopicPattern(hardwareLine string) string {
	return fmt.Sprintf("%s/%s/+/%s", _topicRoot, hardwareLine, _topicSuffix)
}

func DeviceIDFromTopic(hardwareLine, topic string) (string, error) {
	segments := strings.Split(topic, "/")
	if len(segments) != 4 ||
		segments[0] != _topicRoot ||
		segments[1] != hardwareLine ||
		segments[3] != _topicSuffix ||
		segments[2] == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}

	return segments[2], nil
}
