package chat

import "strings"

// topicVocabulary is the fixed keyword set scanned on every inbound
// message. Deliberately separate from the scoring topic configuration.
var topicVocabulary = []string{
	"AI",
	"technology",
	"business",
	"liquidity",
	"tokenized",
	"stablecoin",
	"deposits",
	"treasury",
	"commerce",
}

// extractTopics returns the union of explicitly supplied topics and any
// vocabulary keyword found in the message, first-seen order, deduplicated.
func extractTopics(message string, explicit []string) []string {
	topics := make([]string, 0, len(explicit))
	seen := make(map[string]struct{})
	for _, topic := range explicit {
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}

	lower := strings.ToLower(message)
	for _, keyword := range topicVocabulary {
		if _, ok := seen[keyword]; ok {
			continue
		}
		if strings.Contains(lower, strings.ToLower(keyword)) {
			seen[keyword] = struct{}{}
			topics = append(topics, keyword)
		}
	}

	return topics
}
