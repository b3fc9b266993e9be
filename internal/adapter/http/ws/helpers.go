package wshandler

import (
	"strings"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	ws "github.com/Temutjin2k/ride-match/pkg/wsHub"
)

func errorResponse(conn *ws.Conn, message string) error {
	return conn.Send(models.WebSocketMessage{
		Type:  models.WSMessageError,
		Error: message,
	})
}

// parseTopics accepts both ?topic=a&topic=b and ?topic=a,b. Duplicates are dropped.
func parseTopics(values []string) []string {
	seen := make(map[string]struct{})
	var topics []string
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			topics = append(topics, t)
		}
	}
	return topics
}
