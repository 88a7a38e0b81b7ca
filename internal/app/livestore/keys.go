package livestore

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"
)

// Keys builds every Fast Store key used by the live core. All keys share a
// slugified namespace so several deployments can share one Redis.
type Keys struct {
	prefix string
}

func NewKeys(namespace string) Keys {
	p := slug.Make(namespace)
	if p == "" {
		p = "live"
	}
	return Keys{prefix: p}
}

func (k Keys) Prefix() string { return k.prefix }

func (k Keys) AnswerKey(contestID string) string {
	return fmt.Sprintf("%s:contest:%s:answer_key", k.prefix, contestID)
}

func (k Keys) Leaderboard(contestID string) string {
	return fmt.Sprintf("%s:contest:%s:leaderboard", k.prefix, contestID)
}

// Submissions is the hash holding one participant's answers for a contest.
func (k Keys) Submissions(contestID, userID string) string {
	return fmt.Sprintf("%s:submission:%s:%s", k.prefix, contestID, userID)
}

// ParseSubmissions reverses Submissions. Ids never contain ':'.
func (k Keys) ParseSubmissions(key string) (contestID, userID string, ok bool) {
	rest, found := strings.CutPrefix(key, k.prefix+":submission:")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (k Keys) DirtySet() string {
	return k.prefix + ":submissions:dirty"
}

func (k Keys) Version() string {
	return k.prefix + ":submissions:version"
}

func (k Keys) FlushedVersion() string {
	return k.prefix + ":submissions:flushed_version"
}

func (k Keys) Lock(name string) string {
	return fmt.Sprintf("%s:lock:%s", k.prefix, name)
}
