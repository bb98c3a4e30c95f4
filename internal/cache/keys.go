package cache

import (
	"fmt"
	"net/url"
	"strings"
)

// GET /api/messages
// messages:user:{user_id}:limit={limit}:offset={offset}
func MessagePageKey(userID string, limit, offset int) string {
	u := url.PathEscape(strings.TrimSpace(userID))
	return fmt.Sprintf("messages:user:%s:limit=%d:offset=%d", u, limit, offset)
}

// UserMessagesPattern matches every page cached for one user. Any write for
// that user deletes all of them, since an insertion shifts page boundaries.
func UserMessagesPattern(userID string) string {
	u := url.PathEscape(strings.TrimSpace(userID))
	return fmt.Sprintf("messages:user:%s:limit=*", u)
}
