package utilities

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string. Used as a
// correlation id for a single ledger operation in logs.
func NewKSUID() string {
	return ksuid.New().String()
}

// ParseUserID parses a chat-platform user id. Ids are snowflakes; mention
// syntax such as <@123> or <@!123> is accepted as well.
func ParseUserID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<@")
	s = strings.TrimPrefix(s, "!")
	s = strings.TrimSuffix(s, ">")
	id, err := snowflake.ParseString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: %w", s, err)
	}
	if id.Int64() <= 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return id.Int64(), nil
}

// FormatUserID renders a user id the way the chat platform prints it.
func FormatUserID(id int64) string {
	return snowflake.ParseInt64(id).String()
}
