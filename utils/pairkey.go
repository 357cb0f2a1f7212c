package utils

import "net/url"

// DirectRoomPairKey builds the canonical key for an unordered pair of
// usernames. Both orderings of the same pair produce the same key, which is
// what the unique index on direct rooms constrains. Each username is escaped
// before joining: the identity subsystem never promises a username charset,
// so the separator must not be forgeable from inside a name.
func DirectRoomPairKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return url.QueryEscape(userA) + "|" + url.QueryEscape(userB)
}
