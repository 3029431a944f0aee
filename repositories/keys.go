package repositories

import (
	"fmt"
	"strconv"

	"chat-relay/domain"
)

// Key layout. Numeric segments are zero-padded to 19 digits so that badger's
// lexicographic iteration order matches numeric order.
func userKey(id domain.UserID) []byte {
	return []byte(fmt.Sprintf("user:%019d", id))
}

func groupKey(id domain.GroupID) []byte {
	return []byte(fmt.Sprintf("group:%019d", id))
}

func membershipKey(groupID domain.GroupID, userID domain.UserID) []byte {
	return []byte(fmt.Sprintf("groupmember:%019d:%019d", groupID, userID))
}

func userGroupKey(userID domain.UserID, groupID domain.GroupID) []byte {
	return []byte(fmt.Sprintf("usergroup:%019d:%019d", userID, groupID))
}

func friendKey(userID, friendID domain.UserID) []byte {
	return []byte(fmt.Sprintf("friend:%019d:%019d", userID, friendID))
}

// lastKeySegment extracts the trailing numeric segment of a composite key.
func lastKeySegment(key []byte) (int64, error) {
	k := string(key)
	for i := len(k) - 1; i >= 0; i-- {
		if k[i] == ':' {
			return strconv.ParseInt(k[i+1:], 10, 64)
		}
	}
	return 0, fmt.Errorf("malformed key %q", k)
}
