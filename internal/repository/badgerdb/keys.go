package badgerdb

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tyrowin/pairchat/internal/model"
)

func userKey(id model.UserID) []byte { return []byte("user:" + id.String()) }

func emailKey(email string) []byte { return []byte("user-email:" + strings.ToLower(email)) }

func messageKey(id int64) []byte { return []byte(fmt.Sprintf("msg:%019d", id)) }

func clientKey(id uuid.UUID) []byte { return []byte("client:" + id.String()) }

// pairPrefix is shared by both directions of a conversation.
func pairPrefix(a, b model.UserID) string {
	lo, hi := a.String(), b.String()
	if hi < lo {
		lo, hi = hi, lo
	}
	return "pair:" + lo + ":" + hi + ":"
}

func pairKey(m model.Message) []byte {
	return []byte(fmt.Sprintf("%s%019d:%019d", pairPrefix(m.SenderID, m.ReceiverID), m.CreatedAt.UnixNano(), m.ID))
}

// idFromPairKey extracts the trailing message id of a pair key.
func idFromPairKey(key []byte) (int64, error) {
	s := string(key)
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return 0, fmt.Errorf("malformed pair key %q", s)
	}
	return strconv.ParseInt(s[i+1:], 10, 64)
}

func now() time.Time { return time.Now().UTC() }
