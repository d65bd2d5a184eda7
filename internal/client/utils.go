package client

import "strconv"

// GenerateMessageID builds the client-side id of a message,
// "<sender_id>-<unix_ms>". Server ids replace it once known.
func GenerateMessageID(senderID, unixMs int64) string {
	return strconv.FormatInt(senderID, 10) + "-" + strconv.FormatInt(unixMs, 10)
}
