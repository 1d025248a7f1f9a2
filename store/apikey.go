package store

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/relayforge/gateway/common/config"
)

// HashAPIKey derives the deterministic digest a User's APIKeys are indexed
// and compared under. API keys are high-entropy random tokens (unlike
// passwords), so a keyed SHA-256 digest gives the same brute-force
// resistance as storing nothing at all while still supporting an equality
// lookup in kv_related_index — bcrypt cannot do this, since its per-hash
// salt makes every stored value incomparable to a freshly computed one
// without already knowing which row to check against.
func HashAPIKey(rawKey string) string {
	pepper := config.SessionSecret
	if pepper == "" {
		pepper = "relayforge-default-pepper"
	}
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(rawKey))
	return hex.EncodeToString(mac.Sum(nil))
}
