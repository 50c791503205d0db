package redis

const (
	keyPrefix = "reel-places/"

	// KeyPrefixNearby is the key prefix for per-session nearby place caches
	KeyPrefixNearby = keyPrefix + "nearby/"
)
