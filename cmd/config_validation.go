package cmd

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
)

// configGetter retrieves raw configuration values by dotted key path.
type configGetter func(key string) any

// validateStartupConfig validates startup configuration from the shared config source.
// It returns an error when any configured value is malformed or violates constraints.
func validateStartupConfig() error {
	return validateStartupConfigWithGetter(func(key string) any {
		return gconfig.S.Get(key)
	})
}

// validateStartupConfigWithGetter validates startup configuration via a key-value getter.
// It accepts a value getter and returns nil when all configured values are valid.
func validateStartupConfigWithGetter(get configGetter) error {
	if get == nil {
		return errors.New("config getter is nil")
	}

	validationErrs := make([]string, 0)

	validateDBConfig(get, &validationErrs)
	validateRedisConfig(get, &validationErrs)
	validateRecommendConfig(get, &validationErrs)
	validateNearbyConfig(get, &validationErrs)
	validateWebConfig(get, &validationErrs)

	if len(validationErrs) == 0 {
		return nil
	}

	return errors.Errorf("invalid configuration:\n - %s", strings.Join(validationErrs, "\n - "))
}

// validateDBConfig validates the cache database selection and its connection fields.
func validateDBConfig(get configGetter, errs *[]string) {
	driver := validateOptionalEnum(get, "settings.db.driver", []string{dbDriverPostgres, dbDriverSQLite}, errs)
	validateOptionalTableName(get, "settings.db.table", errs)

	switch driver {
	case "", dbDriverPostgres:
		validateRequiredHost(get, "settings.db.postgres.addr", errs)
		validateRequiredStringNonEmpty(get, "settings.db.postgres.db", errs)
		validateRequiredStringNonEmpty(get, "settings.db.postgres.user", errs)
		validateOptionalIntRange(get, "settings.db.postgres.port", 1, 65535, errs)
	case dbDriverSQLite:
		validateOptionalStringNonEmpty(get, "settings.db.sqlite.path", errs)
	}
}

// validateRedisConfig validates redis-related startup configuration values.
// It accepts a getter and an error collector pointer and appends validation errors.
func validateRedisConfig(get configGetter, errs *[]string) {
	validateOptionalIntMin(get, "settings.db.redis.db", 0, errs)
	if get("settings.db.redis.addr") != nil {
		validateRequiredHost(get, "settings.db.redis.addr", errs)
	}
}

// validateRecommendConfig validates the recommendation webhook settings.
func validateRecommendConfig(get configGetter, errs *[]string) {
	if get("settings.recommend.webhook.url") == nil {
		appendValidationError(errs, "settings.recommend.webhook.url is required")
	} else {
		validateOptionalURL(get, "settings.recommend.webhook.url", errs)
	}
	validateOptionalDuration(get, "settings.recommend.webhook.timeout", errs)
	validateOptionalBool(get, "settings.recommend.coalesce", errs)
}

// validateNearbyConfig validates the nearby finder and session cache settings.
// The nearby routes are optional, so credentials are only checked when present.
func validateNearbyConfig(get configGetter, errs *[]string) {
	validateOptionalEnum(get, "settings.nearby.finder", []string{nearbyFinderWebhook, nearbyFinderGoogle}, errs)
	validateOptionalURL(get, "settings.nearby.webhook.url", errs)
	validateOptionalStringNonEmpty(get, "settings.nearby.google.api_key", errs)
	validateOptionalDuration(get, "settings.nearby.cache_ttl", errs)

	cache := validateOptionalEnum(get, "settings.nearby.cache", []string{nearbyCacheMemory, nearbyCacheRedis, nearbyCacheSQLite}, errs)
	if cache == nearbyCacheRedis && get("settings.db.redis.addr") == nil {
		appendValidationError(errs, "settings.db.redis.addr is required when settings.nearby.cache is redis")
	}
}

// validateWebConfig validates the http server settings.
func validateWebConfig(get configGetter, errs *[]string) {
	raw := get("settings.web.cors_origins")
	if raw == nil {
		return
	}

	origins, err := parseStrictStringSlice(raw)
	if err != nil {
		appendValidationError(errs, "settings.web.cors_origins must be a list of origins")
		return
	}
	for i, origin := range origins {
		if strings.TrimSpace(origin) == "" {
			appendValidationError(errs, "settings.web.cors_origins[%d] must not be empty", i)
		}
	}
}

// validateOptionalBool validates an optionally configured boolean key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalBool(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	if _, ok := parseStrictBool(raw); !ok {
		appendValidationError(errs, "%s must be a boolean", key)
	}
}

// validateOptionalIntMin validates an optionally configured integer key with a minimum constraint.
// It accepts a getter, the key, a minimum value, and an error collector pointer and appends validation errors.
func validateOptionalIntMin(get configGetter, key string, min int, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictInt(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be an integer", key)
		return
	}

	if value < min {
		appendValidationError(errs, "%s must be >= %d", key, min)
	}
}

// validateOptionalIntRange validates an optionally configured integer key within [min, max].
func validateOptionalIntRange(get configGetter, key string, min, max int, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictInt(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be an integer", key)
		return
	}

	if value < min || value > max {
		appendValidationError(errs, "%s must be within [%d, %d]", key, min, max)
	}
}

// validateOptionalDuration validates an optionally configured positive duration key.
func validateOptionalDuration(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictDuration(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a duration like 30s or 2m", key)
		return
	}

	if value <= 0 {
		appendValidationError(errs, "%s must be > 0", key)
	}
}

// validateOptionalEnum validates an optionally configured string key against allowed values.
// It returns the normalized value, or "" when the key is absent or invalid.
func validateOptionalEnum(get configGetter, key string, allowed []string, errs *[]string) string {
	raw := get(key)
	if raw == nil {
		return ""
	}

	value, parseErr := parseStrictString(raw)
	if parseErr == nil {
		normalized := strings.ToLower(strings.TrimSpace(value))
		for _, candidate := range allowed {
			if normalized == candidate {
				return normalized
			}
		}
	}

	appendValidationError(errs, "%s must be one of [%s]", key, strings.Join(allowed, ", "))
	return ""
}

// validateOptionalTableName validates an optionally configured SQL identifier.
func validateOptionalTableName(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil || !isValidIdentifier(value) {
		appendValidationError(errs, "%s must match [a-zA-Z0-9_]{1,64}", key)
	}
}

// validateRequiredStringNonEmpty validates a required non-empty string key.
func validateRequiredStringNonEmpty(get configGetter, key string, errs *[]string) {
	if get(key) == nil {
		appendValidationError(errs, "%s is required", key)
		return
	}
	validateOptionalStringNonEmpty(get, key, errs)
}

// validateRequiredHost validates a required host or host:port key.
func validateRequiredHost(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		appendValidationError(errs, "%s is required", key)
		return
	}

	host, parseErr := parseStrictString(raw)
	if parseErr != nil || !isValidHost(host) {
		appendValidationError(errs, "%s must be a valid host", key)
	}
}

// validateOptionalURL validates an optionally configured absolute URL key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalURL(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string URL", key)
		return
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		appendValidationError(errs, "%s must not be empty", key)
		return
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		appendValidationError(errs, "%s must be a valid absolute URL", key)
	}
}

// validateOptionalStringNonEmpty validates an optionally configured non-empty string key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalStringNonEmpty(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string", key)
		return
	}

	if strings.TrimSpace(value) == "" {
		appendValidationError(errs, "%s must not be empty", key)
	}
}

// parseStrictBool parses a value as boolean using strict conversion rules.
// It accepts a raw value and returns the parsed boolean and whether parsing succeeded.
func parseStrictBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case int:
		return v != 0, true
	case int64:
		return v != 0, true
	case float64:
		if math.Trunc(v) != v {
			return false, false
		}
		return int64(v) != 0, true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return false, false
		}
		switch strings.ToLower(trimmed) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		default:
			return false, false
		}
	default:
		return false, false
	}
}

// parseStrictInt parses a value as a strict integer.
// It accepts a raw value and returns the parsed int and an error when parsing fails.
func parseStrictInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if math.Trunc(v) != v {
			return 0, errors.Errorf("%v is not an integer", v)
		}
		return int(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, errors.New("empty integer string")
		}
		parsed, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, errors.Wrap(err, "atoi")
		}
		return parsed, nil
	default:
		return 0, errors.Errorf("unsupported int type %T", value)
	}
}

// parseStrictString parses a value as a strict string.
// It accepts a raw value and returns the parsed string and an error when parsing fails.
func parseStrictString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", errors.Errorf("unsupported string type %T", value)
	}
}

// parseStrictDuration parses a duration string, bare numbers are seconds.
func parseStrictDuration(value any) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case int, int64, float64:
		secs, err := parseStrictInt(v)
		if err != nil {
			return 0, errors.WithStack(err)
		}
		return time.Duration(secs) * time.Second, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, errors.New("empty duration string")
		}
		if secs, err := strconv.Atoi(trimmed); err == nil {
			return time.Duration(secs) * time.Second, nil
		}
		parsed, err := time.ParseDuration(trimmed)
		if err != nil {
			return 0, errors.Wrap(err, "parse duration")
		}
		return parsed, nil
	default:
		return 0, errors.Errorf("unsupported duration type %T", value)
	}
}

// parseStrictStringSlice parses a list of strings, a comma separated string is accepted too.
func parseStrictStringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, err := parseStrictString(item)
			if err != nil {
				return nil, errors.Wrapf(err, "item %d", i)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return strings.Split(v, ","), nil
	default:
		return nil, errors.Errorf("unsupported list type %T", value)
	}
}

// isValidIdentifier reports whether name is a safe SQL table name.
func isValidIdentifier(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for _, r := range name {
		if !(r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return true
}

// isValidHost validates a host string without scheme or path components.
// It accepts a host string and returns true when the host is syntactically acceptable.
func isValidHost(host string) bool {
	trimmed := strings.TrimSpace(host)
	if trimmed == "" {
		return false
	}
	if strings.Contains(trimmed, "://") || strings.Contains(trimmed, "/") {
		return false
	}
	return true
}

// appendValidationError appends a formatted validation error to the collector.
// It accepts an error slice pointer, a format string, and format arguments, and has no return value.
func appendValidationError(errs *[]string, format string, args ...any) {
	if errs == nil {
		return
	}
	*errs = append(*errs, fmt.Sprintf(format, args...))
}
