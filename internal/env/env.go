package env

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const NotExists = "~!-===X===-!~"

// GetString retrieves the value of the environment variable named by the key.
// It returns the value, or if the variable is not present, it returns the defaultValue.
func GetString(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

// GetFirstString returns the value of the first variable in keys that is set
// to a non-empty value, e.g. a public override followed by the server-side
// name.
func GetFirstString(defaultValue string, keys ...string) string {
	for _, key := range keys {
		if value := GetString(key, ""); value != "" {
			return value
		}
	}
	return defaultValue
}

// GetBool returns true if the env variable with the key set and is truthy and
// defaultValue otherwise.
func GetBool(key string, defaultValue bool) bool {
	strValue := GetString(key, NotExists)
	if strValue == NotExists {
		return defaultValue
	}

	if strValue == "1" || strValue == "true" {
		return true
	}

	return false
}

// GetInt returns an integer if the env variable with the key set and contains
// an integer and defaultValue otherwise.
func GetInt(key string, defaultValue int) int {
	strValue := GetString(key, NotExists)
	if strValue == NotExists {
		return defaultValue
	}

	intValue, err := strconv.ParseInt(strValue, 10, 64)
	if err != nil {
		return defaultValue
	}

	return int(intValue)
}

// GetDuration parses values like "10s" or "500ms".
func GetDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := GetString(key, NotExists)
	if strValue == NotExists {
		return defaultValue
	}

	d, err := time.ParseDuration(strValue)
	if err != nil {
		return defaultValue
	}

	return d
}

// GetList splits a comma separated variable, dropping empty items.
func GetList(key string, defaultValue []string) []string {
	var items []string

	str := GetString(key, "")
	if str == "" {
		return defaultValue
	}

	for _, s := range strings.Split(str, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}

		items = append(items, s)
	}

	return items
}
