package redis

import "fmt"

const (
	// KeyPrefixEntry is the prefix for catalog entry keys
	KeyPrefixEntry = "scout:entry:"
	// KeyAllEntries is the key for the set of all external ids
	KeyAllEntries = "scout:entries:all"
	// KeyPrefixReport is the prefix for run report keys
	KeyPrefixReport = "scout:report:"
	// KeyReportHistory lists recent run ids, newest first
	KeyReportHistory = "scout:reports"
	// KeyLastReport holds the most recent report
	KeyLastReport = "scout:report:last"
)

// EntryKey returns the Redis key for a catalog entry by external id
func EntryKey(externalID string) string {
	return KeyPrefixEntry + externalID
}

// AllEntriesKey returns the key for the set of all external ids
func AllEntriesKey() string {
	return KeyAllEntries
}

// ReportKey returns the Redis key for a run report
func ReportKey(runID string) string {
	return KeyPrefixReport + runID
}

// ExtractExternalID extracts the external id from an entry key
func ExtractExternalID(key string) (string, error) {
	if len(key) <= len(KeyPrefixEntry) || key[:len(KeyPrefixEntry)] != KeyPrefixEntry {
		return "", fmt.Errorf("invalid entry key: %s", key)
	}
	return key[len(KeyPrefixEntry):], nil
}
