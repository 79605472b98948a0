package slogging

import "strings"

// SanitizeLogMessage normalizes a message for safe single-line logging.
// Newlines, carriage returns and tabs are collapsed so that untrusted
// input cannot forge additional log records (CWE-117).
func SanitizeLogMessage(message string) string {
	message = strings.ReplaceAll(message, "\n", " ")
	message = strings.ReplaceAll(message, "\r", " ")
	message = strings.ReplaceAll(message, "\t", " ")

	// Collapse multiple spaces into one and trim whitespace
	return strings.TrimSpace(strings.Join(strings.Fields(message), " "))
}
