// Package fingerprint computes stable content fingerprints for indexed files.
//
// The fingerprint is an MD5 digest of the file bytes, rendered as lowercase
// hex. MD5 is used as a change detector, not for security; equality of
// fingerprints is treated as "content unchanged".
package fingerprint

import (
	"crypto/md5" //nolint:gosec // content change detection, not security
	"encoding/hex"
)

// Sum returns the content fingerprint of data.
func Sum(data []byte) string {
	digest := md5.Sum(data) //nolint:gosec // content change detection, not security
	return hex.EncodeToString(digest[:])
}
