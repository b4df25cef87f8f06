package threading

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

// DeriveMessageID builds a deterministic identifier for a message that
// arrived without a Message-ID header, hashing the source file name together
// with its timestamp. Repeated runs over the same input always derive the
// same id; uniqueness against other synthetic ids is not guaranteed.
func DeriveMessageID(sourceLocator, timestamp string) string {
	seed := fmt.Sprintf("%s_%s", filepath.Base(sourceLocator), timestamp)
	sum := md5.Sum([]byte(seed))
	return hex.EncodeToString(sum[:])
}
