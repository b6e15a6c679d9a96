package store

import (
	"bytes"
	"encoding/gob"
)

// decodeGob decodes a gob-encoded value into out, used by scan callbacks
// that already hold the raw bytes instead of going through Get.
func decodeGob(value []byte, out any) error {
	return gob.NewDecoder(bytes.NewReader(value)).Decode(out)
}
