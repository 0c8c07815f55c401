package object

import (
	"github.com/minio/sha256-simd"
)

// HashBytes computes the SHA-256 of data. Callers hash canonical encodings,
// never raw payloads, so ids of different kinds cannot collide.
func HashBytes(data []byte) ObjectID {
	return ObjectID(sha256.Sum256(data))
}

// HashBlob returns the id a blob with the given payload would be stored under.
func HashBlob(data []byte) BlobID {
	return BlobID(HashBytes(encodeBlob(&Blob{Data: data})))
}
