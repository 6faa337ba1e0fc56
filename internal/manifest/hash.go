package manifest

import (
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/blake3"
)

// domainKey is a 32-byte BLAKE3 key. Each record kind hashes in its own
// domain so equal bytes never collide across kinds.
type domainKey [32]byte

func newDomainKey(name string) domainKey {
	var k domainKey
	copy(k[:], name)
	return k
}

var (
	fileDomainKey    = newDomainKey("lazy.manifest.file")
	envDomainKey     = newDomainKey("lazy.manifest.env")
	commandDomainKey = newDomainKey("lazy.manifest.command")
	digestDomainKey  = newDomainKey("lazy.manifest.digest")
)

func newKeyedHasher(key domainKey) *blake3.Hasher {
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		// only returned for a key of the wrong length
		panic("manifest: blake3 keyed hash initialization failed: " + err.Error())
	}
	return h
}

func hashString(key domainKey, s string) string {
	h := newKeyedHasher(key)
	_, _ = io.WriteString(h, s)
	return hex.EncodeToString(h.Sum(nil))
}

// HashEnv hashes an environment value. Unset and empty are distinct.
func HashEnv(value string, set bool) string {
	if !set {
		return hashString(envDomainKey, "\x00unset")
	}
	return hashString(envDomainKey, "="+value)
}

// HashCommand hashes a resolved shell command.
func HashCommand(command string) string {
	return hashString(commandDomainKey, command)
}

const defaultHasherSize = 16384

type fileKey struct {
	path  string
	size  int64
	mtime int64
}

// Hasher computes file content hashes, remembering recent results by path,
// size and modification time. It is safe for concurrent use and meant to be
// shared by every task of a run and across watch re-runs.
type Hasher struct {
	memo *lru.Cache[fileKey, string]
}

// NewHasher returns a Hasher remembering up to size files. size <= 0 uses a
// default.
func NewHasher(size int) *Hasher {
	if size <= 0 {
		size = defaultHasherSize
	}
	memo, err := lru.New[fileKey, string](size)
	if err != nil {
		// lru.New only errors on a non-positive size, guarded above.
		panic(err)
	}
	return &Hasher{memo: memo}
}

// HashFile returns the content hash of path. info must describe path.
func (h *Hasher) HashFile(path string, info fs.FileInfo) (string, error) {
	key := fileKey{path: path, size: info.Size(), mtime: info.ModTime().UnixNano()}
	if sum, ok := h.memo.Get(key); ok {
		return sum, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()

	hasher := newKeyedHasher(fileDomainKey)
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	sum := hex.EncodeToString(hasher.Sum(nil))
	h.memo.Add(key, sum)
	return sum, nil
}

// Purge forgets every remembered hash.
func (h *Hasher) Purge() { h.memo.Purge() }
