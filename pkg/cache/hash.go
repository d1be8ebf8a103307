package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// hashKey generates a cache key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// makefileGlobs are the names in a directory whose content can change a
// database dump without changing make's arguments.
var makefileGlobs = []string{"GNUmakefile", "makefile", "Makefile", "*.mk", "*.mak", "*.make"}

// Fingerprint hashes the names and contents of the Makefiles in dir, plus
// any extra files (typically the -f argument when it lives elsewhere).
// Unreadable files contribute only their name.
func Fingerprint(dir string, extra ...string) (string, error) {
	var files []string
	for _, pattern := range makefileGlobs {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return "", err
		}
		files = append(files, matches...)
	}
	files = append(files, extra...)
	slices.Sort(files)
	files = slices.Compact(files)

	h := sha256.New()
	for _, f := range files {
		fmt.Fprintf(h, "%s\x00", f)
		if err := hashFile(h, f); err != nil {
			continue
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// envIgnored are variables shells change between otherwise identical runs.
var envIgnored = map[string]bool{"_": true, "OLDPWD": true}

// EnvHash hashes environ ("NAME=value" entries) independently of order.
func EnvHash(environ []string) string {
	env := make([]string, 0, len(environ))
	for _, kv := range environ {
		name, _, _ := strings.Cut(kv, "=")
		if !envIgnored[name] {
			env = append(env, kv)
		}
	}
	slices.Sort(env)

	h := sha256.New()
	for _, kv := range env {
		fmt.Fprintf(h, "%s\x00", kv)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FileHashes returns the content hash of each file. Missing or unreadable
// files map to the empty string.
func FileHashes(files []string) map[string]string {
	out := make(map[string]string, len(files))
	for _, f := range files {
		h := sha256.New()
		if err := hashFile(h, f); err != nil {
			out[f] = ""
			continue
		}
		out[f] = hex.EncodeToString(h.Sum(nil))
	}
	return out
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
