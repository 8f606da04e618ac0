package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainProgram  = "kobra/program/v1"
	DomainSnapshot = "kobra/snapshot/v1"
	DomainModel    = "kobra/model/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProgramHash identifies a compiled program by its statement texts, in order.
// Identical graphs compile to identical hashes.
func ProgramHash(texts []string) (string, error) {
	canonical, err := MarshalCanonical(texts)
	if err != nil {
		return "", fmt.Errorf("ProgramHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProgram, canonical), nil
}

// SnapshotDigest identifies an encoded snapshot blob.
func SnapshotDigest(blob []byte) string {
	return hashWithDomain(DomainSnapshot, blob)
}

// ModelDigest identifies a serialized trained model.
func ModelDigest(payload []byte) string {
	return hashWithDomain(DomainModel, payload)
}

// MustProgramHash is like ProgramHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustProgramHash(texts []string) string {
	h, err := ProgramHash(texts)
	if err != nil {
		panic(err)
	}
	return h
}
