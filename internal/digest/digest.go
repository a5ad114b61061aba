// Package digest computes content-addressed identifiers for documents and
// plans.
//
// Every digest is SHA-256 with domain separation, so a document and a plan
// with identical bytes never share an identifier.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes. The version suffix enables future algorithm migration.
const (
	DomainDocument = "anchorpatch/document/v1"
	DomainPlan     = "anchorpatch/plan/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Document returns the digest of a document's exact bytes.
func Document(doc string) string {
	return hashWithDomain(DomainDocument, []byte(doc))
}

// Plan returns the digest of a serialized op list.
func Plan(ops []byte) string {
	return hashWithDomain(DomainPlan, ops)
}

// Short returns the first 12 hex characters of a digest for display.
func Short(d string) string {
	if len(d) <= 12 {
		return d
	}
	return d[:12]
}
