package orchestrator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const auditIssuer = "artifactops"

// ExportSignedAuditTrail returns the provenance log as an HS256-signed JWS
// for tamper-evident handoff. The claims carry the records themselves plus
// issuer, count, and issue time.
func (o *Orchestrator) ExportSignedAuditTrail(key []byte) (string, error) {
	if len(key) == 0 {
		return "", ErrMissingSigningKey
	}

	records := o.ExportAuditTrail()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":     auditIssuer,
		"iat":     jwt.NewNumericDate(time.Now()),
		"count":   len(records),
		"records": records,
	})

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("orchestrator: sign audit trail: %w", err)
	}
	return signed, nil
}

// VerifySignedAuditTrail validates a signed audit trail and returns its
// records. Tokens with a bad signature, wrong algorithm, or wrong issuer
// are rejected.
func VerifySignedAuditTrail(signed string, key []byte) ([]ProvenanceRecord, error) {
	if len(key) == 0 {
		return nil, ErrMissingSigningKey
	}

	token, err := jwt.Parse(signed, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidAuditToken, token.Header["alg"])
		}
		return key, nil
	}, jwt.WithIssuer(auditIssuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAuditToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidAuditToken
	}

	// Round-trip the records claim through JSON to restore typing.
	raw, err := json.Marshal(claims["records"])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAuditToken, err)
	}
	var records []ProvenanceRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAuditToken, err)
	}
	return records, nil
}
