package origin

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TokenPrefix makes collect credentials recognizable in logs and configs
// without revealing anything about the random part.
const TokenPrefix = "veil_"

const RoleOwner = "owner"

type Origin struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Domain       string    `db:"domain" json:"domain"`
	OwnerAddress string    `db:"owner_address" json:"owner_address"`
	Token        string    `db:"token" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

type EncryptionKey struct {
	ID          uuid.UUID `db:"id" json:"id"`
	OriginID    uuid.UUID `db:"origin_id" json:"origin_id"`
	PublicKey   string    `db:"public_key" json:"public_key"`
	Fingerprint string    `db:"fingerprint" json:"fingerprint"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type Role struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OriginID  uuid.UUID `db:"origin_id" json:"origin_id"`
	Address   string    `db:"address" json:"address"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func NewOrigin(domain, ownerAddress string) (*Origin, error) {
	domain = strings.TrimSpace(strings.ToLower(domain))
	ownerAddress = strings.TrimSpace(ownerAddress)

	if domain == "" {
		return nil, ErrInvalidDomain
	}
	if ownerAddress == "" {
		return nil, ErrInvalidOwner
	}

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now().UTC()
	return &Origin{
		ID:           uuid.New(),
		Domain:       domain,
		OwnerAddress: ownerAddress,
		Token:        token,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NewEncryptionKey mints the origin's active key. The material is random and
// only its fingerprint is ever surfaced; the codec does not use it yet.
func NewEncryptionKey(originID uuid.UUID) (*EncryptionKey, error) {
	material := make([]byte, 32)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("failed to generate key material: %w", err)
	}

	digest := sha256.Sum256(material)

	return &EncryptionKey{
		ID:          uuid.New(),
		OriginID:    originID,
		PublicKey:   base64.StdEncoding.EncodeToString(material),
		Fingerprint: hex.EncodeToString(digest[:8]),
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func NewOwnerRole(originID uuid.UUID, address string) *Role {
	return &Role{
		ID:        uuid.New(),
		OriginID:  originID,
		Address:   address,
		Role:      RoleOwner,
		CreatedAt: time.Now().UTC(),
	}
}

func newToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return TokenPrefix + hex.EncodeToString(raw), nil
}
