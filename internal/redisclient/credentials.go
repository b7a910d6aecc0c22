package redisclient

import (
	"context"
	"time"

	"tnf-api/internal/ikas"
)

const credentialKey = "ikas:credential"

// CredentialStore shares the commerce gateway token across instances.
type CredentialStore struct {
	client *Client
	now    func() time.Time
}

func NewCredentialStore(client *Client) *CredentialStore {
	return &CredentialStore{client: client, now: time.Now}
}

func (s *CredentialStore) Load(ctx context.Context) (ikas.Credential, bool) {
	var cred ikas.Credential
	if err := s.client.GetJSON(ctx, credentialKey, &cred); err != nil {
		return ikas.Credential{}, false
	}
	return cred, cred.Token != ""
}

// Save keeps the credential until it stops being valid.
func (s *CredentialStore) Save(ctx context.Context, cred ikas.Credential) error {
	ttl := cred.ValidUntil.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.client.SetJSON(ctx, credentialKey, cred, ttl)
}
