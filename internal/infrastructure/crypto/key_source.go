package crypto

import (
	"context"
	"fmt"
	"os"
	"strings"

	vault "github.com/hashicorp/vault/api"

	"github.com/turtacn/pushgate/pkg/errors"
)

// KeySource yields the PEM-encoded P-256 signing key.
type KeySource interface {
	Load(ctx context.Context) ([]byte, error)
}

// FileKeySource reads the key from a .p8 file on every load, so a rotated
// file is picked up on the next credential generation.
type FileKeySource struct {
	Path string
}

// NewFileKeySource creates a FileKeySource.
func NewFileKeySource(path string) *FileKeySource {
	return &FileKeySource{Path: path}
}

// Load implements KeySource.
func (f *FileKeySource) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrKeySource, err, "read signing key file").WithMetadata("path", f.Path)
	}
	return data, nil
}

// VaultKeySource reads the key from a KV v2 secret in HashiCorp Vault.
type VaultKeySource struct {
	client     *vault.Client
	mountPath  string
	secretPath string
	field      string
}

// NewVaultKeySource creates a Vault-backed key source.
func NewVaultKeySource(address, token, mountPath, secretPath, field string) (*VaultKeySource, error) {
	cfg := vault.DefaultConfig()
	cfg.Address = address

	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrKeySource, err, "create vault client")
	}
	client.SetToken(token)

	return &VaultKeySource{
		client:     client,
		mountPath:  strings.Trim(mountPath, "/"),
		secretPath: strings.Trim(secretPath, "/"),
		field:      field,
	}, nil
}

// Load implements KeySource.
func (v *VaultKeySource) Load(ctx context.Context) ([]byte, error) {
	path := fmt.Sprintf("%s/data/%s", v.mountPath, v.secretPath)

	secret, err := v.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrKeySource, err, "read vault secret").WithMetadata("path", path)
	}
	if secret == nil || secret.Data == nil {
		return nil, errors.ErrKeySource.WithMessage("vault secret not found").WithMetadata("path", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, errors.ErrKeySource.WithMessage("vault secret has no KV v2 data").WithMetadata("path", path)
	}
	pem, ok := data[v.field].(string)
	if !ok || pem == "" {
		return nil, errors.ErrKeySource.WithMessage("vault secret field missing").WithMetadata("field", v.field)
	}
	return []byte(pem), nil
}
