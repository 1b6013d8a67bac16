package source

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// Git authentication types.
const (
	AuthNone  = "none"
	AuthToken = "token"
	AuthSSH   = "ssh"
)

// AuthConfig selects how the git source authenticates.
type AuthConfig struct {
	// Type is "none", "token" or "ssh". Empty means none.
	Type string `yaml:"type"`

	// Token is a personal access token for HTTPS remotes.
	Token string `yaml:"token"`

	// SSHKeyPath is the private key file for SSH remotes.
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase decrypts SSHKeyPath when it is encrypted.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// authMethod returns the go-git transport auth for cfg. Public
// repositories get a nil method.
func authMethod(cfg AuthConfig) (transport.AuthMethod, error) {
	switch cfg.Type {
	case AuthNone, "":
		return nil, nil

	case AuthToken:
		if cfg.Token == "" {
			return nil, fmt.Errorf("token auth requires non-empty token")
		}
		// The username is ignored by token-based hosts.
		return &http.BasicAuth{Username: "git", Password: cfg.Token}, nil

	case AuthSSH:
		if cfg.SSHKeyPath == "" {
			return nil, fmt.Errorf("ssh auth requires ssh_key_path")
		}
		info, err := os.Stat(cfg.SSHKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to access SSH key file: %w", err)
		}
		if mode := info.Mode().Perm(); mode&0077 != 0 {
			return nil, fmt.Errorf("SSH key file permissions too open (%o), should be 0600", mode)
		}
		auth, err := ssh.NewPublicKeysFromFile("git", cfg.SSHKeyPath, cfg.SSHKeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key: %w", err)
		}
		return auth, nil

	default:
		return nil, fmt.Errorf("unknown auth type: %s", cfg.Type)
	}
}
