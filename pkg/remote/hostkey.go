package remote

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/skeema/knownhosts"
	"golang.org/x/crypto/ssh"
)

type hostKeyVerifier struct {
	path   string
	accept bool
	db     knownhosts.HostKeyCallback
	log    logrus.FieldLogger
}

func newHostKeyVerifier(opts Options, log logrus.FieldLogger) (*hostKeyVerifier, error) {
	path := opts.KnownHostsFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate known_hosts: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}

	if opts.AcceptUnknownHost {
		if err := ensureFile(path); err != nil {
			return nil, err
		}
	}

	db, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("load known hosts: %w", err)
	}

	return &hostKeyVerifier{
		path:   path,
		accept: opts.AcceptUnknownHost,
		db:     db,
		log:    log,
	}, nil
}

// Algorithms returns the host key algorithms already known for addr so the
// server offers a key that can be verified.
func (v *hostKeyVerifier) Algorithms(addr string) []string {
	algos := v.db.HostKeyAlgorithms(addr)
	if len(algos) == 0 {
		// nil keeps the ssh package defaults.
		return nil
	}
	return algos
}

func (v *hostKeyVerifier) Callback() ssh.HostKeyCallback {
	check := v.db.HostKeyCallback()

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		if err == nil {
			return nil
		}

		if knownhosts.IsHostKeyChanged(err) {
			return fmt.Errorf("host key for %s has changed: %w", hostname, err)
		}
		if !knownhosts.IsHostUnknown(err) {
			return err
		}
		if !v.accept {
			return fmt.Errorf("host %s is not in %s: %w", hostname, v.path, err)
		}

		if err := v.add(hostname, remote, key); err != nil {
			return err
		}
		v.log.WithField("host", hostname).Warnf("Permanently added %s key to %s.", key.Type(), v.path)
		return nil
	}
}

func (v *hostKeyVerifier) add(hostname string, remote net.Addr, key ssh.PublicKey) error {
	f, err := os.OpenFile(v.path, os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open known hosts: %w", err)
	}
	defer f.Close()

	if err := knownhosts.WriteKnownHost(f, hostname, remote, key); err != nil {
		return fmt.Errorf("write known host: %w", err)
	}
	return nil
}

func ensureFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create known hosts directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("known hosts not writable: %w", err)
		}
		return fmt.Errorf("create known hosts: %w", err)
	}
	return f.Close()
}
