package remote

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

var defaultKeyFiles = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

type authenticator struct {
	methods []ssh.AuthMethod
	agent   net.Conn
}

func newAuthenticator(opts Options, log logrus.FieldLogger) (*authenticator, error) {
	if opts.Password != "" {
		password := opts.Password
		return &authenticator{
			methods: []ssh.AuthMethod{
				ssh.Password(password),
				ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
					answers := make([]string, len(questions))
					for i := range answers {
						answers[i] = password
					}
					return answers, nil
				}),
			},
		}, nil
	}

	a := &authenticator{}

	var agentClient agent.ExtendedAgent
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)
		if err != nil {
			log.WithError(err).Debug("SSH agent unavailable.")
		} else {
			a.agent = conn
			agentClient = agent.NewClient(conn)
		}
	}

	keys, err := loadKeyFiles(opts.KeyFile, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	if agentClient == nil && len(keys) == 0 {
		return nil, errors.New("no SSH agent or private key available")
	}

	// All key sources share one publickey method; the client does not retry a
	// method name once it has failed.
	a.methods = []ssh.AuthMethod{
		ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
			var signers []ssh.Signer
			if agentClient != nil {
				fromAgent, err := agentClient.Signers()
				if err != nil {
					log.WithError(err).Debug("Cannot list SSH agent keys.")
				}
				signers = append(signers, fromAgent...)
			}
			return append(signers, keys...), nil
		}),
	}
	return a, nil
}

func (a *authenticator) Methods() []ssh.AuthMethod {
	return a.methods
}

func (a *authenticator) Close() {
	if a.agent != nil {
		a.agent.Close()
	}
}

// loadKeyFiles reads keyFile, or the default identities in ~/.ssh when it is
// empty. Missing default identities and encrypted keys are skipped.
func loadKeyFiles(keyFile string, log logrus.FieldLogger) ([]ssh.Signer, error) {
	if keyFile != "" {
		signer, err := readKey(keyFile)
		if err != nil {
			return nil, err
		}
		return []ssh.Signer{signer}, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		log.WithError(err).Debug("Cannot locate home directory.")
		return nil, nil
	}

	var signers []ssh.Signer
	for _, name := range defaultKeyFiles {
		path := filepath.Join(home, ".ssh", name)
		signer, err := readKey(path)
		switch {
		case err == nil:
			signers = append(signers, signer)
		case errors.Is(err, os.ErrNotExist):
		default:
			log.WithError(err).WithField("key", path).Debug("Skipping private key.")
		}
	}
	return signers, nil
}

func readKey(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("private key %s is encrypted: %w", path, err)
		}
		return nil, fmt.Errorf("parse private key %s: %w", path, err)
	}
	return signer, nil
}
