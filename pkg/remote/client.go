package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

const defaultTimeout = 30 * time.Second

// Options describes how to reach and authenticate against a host.
type Options struct {
	Host string
	Port int
	User string

	// Password selects password authentication when set. Otherwise the SSH
	// agent and private keys are used.
	Password string
	KeyFile  string

	// KnownHostsFile defaults to ~/.ssh/known_hosts.
	KnownHostsFile string
	// AcceptUnknownHost records keys of hosts missing from KnownHostsFile
	// instead of rejecting them. Changed keys are always rejected.
	AcceptUnknownHost bool

	Timeout time.Duration
	Logger  logrus.FieldLogger
}

func (o Options) addr() string {
	port := o.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(o.Host, strconv.Itoa(port))
}

// Client is an open SSH connection.
type Client struct {
	conn *ssh.Client
	log  logrus.FieldLogger
}

var _ Session = (*Client)(nil)

// Dial connects and authenticates. Options.Timeout and the context bound the
// TCP connect and the SSH handshake only, not later use of the client.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	addr := opts.addr()
	log := opts.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	hostKeys, err := newHostKeyVerifier(opts, log)
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}

	auth, err := newAuthenticator(opts, log)
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}
	defer auth.Close()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	config := &ssh.ClientConfig{
		User:              opts.User,
		Auth:              auth.Methods(),
		HostKeyCallback:   hostKeys.Callback(),
		HostKeyAlgorithms: hostKeys.Algorithms(addr),
		Timeout:           timeout,
	}

	dialer := net.Dialer{Timeout: timeout}
	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}

	// Timeout covers the TCP connect and the SSH handshake. An earlier
	// context deadline wins.
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = nc.SetDeadline(deadline)

	// Cancelling ctx closes the connection, which aborts the handshake.
	stop := context.AfterFunc(ctx, func() { nc.Close() })

	c, chans, reqs, err := ssh.NewClientConn(nc, addr, config)
	if !stop() {
		if err == nil {
			c.Close()
		}
		return nil, &ConnectionError{Addr: addr, Err: ctx.Err()}
	}
	if err != nil {
		nc.Close()
		return nil, &ConnectionError{Addr: addr, Err: err}
	}
	_ = nc.SetDeadline(time.Time{})

	log.WithField("addr", addr).Info("Connected.")

	return &Client{
		conn: ssh.NewClient(c, chans, reqs),
		log:  log,
	}, nil
}

// OpenFileChannel starts the SFTP subsystem on the connection.
func (c *Client) OpenFileChannel() (FileChannel, error) {
	client, err := sftp.NewClient(c.conn)
	if err != nil {
		return nil, fmt.Errorf("open sftp channel: %w", err)
	}
	return NewSFTPChannel(client), nil
}

// Execute runs command in a new session and waits for it to exit.
func (c *Client) Execute(command string, stdout, stderr io.Writer) error {
	session, err := c.conn.NewSession()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr

	err = session.Run(command)

	var exitErr *ssh.ExitError
	var missingErr *ssh.ExitMissingError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &exitErr):
		return &ExitError{Status: exitErr.ExitStatus()}
	case errors.As(err, &missingErr):
		return &ExitError{Status: -1}
	default:
		return fmt.Errorf("run command: %w", err)
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}
