package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vesaa/openfleet/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

const sshDialTimeout = 15 * time.Second

// SSHCheckResult reports a credential verification attempt. Output is
// the trimmed response of a trivial command run over the session.
type SSHCheckResult struct {
	OK     bool   `json:"ok"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// sshCheck opens an SSH session using the server's stored credentials
// and runs `uptime`. It proves the credentials work; it is not a
// management channel. Key auth is tried first when both are stored.
func (s *Server) sshCheck(ctx context.Context, srv *models.Server) SSHCheckResult {
	if srv.Username == nil || *srv.Username == "" {
		return SSHCheckResult{Error: "no SSH username stored for this server"}
	}

	var auth []ssh.AuthMethod
	if srv.PrivateKey != nil && *srv.PrivateKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(*srv.PrivateKey))
		if err != nil {
			return SSHCheckResult{Error: "stored private key is not parseable"}
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if srv.Password != nil && *srv.Password != "" {
		auth = append(auth, ssh.Password(*srv.Password))
	}
	if len(auth) == 0 {
		return SSHCheckResult{Error: "no SSH password or private key stored for this server"}
	}

	cfg := &ssh.ClientConfig{
		User: *srv.Username,
		Auth: auth,
		// Fleet hosts are provisioned dynamically; host keys are not
		// pinned. The check only confirms credentials.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         sshDialTimeout,
	}

	addr := srv.IP
	if !strings.Contains(addr, ":") {
		addr += ":22"
	}

	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		s.logger.Warn("ssh check failed",
			zap.String("server_id", srv.ID),
			zap.String("addr", addr),
			zap.Error(err),
		)
		return SSHCheckResult{Error: fmt.Sprintf("dial failed: %v", err)}
	}
	defer client.Close()

	done := make(chan SSHCheckResult, 1)
	go func() {
		sess, err := client.NewSession()
		if err != nil {
			done <- SSHCheckResult{Error: fmt.Sprintf("session failed: %v", err)}
			return
		}
		defer sess.Close()

		out, err := sess.CombinedOutput("uptime")
		if err != nil {
			done <- SSHCheckResult{Error: fmt.Sprintf("command failed: %v", err), Output: strings.TrimSpace(string(out))}
			return
		}
		done <- SSHCheckResult{OK: true, Output: strings.TrimSpace(string(out))}
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return SSHCheckResult{Error: "ssh check cancelled"}
	}
}
