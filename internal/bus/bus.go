package bus

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const SockName = "control.sock"
const PidName = "remotescribe.pid"
const ProtoVer = "0.2"

// Single-byte commands understood by the daemon.
const (
	CmdToggle     byte = 'r'
	CmdStatus     byte = 's'
	CmdTranscript byte = 'x'
	CmdLatest     byte = 'l'
	CmdExport     byte = 'e'
	CmdPlay       byte = 'p'
	CmdVersion    byte = 'v'
	CmdQuit       byte = 'q'
)

// ErrDaemon is wrapped by errors the daemon reports with an ERR reply.
var ErrDaemon = errors.New("daemon error")

func runtimeDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "remotescribe"), nil
}

// ~/.cache/remotescribe/control.sock
func getSockPath() (string, error) {
	dir, err := runtimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SockName), nil
}

// ~/.cache/remotescribe/remotescribe.pid
func getPidPath() (string, error) {
	dir, err := runtimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, PidName), nil
}

func SockPath() (string, error) { return getSockPath() }

type socketManager struct {
	path string
}

func (s *socketManager) listen() (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, err
	}
	_ = os.Remove(s.path) // stale socket from last run
	return net.Listen("unix", s.path)
}

func (s *socketManager) dial() (net.Conn, error) {
	return net.Dial("unix", s.path)
}

type pidManager struct {
	path string
}

func (p *pidManager) create() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func (p *pidManager) remove() error {
	return os.Remove(p.path)
}

// checkExisting fails if the PID file names a live process. Stale or
// unreadable PID files are removed.
func (p *pidManager) checkExisting() error {
	pidData, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil || !p.isProcessAlive(pid) {
		_ = os.Remove(p.path)
		return nil
	}

	return fmt.Errorf("daemon already running with PID %d", pid)
}

func (p *pidManager) isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func sockets() (*socketManager, error) {
	sp, err := getSockPath()
	if err != nil {
		return nil, err
	}
	return &socketManager{path: sp}, nil
}

func pids() (*pidManager, error) {
	pp, err := getPidPath()
	if err != nil {
		return nil, err
	}
	return &pidManager{path: pp}, nil
}

func Listen() (net.Listener, error) {
	s, err := sockets()
	if err != nil {
		return nil, err
	}
	return s.listen()
}

func Dial() (net.Conn, error) {
	s, err := sockets()
	if err != nil {
		return nil, err
	}
	return s.dial()
}

// SendCommand sends cmd and returns the raw reply line.
func SendCommand(cmd byte) (string, error) {
	c, err := Dial()
	if err != nil {
		return "", err
	}
	defer c.Close()

	_, err = c.Write([]byte{cmd, '\n'})
	if err != nil {
		return "", err
	}

	resp, err := bufio.NewReader(c).ReadString('\n')
	return resp, err
}

// Request sends cmd and returns the reply body with the OK/STATUS tag
// stripped. ERR replies become errors wrapping ErrDaemon.
func Request(cmd byte) (string, error) {
	resp, err := SendCommand(cmd)
	if err != nil {
		return "", err
	}
	return ParseReply(resp)
}

func ParseReply(line string) (string, error) {
	line = strings.TrimRight(line, "\n")
	tag, body, _ := strings.Cut(line, " ")
	switch tag {
	case "OK", "STATUS":
		return body, nil
	case "ERR":
		return "", fmt.Errorf("%w: %s", ErrDaemon, body)
	default:
		return "", fmt.Errorf("malformed reply: %q", line)
	}
}

// Field returns the value of key in a "k=v k=v" reply body.
func Field(body, key string) string {
	for _, kv := range strings.Fields(body) {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v
		}
	}
	return ""
}

func CheckExistingDaemon() error {
	p, err := pids()
	if err != nil {
		return err
	}
	return p.checkExisting()
}

func CreatePidFile() error {
	p, err := pids()
	if err != nil {
		return err
	}
	return p.create()
}

func RemovePidFile() error {
	p, err := pids()
	if err != nil {
		return err
	}
	return p.remove()
}
