package bus

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestPidFile(t *testing.T) {
	tests := []struct {
		name     string
		contents string // empty means no file
		wantErr  bool
		wantKept bool
	}{
		{name: "no file"},
		{name: "live pid", contents: strconv.Itoa(os.Getpid()), wantErr: true, wantKept: true},
		{name: "live pid with newline", contents: strconv.Itoa(os.Getpid()) + "\n", wantErr: true, wantKept: true},
		{name: "stale pid", contents: "999999"},
		{name: "garbage", contents: "not-a-pid"},
		{name: "negative", contents: "-4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &pidManager{path: filepath.Join(t.TempDir(), PidName)}
			if tt.contents != "" {
				if err := os.WriteFile(p.path, []byte(tt.contents), 0o600); err != nil {
					t.Fatal(err)
				}
			}

			err := p.checkExisting()
			if (err != nil) != tt.wantErr {
				t.Fatalf("checkExisting() = %v, wantErr %v", err, tt.wantErr)
			}
			_, statErr := os.Stat(p.path)
			if kept := statErr == nil; kept != tt.wantKept {
				t.Errorf("pid file kept = %v, want %v", kept, tt.wantKept)
			}
		})
	}
}

func TestPidFileLifecycle(t *testing.T) {
	p := &pidManager{path: filepath.Join(t.TempDir(), "nested", PidName)}

	if err := p.create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != strconv.Itoa(os.Getpid()) {
		t.Errorf("pid file = %q", data)
	}
	if err := p.checkExisting(); err == nil {
		t.Error("own pid file should block a second daemon")
	}
	if err := p.remove(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := p.remove(); !os.IsNotExist(err) {
		t.Errorf("second remove = %v, want not-exist", err)
	}
}

func TestIsProcessAlive(t *testing.T) {
	p := &pidManager{}
	for pid, want := range map[int]bool{
		os.Getpid(): true,
		0:           false,
		-1:          false,
		999999:      false,
	} {
		if got := p.isProcessAlive(pid); got != want {
			t.Errorf("isProcessAlive(%d) = %v, want %v", pid, got, want)
		}
	}
}

// serveReplies answers each connection with reply(cmd).
func serveReplies(t *testing.T, ln net.Listener, reply func(cmd byte) string) {
	t.Helper()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				line, err := bufio.NewReader(c).ReadString('\n')
				if err != nil || len(line) != 2 {
					return
				}
				fmt.Fprint(c, reply(line[0]))
			}(c)
		}
	}()
}

func TestSocketRoundTrip(t *testing.T) {
	s := &socketManager{path: filepath.Join(t.TempDir(), SockName)}
	// a leftover socket file must not block listen
	if err := os.WriteFile(s.path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	ln, err := s.listen()
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	serveReplies(t, ln, func(cmd byte) string {
		switch cmd {
		case CmdToggle:
			return "OK recording=true\n"
		case CmdStatus:
			return "STATUS status=listening recording=false\n"
		case CmdLatest:
			return "ERR no_recording\n"
		default:
			return fmt.Sprintf("ERR unknown=%q\n", cmd)
		}
	})

	tests := []struct {
		cmd  byte
		want string
	}{
		{CmdToggle, "OK recording=true\n"},
		{CmdStatus, "STATUS status=listening recording=false\n"},
		{CmdLatest, "ERR no_recording\n"},
		{'z', "ERR unknown='z'\n"},
	}
	for _, tt := range tests {
		c, err := s.dial()
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		if _, err := c.Write([]byte{tt.cmd, '\n'}); err != nil {
			t.Fatal(err)
		}
		got, err := bufio.NewReader(c).ReadString('\n')
		c.Close()
		if err != nil {
			t.Fatalf("%c: read: %v", tt.cmd, err)
		}
		if got != tt.want {
			t.Errorf("%c: got %q, want %q", tt.cmd, got, tt.want)
		}
	}
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		line      string
		want      string
		wantErr   bool
		daemonErr bool
	}{
		{line: "OK recording=true\n", want: "recording=true"},
		{line: "STATUS status=idle recording=false\n", want: "status=idle recording=false"},
		{line: "OK\n"},
		{line: "OK /tmp/a b.wav", want: "/tmp/a b.wav"},
		{line: "ERR no_recording\n", wantErr: true, daemonErr: true},
		{line: "garbage\n", wantErr: true},
		{line: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseReply(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseReply(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if errors.Is(err, ErrDaemon) != tt.daemonErr {
				t.Errorf("ParseReply(%q) = %v, ErrDaemon expected %v", tt.line, err, tt.daemonErr)
			}
			if got != tt.want {
				t.Errorf("ParseReply(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestField(t *testing.T) {
	body := "status=recording recording=true session=writing(active) transcription=unavailable"
	for key, want := range map[string]string{
		"status":        "recording",
		"recording":     "true",
		"session":       "writing(active)",
		"transcription": "unavailable",
		"written":       "",
		"":              "",
	} {
		if got := Field(body, key); got != want {
			t.Errorf("Field(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestPublicAPI(t *testing.T) {
	cache := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cache)

	sock, err := SockPath()
	if err != nil {
		t.Fatal(err)
	}
	if sock != filepath.Join(cache, "remotescribe", SockName) {
		t.Errorf("SockPath() = %s", sock)
	}
	pidPath, err := getPidPath()
	if err != nil {
		t.Fatal(err)
	}
	if pidPath != filepath.Join(cache, "remotescribe", PidName) {
		t.Errorf("pid path = %s", pidPath)
	}

	if err := CheckExistingDaemon(); err != nil {
		t.Fatalf("no daemon yet: %v", err)
	}
	if err := CreatePidFile(); err != nil {
		t.Fatal(err)
	}
	if err := CheckExistingDaemon(); err == nil {
		t.Error("CheckExistingDaemon should fail while our pid file exists")
	}
	if err := RemovePidFile(); err != nil {
		t.Fatal(err)
	}

	if _, err := Request(CmdStatus); err == nil {
		t.Error("Request with no listener should fail")
	}

	ln, err := Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	serveReplies(t, ln, func(cmd byte) string {
		if cmd == CmdExport {
			return "ERR no_recording\n"
		}
		return fmt.Sprintf("STATUS got=%c\n", cmd)
	})

	body, err := Request(CmdLatest)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if Field(body, "got") != "l" {
		t.Errorf("Request body = %q", body)
	}
	if _, err := Request(CmdExport); !errors.Is(err, ErrDaemon) {
		t.Errorf("ERR reply = %v, want ErrDaemon", err)
	}
}
