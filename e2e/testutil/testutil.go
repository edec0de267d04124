package testutil

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/sys/unix"
)

// TestRequest models an HTTP request for E2E testing.
type TestRequest struct {
	Method  string
	Path    string // may include a query string
	Headers http.Header
}

// HeaderMatcher maps a header name to its expected exact value.
type HeaderMatcher map[string]string

// BodyMatcher defines a way to match the response body.
type BodyMatcher interface {
	Match(body []byte) (bool, string) // match status and a description of the mismatch
}

// ExactBodyMatcher matches the body exactly.
type ExactBodyMatcher struct {
	ExpectedBody []byte
}

// Match implements BodyMatcher for ExactBodyMatcher.
func (m *ExactBodyMatcher) Match(body []byte) (bool, string) {
	if bytes.Equal(m.ExpectedBody, body) {
		return true, ""
	}
	return false, fmt.Sprintf("bodies do not match exactly. Expected: %q, Got: %q", string(m.ExpectedBody), string(body))
}

// StringContainsBodyMatcher checks if the body contains a specific substring.
type StringContainsBodyMatcher struct {
	Substring string
}

// Match implements BodyMatcher for StringContainsBodyMatcher.
func (m *StringContainsBodyMatcher) Match(body []byte) (bool, string) {
	if bytes.Contains(body, []byte(m.Substring)) {
		return true, ""
	}
	return false, fmt.Sprintf("body does not contain substring: %q. Body: %q", m.Substring, string(body))
}

// CountBodyMatcher checks that a substring occurs exactly Count times.
type CountBodyMatcher struct {
	Substring string
	Count     int
}

// Match implements BodyMatcher for CountBodyMatcher.
func (m *CountBodyMatcher) Match(body []byte) (bool, string) {
	if n := bytes.Count(body, []byte(m.Substring)); n != m.Count {
		return false, fmt.Sprintf("expected %d occurrences of %q, got %d", m.Count, m.Substring, n)
	}
	return true, ""
}

// ExpectedResponse models the expected outcome of an HTTP request.
type ExpectedResponse struct {
	StatusCode  int
	Headers     HeaderMatcher
	BodyMatcher BodyMatcher
}

// ActualResponse stores the actual outcome of an HTTP request from a client.
type ActualResponse struct {
	StatusCode int
	Proto      string
	Headers    http.Header
	Body       []byte
}

// E2ETestCase is a single request and its expected response.
type E2ETestCase struct {
	Name     string
	Request  TestRequest
	Expected ExpectedResponse
}

// ServerInstance encapsulates a running server process.
type ServerInstance struct {
	Cmd       *exec.Cmd
	Address   string // host:port the server listens on
	LogBuffer *syncBuffer

	mu        sync.Mutex
	cancelCtx context.CancelFunc
	waitDone  chan error
}

// syncBuffer is a bytes.Buffer safe for the concurrent writes of a child
// process's stdout and stderr.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// GetFreePort asks the kernel for a free open port that is ready to use.
func GetFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// StartTestServer runs the server binary with positional arguments
// (port, root, and "true" when spa is set) and waits until it accepts
// connections.
func StartTestServer(serverBinaryPath string, root string, spa bool) (*ServerInstance, error) {
	if serverBinaryPath == "" {
		return nil, fmt.Errorf("serverBinaryPath cannot be empty")
	}
	fi, err := os.Stat(serverBinaryPath)
	if err != nil {
		return nil, fmt.Errorf("server binary path '%s' error: %w", serverBinaryPath, err)
	}
	if fi.IsDir() || (fi.Mode()&0111 == 0) {
		return nil, fmt.Errorf("server binary path '%s' is a directory or not executable", serverBinaryPath)
	}

	port, err := GetFreePort()
	if err != nil {
		return nil, fmt.Errorf("failed to get free port: %w", err)
	}

	args := []string{strconv.Itoa(port), root}
	if spa {
		args = append(args, "true")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, serverBinaryPath, args...)
	cmd.Env = append(os.Environ(), "DEVSERVE_LOG_LEVEL=DEBUG")

	logs := &syncBuffer{}
	cmd.Stdout = logs
	cmd.Stderr = logs

	instance := &ServerInstance{
		Cmd:       cmd,
		Address:   net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		LogBuffer: logs,
		cancelCtx: cancel,
		waitDone:  make(chan error, 1),
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start server process '%s': %w", serverBinaryPath, err)
	}
	go func() {
		instance.waitDone <- cmd.Wait()
	}()

	readyTimeout := 10 * time.Second
	pollInterval := 100 * time.Millisecond
	startTime := time.Now()

	var lastDialErr error
	for {
		if time.Since(startTime) > readyTimeout {
			instance.Stop()
			return nil, fmt.Errorf("server not ready at %s after %v. Last dial error: %v. Logs captured:\n%s",
				instance.Address, readyTimeout, lastDialErr, logs.String())
		}
		conn, dialErr := net.DialTimeout("tcp", instance.Address, pollInterval)
		lastDialErr = dialErr
		if dialErr == nil {
			conn.Close()
			return instance, nil
		}
		time.Sleep(pollInterval)
	}
}

// Stop sends SIGINT and waits for a graceful exit, escalating to SIGTERM and
// finally SIGKILL. It is safe to call more than once.
func (s *ServerInstance) Stop() error {
	s.mu.Lock()
	cmd := s.Cmd
	s.Cmd = nil
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	defer s.cancelCtx()

	for _, sig := range []os.Signal{unix.SIGINT, unix.SIGTERM} {
		if err := cmd.Process.Signal(sig); err != nil {
			break
		}
		select {
		case err := <-s.waitDone:
			return exitError(err)
		case <-time.After(3 * time.Second):
		}
	}

	select {
	case err := <-s.waitDone:
		return exitError(err)
	default:
	}

	cmd.Process.Kill()
	<-s.waitDone
	return fmt.Errorf("server did not exit after SIGINT/SIGTERM and was killed")
}

// exitError treats a clean exit as success.
func exitError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("server exited with error: %w", err)
}

// HTTPClientType names the client a test case ran through.
type HTTPClientType string

const (
	GoHTTPClient HTTPClientType = "go_http_client"
	CurlClient   HTTPClientType = "curl_client"
)

// HTTPTestClient executes a TestRequest against a server address.
type HTTPTestClient interface {
	Do(serverAddr string, request TestRequest) (ActualResponse, error)
	Type() HTTPClientType
}

// H2CClient speaks HTTP/2 with prior knowledge over plain TCP. Redirects
// are not followed.
type H2CClient struct {
	client *http.Client
}

// NewH2CClient creates an HTTP/2 cleartext client.
func NewH2CClient() *H2CClient {
	transport := &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
	return &H2CClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   10 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Type returns the client type.
func (c *H2CClient) Type() HTTPClientType {
	return GoHTTPClient
}

// Do executes the request.
func (c *H2CClient) Do(serverAddr string, request TestRequest) (ActualResponse, error) {
	method := request.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequest(method, "http://"+serverAddr+request.Path, nil)
	if err != nil {
		return ActualResponse{}, fmt.Errorf("failed to build request: %w", err)
	}
	for name, values := range request.Headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return ActualResponse{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ActualResponse{}, fmt.Errorf("failed to read body: %w", err)
	}
	return ActualResponse{
		StatusCode: resp.StatusCode,
		Proto:      resp.Proto,
		Headers:    resp.Header,
		Body:       body,
	}, nil
}

// CurlHTTPClient implements HTTPTestClient using the curl command-line tool.
type CurlHTTPClient struct {
	CurlPath string
}

// NewCurlHTTPClient creates a new CurlHTTPClient.
func NewCurlHTTPClient(curlPath string) *CurlHTTPClient {
	if curlPath == "" {
		curlPath = "curl"
	}
	return &CurlHTTPClient{CurlPath: curlPath}
}

// Type returns the client type.
func (c *CurlHTTPClient) Type() HTTPClientType {
	return CurlClient
}

// Do executes an HTTP request using curl with HTTP/2 prior knowledge.
func (c *CurlHTTPClient) Do(serverAddr string, request TestRequest) (ActualResponse, error) {
	method := request.Method
	if method == "" {
		method = http.MethodGet
	}

	args := []string{"--http2-prior-knowledge", "--silent", "--show-error", "--include", "-X", method}
	if method == http.MethodHead {
		args = []string{"--http2-prior-knowledge", "--silent", "--show-error", "--include", "--head"}
	}
	for name, values := range request.Headers {
		for _, value := range values {
			args = append(args, "-H", fmt.Sprintf("%s: %s", name, value))
		}
	}
	args = append(args, "http://"+serverAddr+request.Path)

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(c.CurlPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return ActualResponse{}, fmt.Errorf("curl command execution failed: %w. Stderr: '%s'", err, strings.TrimSpace(stderr.String()))
	}
	return parseCurlOutput(stdout.Bytes())
}

// parseCurlOutput splits `curl --include` output into status, headers and body.
func parseCurlOutput(raw []byte) (ActualResponse, error) {
	reader := bufio.NewReader(bytes.NewReader(raw))
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		return ActualResponse{}, fmt.Errorf("failed to read status line: %w", err)
	}

	parts := strings.Fields(statusLine) // e.g. ["HTTP/2", "200"]
	if len(parts) < 2 {
		return ActualResponse{}, fmt.Errorf("malformed status line %q", statusLine)
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return ActualResponse{}, fmt.Errorf("failed to parse status code from %q: %w", statusLine, err)
	}

	tp := textproto.NewReader(reader)
	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return ActualResponse{}, fmt.Errorf("failed to parse MIME headers: %w", err)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return ActualResponse{}, fmt.Errorf("failed to read body: %w", err)
	}
	return ActualResponse{
		StatusCode: status,
		Proto:      parts[0],
		Headers:    http.Header(mimeHeader),
		Body:       body,
	}, nil
}

// RunTestCases sends every case through client and checks the results.
func RunTestCases(t *testing.T, instance *ServerInstance, client HTTPTestClient, cases []E2ETestCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s/%s", client.Type(), tc.Name), func(t *testing.T) {
			actual, err := client.Do(instance.Address, tc.Request)
			if err != nil {
				t.Fatalf("request %s %s failed: %v\nServer logs:\n%s", tc.Request.Method, tc.Request.Path, err, instance.LogBuffer.String())
			}
			AssertResponse(t, tc.Expected, actual)
		})
	}
}

// AssertResponse reports every mismatch between expected and actual.
func AssertResponse(t *testing.T, expected ExpectedResponse, actual ActualResponse) {
	t.Helper()
	if expected.StatusCode != 0 && actual.StatusCode != expected.StatusCode {
		t.Errorf("status code: expected %d, got %d", expected.StatusCode, actual.StatusCode)
	}
	for name, want := range expected.Headers {
		if got := actual.Headers.Get(name); got != want {
			t.Errorf("header %q: expected %q, got %q", name, want, got)
		}
	}
	if expected.BodyMatcher != nil {
		if ok, msg := expected.BodyMatcher.Match(actual.Body); !ok {
			t.Errorf("body mismatch: %s", msg)
		}
	}
}
