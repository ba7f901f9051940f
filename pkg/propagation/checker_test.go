package propagation

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"

	"gitlab.bluewillows.net/root/mchostdns/pkg/provider"
)

// fakeNameserver is an in-process authoritative server for TXT records.
type fakeNameserver struct {
	addr string

	mu      sync.Mutex
	txt     map[string][]string
	queries int
}

func newFakeNameserver(t *testing.T) *fakeNameserver {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ns := &fakeNameserver{
		addr: pc.LocalAddr().String(),
		txt:  make(map[string][]string),
	}

	started := make(chan struct{})
	server := &dns.Server{
		PacketConn:        pc,
		Handler:           dns.HandlerFunc(ns.serveDNS),
		NotifyStartedFunc: func() { close(started) },
	}
	go func() { _ = server.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = server.Shutdown() })

	return ns
}

func (n *fakeNameserver) set(name string, values ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.txt[dns.Fqdn(name)] = values
}

func (n *fakeNameserver) queryCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.queries
}

func (n *fakeNameserver) serveDNS(w dns.ResponseWriter, r *dns.Msg) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queries++

	m := new(dns.Msg)
	m.SetReply(r)
	q := r.Question[0]
	values, ok := n.txt[q.Name]
	if !ok {
		m.Rcode = dns.RcodeNameError
	}
	for _, v := range values {
		m.Answer = append(m.Answer, &dns.TXT{
			Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: 60},
			Txt: []string{v},
		})
	}
	_ = w.WriteMsg(m)
}

func TestWait_AlreadyVisible(t *testing.T) {
	ns1 := newFakeNameserver(t)
	ns2 := newFakeNameserver(t)
	ns1.set("_acme-challenge.example.com", "other", "tok123")
	ns2.set("_acme-challenge.example.com", "tok123")

	c, err := NewChecker(WithNameservers(ns1.addr, ns2.addr), WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}

	if err := c.Wait(context.Background(), "_acme-challenge.example.com", "tok123"); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if ns1.queryCount() != 1 || ns2.queryCount() != 1 {
		t.Errorf("queries = %d/%d, want 1/1", ns1.queryCount(), ns2.queryCount())
	}
}

func TestWait_BecomesVisible(t *testing.T) {
	ns := newFakeNameserver(t)

	c, err := NewChecker(
		WithNameservers(ns.addr),
		WithInterval(10*time.Millisecond),
		WithTimeout(5*time.Second),
	)
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		ns.set("_acme-challenge.example.com", "tok123")
	}()

	if err := c.Wait(context.Background(), "_acme-challenge.example.com", "tok123"); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if ns.queryCount() < 2 {
		t.Errorf("queries = %d, want polling", ns.queryCount())
	}
}

func TestWait_Timeout(t *testing.T) {
	ns := newFakeNameserver(t)
	ns.set("_acme-challenge.example.com", "stale")

	c, err := NewChecker(
		WithNameservers(ns.addr),
		WithInterval(10*time.Millisecond),
		WithTimeout(100*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}

	err = c.Wait(context.Background(), "_acme-challenge.example.com", "tok123")
	if !provider.IsRetriable(err) {
		t.Fatalf("Wait() error = %v, want retriable", err)
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	ns := newFakeNameserver(t)

	c, err := NewChecker(WithNameservers(ns.addr), WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	err = c.Wait(ctx, "_acme-challenge.example.com", "tok123")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestSystemNameservers(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "resolv.conf")
	content := "search example.com\nnameserver 192.0.2.1\nnameserver 2001:db8::1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := SystemNameservers(path)
	if err != nil {
		t.Fatalf("SystemNameservers() error = %v", err)
	}
	want := []string{"192.0.2.1:53", "[2001:db8::1]:53"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("SystemNameservers() = %v, want %v", got, want)
	}

	if _, err := SystemNameservers(filepath.Join(dir, "missing")); !provider.IsConfig(err) {
		t.Errorf("missing file error = %v, want config error", err)
	}

	empty := filepath.Join(dir, "empty.conf")
	if err := os.WriteFile(empty, []byte("search example.com\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := SystemNameservers(empty); !provider.IsConfig(err) {
		t.Errorf("empty file error = %v, want config error", err)
	}
}

func TestWithNameservers_AddsPort(t *testing.T) {
	c, err := NewChecker(WithNameservers("1.1.1.1", " 8.8.8.8:5353 ", "", "2606:4700::1111"))
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}

	want := []string{"1.1.1.1:53", "8.8.8.8:5353", "[2606:4700::1111]:53"}
	got := c.Nameservers()
	if len(got) != len(want) {
		t.Fatalf("Nameservers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Nameservers()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
