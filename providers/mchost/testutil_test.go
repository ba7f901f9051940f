package mchost

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
)

const (
	testUser = "user@example.com"
	testPass = "s3cret"
)

// fakeRecord mirrors one entry of the panel's records listing.
type fakeRecord struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// fakePanel emulates the subset of the McHost control panel the client uses.
type fakePanel struct {
	mu sync.Mutex

	sessions map[string]bool // session id -> authenticated
	nextSID  int

	ordersHTML  string
	zoneByOrder map[string]int
	records     map[int][]fakeRecord
	nextID      int64

	bootstrapStatus int    // non-zero overrides GET /login/auth
	loginBody       string // non-empty overrides a successful login body
	createStatus    int
	deleteStatus    int
	recordsBody     string // non-empty overrides the records listing

	logins   int
	calls    map[string]int
	creates  []url.Values
	deletes  []url.Values
	referers map[string]string
}

func newFakePanel(t *testing.T) (*fakePanel, *httptest.Server) {
	t.Helper()

	p := &fakePanel{
		sessions: make(map[string]bool),
		ordersHTML: `<html><body><ul>
<li><a class="sidelink active" href="/dnsOrder/view/1001" title="example.com">example.com</a></li>
<li><a class="sidelink" href="/hostingOrder/view/2002" title="hosting.example.net">hosting</a></li>
</ul></body></html>`,
		zoneByOrder: map[string]int{"1001": 55},
		records: map[int][]fakeRecord{
			55: {
				{ID: 1, Name: "@", Content: "ns1.mchost.ru.", Type: "NS"},
				{ID: 2, Name: "www", Content: "192.0.2.10", Type: "A"},
			},
		},
		nextID:   100,
		calls:    make(map[string]int),
		referers: make(map[string]string),
	}

	server := httptest.NewServer(http.HandlerFunc(p.serveHTTP))
	t.Cleanup(server.Close)

	return p, server
}

func (p *fakePanel) config(server *httptest.Server) *Config {
	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.User = testUser
	cfg.Pass = testPass
	return cfg
}

// expireSessions drops every session, as the panel does on timeout.
func (p *fakePanel) expireSessions() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = make(map[string]bool)
}

func (p *fakePanel) callCount(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[path]
}

func (p *fakePanel) loginCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logins
}

func (p *fakePanel) createForms() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]url.Values(nil), p.creates...)
}

func (p *fakePanel) deleteQueries() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]url.Values(nil), p.deletes...)
}

func (p *fakePanel) referer(path string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.referers[path]
}

func (p *fakePanel) addRecord(zoneID int, name, content, recordType string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.records[zoneID] = append(p.records[zoneID], fakeRecord{ID: p.nextID, Name: name, Content: content, Type: recordType})
}

func (p *fakePanel) hasRecord(zoneID int, name, content string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.records[zoneID] {
		if r.Name == name && r.Content == content && r.Type == "TXT" {
			return true
		}
	}
	return false
}

func (p *fakePanel) serveHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls[r.URL.Path]++
	if r.Method == http.MethodPost {
		p.referers[r.URL.Path] = r.Header.Get("Referer")
	}

	switch r.URL.Path {
	case "/login/auth":
		p.handleSession(w)
		return
	case "/j_spring_security_check":
		p.handleLogin(w, r)
		return
	}

	cookie, err := r.Cookie("JSESSIONID")
	if err != nil || !p.sessions[cookie.Value] {
		http.Redirect(w, r, "/login/auth", http.StatusFound)
		return
	}

	switch r.URL.Path {
	case "/":
		fmt.Fprint(w, p.ordersHTML)
	case "/dnsOrder/administration":
		p.handleAdministration(w, r)
	case "/dnsZone/records":
		p.handleRecords(w, r)
	case "/dnsZone/createRecord":
		p.handleCreate(w, r)
	case "/dnsZone/deleteRecord":
		p.handleDelete(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (p *fakePanel) handleSession(w http.ResponseWriter) {
	if p.bootstrapStatus != 0 {
		w.WriteHeader(p.bootstrapStatus)
		return
	}
	p.nextSID++
	sid := "sid-" + strconv.Itoa(p.nextSID)
	p.sessions[sid] = false
	http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: sid, Path: "/"})
	fmt.Fprint(w, "<html><form action=\"/j_spring_security_check\"></form></html>")
}

func (p *fakePanel) handleLogin(w http.ResponseWriter, r *http.Request) {
	p.logins++
	if r.Method != http.MethodPost || r.URL.Query().Get("ajax") != "true" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cookie, err := r.Cookie("JSESSIONID")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("j_username") != testUser || r.PostForm.Get("j_password") != testPass {
		fmt.Fprint(w, `{"error":"Bad credentials"}`)
		return
	}
	if p.loginBody != "" {
		fmt.Fprint(w, p.loginBody)
		return
	}
	p.sessions[cookie.Value] = true
	fmt.Fprint(w, `{"success":true}`)
}

func (p *fakePanel) handleAdministration(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	zoneID, ok := p.zoneByOrder[r.PostForm.Get("id")]
	if !ok {
		fmt.Fprint(w, "<html><p>Order has no DNS zone</p></html>")
		return
	}
	fmt.Fprintf(w, `<html><a href="/dnsZone/index/%d">Manage zone</a></html>`, zoneID)
}

func (p *fakePanel) handleRecords(w http.ResponseWriter, r *http.Request) {
	if p.recordsBody != "" {
		fmt.Fprint(w, p.recordsBody)
		return
	}
	zoneID, _ := strconv.Atoi(r.URL.Query().Get("id"))
	resp := map[string]any{
		"data": map[string]any{
			"records": p.records[zoneID],
		},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (p *fakePanel) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	p.creates = append(p.creates, r.PostForm)
	if p.createStatus != 0 {
		w.WriteHeader(p.createStatus)
		return
	}
	zoneID, _ := strconv.Atoi(r.PostForm.Get("id"))
	p.nextID++
	p.records[zoneID] = append(p.records[zoneID], fakeRecord{
		ID:      p.nextID,
		Name:    r.PostForm.Get("name"),
		Content: r.PostForm.Get("content"),
		Type:    r.PostForm.Get("type"),
	})
	fmt.Fprint(w, `{"success":true}`)
}

func (p *fakePanel) handleDelete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p.deletes = append(p.deletes, q)
	if p.deleteStatus != 0 {
		w.WriteHeader(p.deleteStatus)
		return
	}
	zoneID, _ := strconv.Atoi(q.Get("id"))
	recordID, _ := strconv.ParseInt(q.Get("recordId"), 10, 64)
	kept := p.records[zoneID][:0]
	for _, rec := range p.records[zoneID] {
		if rec.ID != recordID {
			kept = append(kept, rec)
		}
	}
	p.records[zoneID] = kept
	fmt.Fprint(w, `{"success":true}`)
}
