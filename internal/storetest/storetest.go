// Package storetest runs an in-memory stand-in for the external record
// store, good enough for the query shapes this service actually issues:
// paginated lists with equality filters, relation expansion, single-record
// get, create, patch and delete.
package storetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Record is a loosely-typed store record.
type Record = map[string]any

// Server is the fake store. Seed collections, point a recordstore.Client
// at URL(), and inspect Requests afterwards.
type Server struct {
	mu          sync.Mutex
	collections map[string][]Record
	failures    map[string]int
	requests    []string
	nextID      int
	srv         *httptest.Server
}

func New() *Server {
	s := &Server{
		collections: make(map[string][]Record),
		failures:    make(map[string]int),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *Server) URL() string { return s.srv.URL }
func (s *Server) Close()      { s.srv.Close() }

func (s *Server) Seed(collection string, records ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], records...)
}

// FailWith makes every matching call answer with the given status until
// ClearFail. key is "METHOD collection" or "METHOD collection id".
func (s *Server) FailWith(key string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key] = status
}

func (s *Server) ClearFail(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, key)
}

// Requests returns the request log as "METHOD /path?query" lines.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// CountRequests counts logged requests whose line contains substr.
func (s *Server) CountRequests(substr string) int {
	n := 0
	for _, r := range s.Requests() {
		if strings.Contains(r, substr) {
			n++
		}
	}
	return n
}

// Get returns a copy of a stored record, or nil.
func (s *Server) Get(collection, id string) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.collections[collection] {
		if r["id"] == id {
			return copyRecord(r)
		}
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 3 || parts[0] != "collections" || parts[2] != "records" {
		http.NotFound(w, r)
		return
	}
	collection := parts[1]
	id := ""
	if len(parts) == 4 {
		id = parts[3]
	}

	s.mu.Lock()
	line := r.Method + " " + r.URL.Path
	if r.URL.RawQuery != "" {
		line += "?" + r.URL.RawQuery
	}
	s.requests = append(s.requests, line)
	status, failed := s.failures[r.Method+" "+collection+" "+id]
	if !failed {
		status, failed = s.failures[r.Method+" "+collection]
	}
	s.mu.Unlock()
	if failed {
		http.Error(w, "injected failure", status)
		return
	}

	switch {
	case r.Method == http.MethodGet && id == "":
		s.list(w, r, collection)
	case r.Method == http.MethodGet:
		s.getOne(w, r, collection, id)
	case r.Method == http.MethodPost:
		s.create(w, r, collection)
	case r.Method == http.MethodPatch:
		s.patch(w, r, collection, id)
	case r.Method == http.MethodDelete:
		s.remove(w, collection, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, collection string) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("perPage"))
	if perPage < 1 {
		perPage = 30
	}

	s.mu.Lock()
	records := make([]Record, 0, len(s.collections[collection]))
	for _, rec := range s.collections[collection] {
		if matchFilter(rec, q.Get("filter")) {
			records = append(records, copyRecord(rec))
		}
	}
	s.mu.Unlock()

	applySort(records, q.Get("sort"))
	for i := range records {
		records[i] = s.expandRecord(records[i], q.Get("expand"))
	}

	total := len(records)
	totalPages := (total + perPage - 1) / perPage
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	writeJSON(w, map[string]any{
		"page":       page,
		"perPage":    perPage,
		"totalPages": totalPages,
		"totalItems": total,
		"items":      records[start:end],
	})
}

func (s *Server) getOne(w http.ResponseWriter, r *http.Request, collection, id string) {
	rec := s.Get(collection, id)
	if rec == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, s.expandRecord(rec, r.URL.Query().Get("expand")))
}

func (s *Server) create(w http.ResponseWriter, r *http.Request, collection string) {
	var body Record
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	if _, ok := body["id"]; !ok {
		s.nextID++
		body["id"] = fmt.Sprintf("rec%d", s.nextID)
	}
	s.collections[collection] = append(s.collections[collection], body)
	out := copyRecord(body)
	s.mu.Unlock()
	writeJSON(w, out)
}

func (s *Server) patch(w http.ResponseWriter, r *http.Request, collection, id string) {
	var body Record
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.collections[collection] {
		if rec["id"] == id {
			for k, v := range body {
				rec[k] = v
			}
			writeJSON(w, copyRecord(rec))
			return
		}
	}
	http.Error(w, "not found", http.StatusNotFound)
}

func (s *Server) remove(w http.ResponseWriter, collection, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.collections[collection]
	for i, rec := range recs {
		if rec["id"] == id {
			s.collections[collection] = append(recs[:i:i], recs[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.Error(w, "not found", http.StatusNotFound)
}

// relations the dashboard actually expands
var expandTargets = map[string]string{
	"user_id":   "customer",
	"driver_id": "driver",
	"driverid":  "driver",
	"type_id":   "vehicle_types",
}

func (s *Server) expandRecord(rec Record, expand string) Record {
	if expand == "" {
		return rec
	}
	expanded := map[string]any{}
	for _, rel := range strings.Split(expand, ",") {
		rel = strings.TrimSpace(rel)
		target, ok := expandTargets[rel]
		if !ok {
			continue
		}
		refID, _ := rec[rel].(string)
		if refID == "" {
			continue
		}
		if related := s.Get(target, refID); related != nil {
			expanded[rel] = related
		}
	}
	if len(expanded) > 0 {
		rec["expand"] = expanded
	}
	return rec
}

// matchFilter evaluates the equality expressions this service generates:
// (a="v"), (a=true), (a="v" && b="w"), (id="x" || id="y").
func matchFilter(rec Record, filter string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	filter = strings.TrimPrefix(filter, "(")
	filter = strings.TrimSuffix(filter, ")")
	if strings.Contains(filter, " && ") {
		for _, term := range strings.Split(filter, " && ") {
			if !matchTerm(rec, term) {
				return false
			}
		}
		return true
	}
	if strings.Contains(filter, " || ") {
		for _, term := range strings.Split(filter, " || ") {
			if matchTerm(rec, term) {
				return true
			}
		}
		return false
	}
	return matchTerm(rec, filter)
}

func matchTerm(rec Record, term string) bool {
	field, want, ok := strings.Cut(strings.TrimSpace(term), "=")
	if !ok {
		return false
	}
	got := rec[field]
	if strings.HasPrefix(want, `"`) {
		unquoted, err := strconv.Unquote(want)
		if err != nil {
			return false
		}
		gs, _ := got.(string)
		return gs == unquoted
	}
	switch want {
	case "true", "false":
		gb, _ := got.(bool)
		return strconv.FormatBool(gb) == want
	default:
		return fmt.Sprintf("%v", got) == want
	}
}

func applySort(records []Record, sortExpr string) {
	sortExpr = strings.TrimSpace(sortExpr)
	if sortExpr == "" {
		return
	}
	desc := strings.HasPrefix(sortExpr, "-")
	field := strings.TrimPrefix(sortExpr, "-")
	sort.SliceStable(records, func(i, j int) bool {
		a := fmt.Sprintf("%v", records[i][field])
		b := fmt.Sprintf("%v", records[j][field])
		if desc {
			return a > b
		}
		return a < b
	})
}

func copyRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
