// dispatch-receiver is a standalone test double for the core's internal
// dispatch endpoint. Point a worker's API_BASE_URL at it to inspect what
// the worker sends without running the full core service.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

type received struct {
	Timestamp     string `json:"timestamp"`
	Source        string `json:"source"`
	Type          string `json:"type"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Body          string `json:"body"`
	Secret        string `json:"secret_header"`
}

type stats struct {
	Count        int64      `json:"count"`
	LastReceived []received `json:"last_received"`
	Since        string     `json:"since"`
}

var (
	mu           sync.Mutex
	count        int64
	lastReceived []received
	since        time.Time
	maxStored    = 50
)

func main() {
	since = time.Now().UTC()

	addr := ":8080"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	http.HandleFunc("/internal/dispatch", dispatchHandler)
	http.HandleFunc("/stats", statsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	http.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		count = 0
		lastReceived = nil
		since = time.Now().UTC()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})

	log.Printf("dispatch-receiver listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func dispatchHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	var req struct {
		Source        string `json:"source"`
		Type          string `json:"type"`
		CorrelationID string `json:"correlation_id"`
	}
	_ = json.Unmarshal(body, &req)

	rec := received{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Source:        req.Source,
		Type:          req.Type,
		CorrelationID: req.CorrelationID,
		Body:          string(body),
		Secret:        r.Header.Get("X-Internal-Secret"),
	}

	mu.Lock()
	count++
	lastReceived = append(lastReceived, rec)
	if len(lastReceived) > maxStored {
		lastReceived = lastReceived[len(lastReceived)-maxStored:]
	}
	current := count
	mu.Unlock()

	log.Printf("dispatch received #%d: %s/%s %s", current, req.Source, req.Type, string(body))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, `{"id":%q}`, newID())
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	s := stats{
		Count:        count,
		LastReceived: lastReceived,
		Since:        since.Format(time.RFC3339),
	}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
