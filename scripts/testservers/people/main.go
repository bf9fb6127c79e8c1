// Command people serves a small read-only people catalogue on
// 127.0.0.1:8790 for barrage to hammer during local runs.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

var categories = []string{"people", "planets", "films", "species", "vehicles", "starships"}

type person struct {
	Name      string `json:"name"`
	Height    string `json:"height"`
	Mass      string `json:"mass"`
	BirthYear string `json:"birth_year"`
	Gender    string `json:"gender"`
}

var people = map[int]person{
	1: {Name: "Luke Skywalker", Height: "172", Mass: "77", BirthYear: "19BBY", Gender: "male"},
	2: {Name: "C-3PO", Height: "167", Mass: "75", BirthYear: "112BBY", Gender: "n/a"},
	3: {Name: "R2-D2", Height: "96", Mass: "32", BirthYear: "33BBY", Gender: "n/a"},
	4: {Name: "Darth Vader", Height: "202", Mass: "136", BirthYear: "41.9BBY", Gender: "male"},
	5: {Name: "Leia Organa", Height: "150", Mass: "49", BirthYear: "19BBY", Gender: "female"},
}

func main() {
	addr := pflag.String("addr", "127.0.0.1:8790", "Listen address")
	pflag.Parse()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newHandler("http://" + *addr),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("people server listening on %s", *addr)
	log.Fatal(srv.ListenAndServe())
}

// newHandler builds the routes. baseURL prefixes the links in the root index.
func newHandler(baseURL string) http.Handler {
	baseURL = strings.TrimRight(baseURL, "/")
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		index := make(map[string]string, len(categories))
		for _, c := range categories {
			index[c] = baseURL + "/" + c + "/"
		}
		respondJSON(w, http.StatusOK, index)
	})
	mux.HandleFunc("/people/", handlePeople)
	for _, c := range categories[1:] {
		mux.HandleFunc("/"+c+"/", func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusOK, map[string]any{"count": 0, "results": []any{}})
		})
	}
	return mux
}

func handlePeople(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/people/"), "/")
	if rest == "" {
		respondJSON(w, http.StatusOK, map[string]any{"count": len(people)})
		return
	}
	id, err := strconv.Atoi(rest)
	if err != nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found"})
		return
	}
	p, ok := people[id]
	if !ok {
		respondJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found"})
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}
