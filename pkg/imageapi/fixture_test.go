package imageapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

const fixturePrefix = "/api/v1/external"

// fixtureAPI is an in-memory image toolkit backend.
type fixtureAPI struct {
	mu       sync.Mutex
	groups   []ImageGroup
	images   map[int64][]Image
	files    map[string][]byte
	requests []*http.Request
}

func newFixtureAPI() *fixtureAPI {
	f := &fixtureAPI{
		images: make(map[int64][]Image),
		files:  make(map[string][]byte),
	}
	for i := int64(1); i <= 5; i++ {
		f.groups = append(f.groups, ImageGroup{
			ID:            i,
			Name:          fmt.Sprintf("group-%d", i),
			Description:   "landscape set",
			SearchKeyword: "landscape",
			SourceWebsite: "example.com",
			ImageCount:    3,
			CreatedAt:     "2024-05-01T10:00:00",
			UpdatedAt:     "2024-05-02T10:00:00",
		})
		for j := int64(1); j <= 3; j++ {
			id := i*100 + j
			name := fmt.Sprintf("img-%d.jpg", id)
			f.images[i] = append(f.images[i], Image{
				ID:            id,
				Filename:      name,
				Width:         640,
				Height:        480,
				FileSize:      int64(len(name)),
				Format:        "jpeg",
				MinioURL:      "/files/" + name,
				OriginalURL:   "https://example.com/" + name,
				SourceWebsite: "example.com",
				CreatedAt:     "2024-05-01T10:00:00",
			})
			f.files[name] = []byte(name)
		}
	}
	return f
}

// serve starts the backend and returns the API base URL and the server.
// Image MinioURL values are rewritten to absolute URLs on the server.
func (f *fixtureAPI) serve(t *testing.T) (string, *httptest.Server) {
	t.Helper()

	r := mux.NewRouter()
	api := r.PathPrefix(fixturePrefix).Subrouter()
	api.HandleFunc("/stats", f.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/image-groups", f.handleGroups).Methods(http.MethodGet)
	api.HandleFunc("/image-groups/{id:[0-9]+}", f.handleGroup).Methods(http.MethodGet)
	api.HandleFunc("/image-groups/{id:[0-9]+}/images", f.handleGroupImages).Methods(http.MethodGet)
	api.HandleFunc("/images/{id:[0-9]+}", f.handleImage).Methods(http.MethodGet)
	r.HandleFunc("/files/{name}", f.handleFile).Methods(http.MethodGet)
	r.Use(f.record)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	f.mu.Lock()
	for gid, imgs := range f.images {
		for i := range imgs {
			if strings.HasPrefix(imgs[i].MinioURL, "/") {
				imgs[i].MinioURL = srv.URL + imgs[i].MinioURL
			}
		}
		f.images[gid] = imgs
	}
	f.mu.Unlock()

	return srv.URL + fixturePrefix, srv
}

func (f *fixtureAPI) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Clone(r.Context()))
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (f *fixtureAPI) lastRequest(t *testing.T) *http.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatalf("no request recorded")
	}
	return f.requests[len(f.requests)-1]
}

func (f *fixtureAPI) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fixtureAPI) handleStats(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, imgs := range f.images {
		total += len(imgs)
	}
	writeJSON(w, http.StatusOK, Stats{
		APIVersion:   "v1",
		Description:  "fixture",
		TotalGroups:  len(f.groups),
		TotalImages:  total,
		SourcesStats: []SourceStat{{Source: "example.com", Count: total}},
	})
}

func (f *fixtureAPI) handleGroups(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	search := r.URL.Query().Get("search")
	var matched []ImageGroup
	for _, g := range f.groups {
		if search == "" || strings.Contains(g.Name, search) {
			summary := g
			summary.UpdatedAt = ""
			matched = append(matched, summary)
		}
	}
	writePage(w, r, matched)
}

func (f *fixtureAPI) handleGroup(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	for _, g := range f.groups {
		if g.ID == id {
			writeJSON(w, http.StatusOK, g)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "group not found"})
}

func (f *fixtureAPI) handleGroupImages(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	imgs, ok := f.images[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "group not found"})
		return
	}
	writePage(w, r, imgs)
}

func (f *fixtureAPI) handleImage(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	for gid, imgs := range f.images {
		for _, img := range imgs {
			if img.ID != id {
				continue
			}
			detail := img
			for _, g := range f.groups {
				if g.ID == gid {
					detail.GroupInfo = &GroupInfo{ID: g.ID, Name: g.Name}
				}
			}
			writeJSON(w, http.StatusOK, detail)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "image not found"})
}

func (f *fixtureAPI) handleFile(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	data, ok := f.files[mux.Vars(r)["name"]]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(data)
}

func writePage[T any](w http.ResponseWriter, r *http.Request, items []T) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if page < 1 || size < 1 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "invalid pagination"}},
		})
		return
	}
	total := len(items)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	data := items[start:end]
	if data == nil {
		data = []T{}
	}
	writeJSON(w, http.StatusOK, Page[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		TotalPages: (total + size - 1) / size,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
