package internal

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

// InspectRow is one decoded store record, ready for display.
type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Detail    string
}

type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// StartDebugServer exposes a read-only HTML view over the live store at
// /inspect, with a stats panel fed by the provider. It binds to localhost
// only; this surface has no authentication.
func StartDebugServer(db *badger.DB, port int, statsProvider StatsProvider) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}

		data := PageData{
			Prefix: prefix,
			Stats:  make(map[string]any),
		}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, DescribeRecord(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("127.0.0.1:%d", port), mux)
	}()
}

// DescribeRecord decodes one record according to its key namespace.
// Unknown namespaces fall through as raw bytes.
func DescribeRecord(key string, value []byte) InspectRow {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var record struct {
			ID      uint64 `json:"id"`
			Author  string `json:"author"`
			Content string `json:"content"`
			At      int64  `json:"at"`
		}
		if err := json.Unmarshal(value, &record); err != nil {
			return InspectRow{Key: key, Type: "MESSAGE", Detail: fmt.Sprintf("unreadable: %v", err)}
		}
		return InspectRow{
			Key:       key,
			Type:      "MESSAGE",
			Timestamp: time.Unix(0, record.At).UTC().Format("15:04:05"),
			EntityID:  shortID(record.Author),
			Detail:    truncate(record.Content, 60),
		}
	case strings.HasPrefix(key, "room:"):
		var record struct {
			ID        string `json:"id"`
			Type      string `json:"type"`
			Name      string `json:"name"`
			CreatedAt int64  `json:"created_at"`
		}
		if err := json.Unmarshal(value, &record); err != nil {
			return InspectRow{Key: key, Type: "ROOM", Detail: fmt.Sprintf("unreadable: %v", err)}
		}
		return InspectRow{
			Key:       key,
			Type:      "ROOM",
			Timestamp: time.Unix(record.CreatedAt, 0).UTC().Format("15:04:05"),
			EntityID:  shortID(record.ID),
			Detail:    strings.TrimSpace(record.Type + " " + record.Name),
		}
	case strings.HasPrefix(key, "user:"):
		var record struct {
			ID          string `json:"id"`
			Email       string `json:"email"`
			DisplayName string `json:"display_name"`
			Role        string `json:"role"`
		}
		if err := json.Unmarshal(value, &record); err != nil {
			return InspectRow{Key: key, Type: "USER", Detail: fmt.Sprintf("unreadable: %v", err)}
		}
		return InspectRow{
			Key:      key,
			Type:     "USER",
			EntityID: shortID(record.ID),
			Detail:   fmt.Sprintf("%s <%s> %s", record.DisplayName, record.Email, record.Role),
		}
	case strings.HasPrefix(key, "member:"), strings.HasPrefix(key, "urooms:"),
		strings.HasPrefix(key, "private:"):
		return InspectRow{Key: key, Type: "INDEX", Detail: string(value)}
	default:
		return InspectRow{Key: key, Type: "RAW", Detail: truncate(string(value), 60)}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
