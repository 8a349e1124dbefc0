package admin

import (
	"time"

	"keyword_responder/internal/filecache"
)

type LoginRequest struct {
	Password string `json:"password" form:"password"`
}

// WordRequest adds or deletes one key. Layer defaults to exact on add and to
// every layer on delete.
type WordRequest struct {
	Layer string `json:"layer" form:"layer" query:"layer"`
	Key   string `json:"key" form:"key" query:"key"`
	Reply string `json:"reply" form:"reply"`
}

type FallbackRequest struct {
	Reply string `json:"reply" form:"reply"`
}

type ResolveRequest struct {
	Text    string `json:"text" form:"text" query:"text"`
	IsGroup bool   `json:"is_group" form:"is_group" query:"is_group"`
}

type ResolveResponse struct {
	Reply   string `json:"reply"`
	Matched bool   `json:"matched"`
}

type ChangeResponse struct {
	Message string `json:"message"`
	Entries int    `json:"entries"`
}

type ReloadResponse struct {
	Message    string    `json:"message"`
	Files      []string  `json:"files"`
	ReloadedAt time.Time `json:"reloaded_at"`
}

type CacheInfoResponse struct {
	Files     []filecache.Stats `json:"files"`
	Timestamp time.Time         `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}
