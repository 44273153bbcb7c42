package httpengine

import "net/http"

// Metadata is the per-entry record the file cache and the two-tier cache
// manager persist alongside a response body. Field names follow the data
// model: everything needed to reconstruct an http.Response without the
// body, plus the four timestamps. The cache strategy's age computation
// reads them; the File Cache's eviction order does not (it follows the
// LRU list).
type Metadata struct {
	Key          string
	URL          string
	Method       string
	StatusCode   int
	ReasonPhrase string
	Header       http.Header
	BodySize     int64

	SentAtSec       int64
	ReceivedAtSec   int64
	CreatedAtSec    int64
	LastAccessedSec int64
}

// CacheEntry bundles Metadata with its body. It is the unit of transfer
// between the engine and the cache manager, and the unit of serialisation
// for tiercache backends that store opaque blobs rather than separate
// metadata/body channels.
type CacheEntry struct {
	Metadata Metadata
	Body     []byte
}

// NewMetadataFromResponse builds Metadata from a received response, the
// request that produced it and the sent/received timestamps the engine
// recorded around the network round trip.
func NewMetadataFromResponse(key string, req *http.Request, resp *http.Response, bodySize int64, sentAt, receivedAt, now int64) Metadata {
	return Metadata{
		Key:             key,
		URL:             req.URL.String(),
		Method:          req.Method,
		StatusCode:      resp.StatusCode,
		ReasonPhrase:    http.StatusText(resp.StatusCode),
		Header:          resp.Header.Clone(),
		BodySize:        bodySize,
		SentAtSec:       sentAt,
		ReceivedAtSec:   receivedAt,
		CreatedAtSec:    now,
		LastAccessedSec: now,
	}
}

// Response reconstructs an *http.Response shell (status, headers, declared
// length) from the metadata. The caller supplies the body reader.
func (m Metadata) Response(req *http.Request) *http.Response {
	return &http.Response{
		Status:        m.ReasonPhrase,
		StatusCode:    m.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        m.Header.Clone(),
		ContentLength: m.BodySize,
		Request:       req,
	}
}
