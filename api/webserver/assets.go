package webserver

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/OneOfOne/xxhash"
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/microfounder-os/agent/agents/persona"
	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
)

var servedBuckets = map[string]bool{
	persona.MarketingBucket: true,
	persona.ProductBucket:   true,
}

var contentTypes = map[string]string{
	".json": "application/json; charset=utf-8",
	".html": "text/html; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
}

// Assets serves generated documents. Model-written HTML is sanitized
// before it reaches a browser.
type Assets struct {
	buckets contractx.Buckets
	policy  *bluemonday.Policy
}

func NewAssets(buckets contractx.Buckets) Assets {
	return Assets{buckets: buckets, policy: bluemonday.UGCPolicy()}
}

func (a Assets) Get(c *gin.Context) {
	bucket := c.Param("bucket")
	key := strings.TrimPrefix(c.Param("key"), "/")
	if !servedBuckets[bucket] {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown bucket " + bucket})
		return
	}
	if key == "" {
		badRequest(c, "object key is required")
		return
	}
	ctx := c.Request.Context()

	meta, err := a.buckets.GetMetadata(ctx, bucket, key)
	if contractx.Failed(err) {
		writeError(c, err)
		return
	}
	if meta == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}
	if owner := meta["userId"]; owner != "" && !authorize(c, owner) {
		return
	}

	data, err := a.buckets.Download(ctx, bucket, key)
	if contractx.Failed(err) {
		writeError(c, err)
		return
	}
	if data == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}
	if err != nil {
		log.Debug().Err(err).Str("bucket", bucket).Str("key", key).Msg("asset served from fallback")
	}

	ext := path.Ext(key)
	if ext == ".html" {
		data = a.policy.SanitizeBytes(data)
	}
	ctype, ok := contentTypes[ext]
	if !ok {
		ctype = "text/plain; charset=utf-8"
	}

	etag := fmt.Sprintf(`"%016x"`, xxhash.Checksum64(data))
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, ctype, data)
}
