package requestid

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Header is echoed back so payment and reminder calls can be correlated
// across client retries.
const Header = "X-Request-ID"

const ctxKey = "request_id"

// Middleware tags every request with an ID, honoring one supplied by the
// caller.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = newID()
		}
		c.Set(ctxKey, id)
		c.Writer.Header().Set(Header, id)
		c.Next()
	}
}

// Value reads the request ID back out of the Gin context.
func Value(c *gin.Context) string {
	id, _ := c.Value(ctxKey).(string)
	return id
}

func newID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// rand failing is effectively fatal elsewhere; a clock-based
		// ID keeps logs usable in the meantime.
		return "t-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(buf[:])
}
