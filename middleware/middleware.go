package middleware

import (
	"crypto/subtle"
	"net/http"
	"os"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/buidlcat/friendrekt/utils"
)

var (
	// Ethereum address regex: 0x followed by 40 hex characters
	ethAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
)

// MaxListLimit bounds the limit query parameter.
const MaxListLimit = 1000

// MaxCurveSupply bounds supply and amount on price queries.
const MaxCurveSupply = 1_000_000

// BasicAuth returns a middleware that implements HTTP Basic Authentication
// using AUTH_USERNAME and AUTH_PASSWORD. Auth is skipped when either is unset.
func BasicAuth() gin.HandlerFunc {
	return BasicAuthWith(os.Getenv("AUTH_USERNAME"), os.Getenv("AUTH_PASSWORD"))
}

// BasicAuthWith is BasicAuth with explicit credentials.
func BasicAuthWith(username, password string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if username == "" || password == "" {
			c.Next()
			return
		}

		user, pass, hasAuth := c.Request.BasicAuth()
		if !hasAuth {
			c.Header("WWW-Authenticate", `Basic realm="friendrekt"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		// Use constant-time comparison to prevent timing attacks
		usernameMatch := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
		passwordMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1

		if !usernameMatch || !passwordMatch {
			c.Header("WWW-Authenticate", `Basic realm="friendrekt"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		c.Next()
	}
}

// ValidateAddress validates that the :address parameter is an Ethereum address and
// stores its lowercase form under "validatedAddress".
func ValidateAddress() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := c.Param("address")
		if addr == "" {
			c.Next()
			return
		}

		addr = utils.NormalizeAddress(addr)
		if !ethAddressRegex.MatchString(addr) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "Invalid address format. Must be 0x + 40 hex characters",
			})
			return
		}

		c.Set("validatedAddress", addr)
		c.Next()
	}
}

// ValidateQueryParams validates common query parameters
func ValidateQueryParams() gin.HandlerFunc {
	return func(c *gin.Context) {
		if limitStr := c.Query("limit"); limitStr != "" {
			limit, err := strconv.Atoi(limitStr)
			if err != nil || limit < 1 || limit > MaxListLimit {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error": "Invalid limit parameter. Must be a positive integer between 1 and " + strconv.Itoa(MaxListLimit),
				})
				return
			}
		}

		for _, param := range []string{"supply", "amount"} {
			if val := c.Query(param); val != "" {
				n, err := strconv.ParseUint(val, 10, 64)
				if err != nil || n > MaxCurveSupply {
					c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
						"error": "Invalid " + param + " parameter. Must be a non-negative integer up to " + strconv.Itoa(MaxCurveSupply),
					})
					return
				}
			}
		}

		c.Next()
	}
}
