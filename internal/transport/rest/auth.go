package rest

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const ContextParticipantID = "participantID"

// Auth reads an HS256 bearer token and stores its subject, the acting
// participant id, on the context.
func Auth(secret []byte) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			unauthenticated(c, "missing_authorization_header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthenticated(c, "invalid_authorization_header")
			return
		}

		token, err := parser.Parse(strings.TrimSpace(parts[1]), func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenMalformed
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			unauthenticated(c, "invalid_token")
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil {
			unauthenticated(c, "invalid_token_claims")
			return
		}
		id, err := uuid.Parse(sub)
		if err != nil {
			unauthenticated(c, "invalid_token_payload")
			return
		}

		c.Set(ContextParticipantID, id)
		c.Next()
	}
}

func participantID(c *gin.Context) uuid.UUID {
	return c.MustGet(ContextParticipantID).(uuid.UUID)
}
