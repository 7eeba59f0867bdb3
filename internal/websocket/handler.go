package websocket

import (
	"net/http"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Handler 升级为 WebSocket 连接
//
// 需挂在认证中间件之后,连接归属于已认证用户。allowedOrigins 为空或包含 "*" 时不校验 Origin。
func Handler(hub *Hub, allowedOrigins []string) gin.HandlerFunc {
	upgrader := gorillaWS.Upgrader{
		CheckOrigin: originChecker(allowedOrigins),
	}

	return func(c *gin.Context) {
		userID := auth.UserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "unauthorized"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade 已写入错误响应
			logrus.WithField("user_id", userID).WithError(err).Debug("websocket upgrade failed")
			return
		}

		client := NewClient(uuid.New().String(), userID, hub, conn)
		if !hub.Register(client) {
			conn.Close()
			return
		}

		go client.ReadPump()
		go client.WritePump()
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
