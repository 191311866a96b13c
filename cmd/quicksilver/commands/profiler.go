// cmd/quicksilver/commands/profiler.go
package commands

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quicksilver/internal/profiler"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ProfilerServeCommand starts a diagnostics server that streams a live
// profiler's CompilationSummary to any connected websocket client once a
// second, each client tagged with its own session ID.
func ProfilerServeCommand(args []string) error {
	addr := ":8089"
	for i, a := range args {
		if a == "--addr" && i+1 < len(args) {
			addr = args[i+1]
		}
	}

	p := profiler.New()

	http.HandleFunc("/summary", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("profiler serve: upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		sessionID := uuid.New().String()
		log.Printf("profiler serve: client %s connected", sessionID)

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for range ticker.C {
			summary := p.CompilationSummary()
			msg := fmt.Sprintf("[%s] %s", sessionID, summary.String())
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				log.Printf("profiler serve: client %s disconnected: %v", sessionID, err)
				return
			}
		}
	})

	fmt.Printf("profiler diagnostics server listening on %s (ws://.../summary)\n", addr)
	return http.ListenAndServe(addr, nil)
}
