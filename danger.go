// Dangerbox websocket transport
//
// One shared websocket endpoint serves every room: clients connect to
// /danger/ws, receive their connection id, and drive the game with tagged
// JSON actions (createRoom, joinRoom, startGame, selectDangerSquare,
// squareClicked, restartGame, checkSession, leaveSession). Room codes are
// 6-char crypto-random strings with server-side collision checks, and
// /danger/qr/:code serves a QR code for sharing a join link, backed by
// go-qrcode.

package main

import (
	_ "embed"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan any
}

func serveWS(rt *Router) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		c := &client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan any, 8),
		}

		rt.register <- c

		go c.writePump()
		c.readPump(rt)
	}
}

func (c *client) readPump(rt *Router) {
	defer func() {
		rt.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		rt.actions <- inbound{
			client: c,
			msg:    msg,
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// qrHandler generates a PNG QR code linking straight into a room.
func qrHandler(cfg *Config, path string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("code")
		if code == "" {
			http.Error(w, "missing room code", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + path + "?room=" + strings.ToUpper(code)

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

//go:embed danger/index.html
var dangerHTML []byte

func getDangerHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(dangerHTML)
	}
}

// registerDangerGame sets up routes so that:
//   - $path          → HTML client
//   - $path/ws       → shared WebSocket endpoint
//   - $path/qr/:code → PNG QR code linking into a room
func registerDangerGame(cfg *Config, path string, mux *httprouter.Router) {
	rt := newRouter(cfg)
	go rt.run()

	mux.GET(cfg.prefix+path, getDangerHandler(cfg))

	mux.GET(cfg.prefix+path+"/ws", serveWS(rt))

	mux.GET(cfg.prefix+path+"/qr/:code", qrHandler(cfg, path))
}
