// HTTP surface for the room engine.
//
// Each game variant is mounted at its own path with the same route shape:
//   - POST $path/rooms                    → create a room
//   - GET  $path/rooms/:roomid            → snapshot, or 304 via ?since=<watermark>
//   - POST $path/rooms/:roomid/<verb>     → join/leave/ready/team/settings/start/reset/action
//   - GET  $path/rooms/:roomid/watch      → websocket watermark push
//   - GET  $path/rooms/:roomid/qr         → PNG QR code for the room URL
//
// Players are identified by cookie (playerID), set on first contact.

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const playerCookieName = "partyroom_id"

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRejection maps engine errors onto status codes: unknown ids are 404,
// domain rejections are 409, malformed actions are 400.
func writeRejection(cfg *Config, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, errRoomNotFound),
		errors.Is(err, errPlayerNotFound),
		errors.Is(err, errTeamNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errBadAction):
		status = http.StatusBadRequest
	case errors.Is(err, errNotHost),
		errors.Is(err, errNotCaptain),
		errors.Is(err, errNotYourTurn),
		errors.Is(err, errWrongPhase),
		errors.Is(err, errAlreadyDone),
		errors.Is(err, errNotReady),
		errors.Is(err, errGameOver):
		status = http.StatusConflict
	}

	writeJSON(cfg, w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadAction
	}
	return nil
}

func serveCreateRoom(cfg *Config, svc *RoomService) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		playerID := getOrSetPlayerID(w, r)

		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil || body.Name == "" {
			writeRejection(cfg, w, errBadAction)
			return
		}

		roomID, err := svc.Create(playerID, body.Name)
		if err != nil {
			writeRejection(cfg, w, err)
			return
		}

		room, err := svc.Room(roomID, playerID)
		if err != nil {
			writeRejection(cfg, w, err)
			return
		}

		writeJSON(cfg, w, http.StatusCreated, map[string]any{
			"room_id":   roomID,
			"player_id": playerID,
			"room":      room,
		})
	}
}

// serveRoom returns the viewer's snapshot of a room. With ?since=<watermark>
// it is the poll endpoint: 304 when nothing happened since the caller's
// last-seen watermark.
func serveRoom(cfg *Config, svc *RoomService) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("roomid")
		playerID := getOrSetPlayerID(w, r)

		if raw := r.URL.Query().Get("since"); raw != "" {
			since, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeRejection(cfg, w, errBadAction)
				return
			}

			mark, changed, err := svc.ChangedSince(roomID, since)
			if err != nil {
				writeRejection(cfg, w, err)
				return
			}
			if !changed {
				w.Header().Set("X-Watermark", strconv.FormatInt(mark, 10))
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}

		room, err := svc.Room(roomID, playerID)
		if err != nil {
			writeRejection(cfg, w, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, room)
	}
}

// roomVerb wraps the mutating endpoints: run the mutation, then answer with
// the caller's fresh snapshot.
func roomVerb(cfg *Config, svc *RoomService, fn func(roomID, playerID string, r *http.Request) error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("roomid")
		playerID := getOrSetPlayerID(w, r)

		if err := fn(roomID, playerID, r); err != nil {
			writeRejection(cfg, w, err)
			return
		}

		room, err := svc.Room(roomID, playerID)
		if err != nil {
			// The room may have been deleted by this very call (last leave).
			if errors.Is(err, errRoomNotFound) {
				writeJSON(cfg, w, http.StatusOK, map[string]string{"status": "gone"})
				return
			}
			writeRejection(cfg, w, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, room)
	}
}

// serveWatch upgrades to a websocket and pushes the room's watermark whenever
// a mutation lands, so connected clients re-fetch immediately instead of
// waiting out their poll interval.
func serveWatch(cfg *Config, svc *RoomService) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("roomid")

		mark, _, err := svc.ChangedSince(roomID, 0)
		if err != nil {
			writeRejection(cfg, w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "SERVE: Websocket upgrade failed for %s: %v", roomID, err)
			return
		}
		defer conn.Close()

		marks, cancel := svc.Watch(roomID)
		defer cancel()

		// Drain client frames so closed connections are noticed.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		if err := conn.WriteJSON(map[string]int64{"watermark": mark}); err != nil {
			return
		}

		for {
			select {
			case mark, ok := <-marks:
				if !ok {
					_ = conn.WriteJSON(map[string]string{"status": "gone"})
					return
				}
				if err := conn.WriteJSON(map[string]int64{"watermark": mark}); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}
}

// qrHandler generates a PNG QR code for the current room URL using go-qrcode.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		// We are at /.../:roomid/qr; strip trailing "/qr" to get the room URL.
		path := strings.TrimSuffix(r.URL.Path, "/qr")

		url := scheme + "://" + r.Host + path

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		written, _ := w.Write(png)

		logf(cfg, "SERVE: QR code (%s) for %s to %s in %s",
			humanReadableSize(int64(written)),
			url,
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// registerGame mounts one variant's room engine under the given path.
func registerGame(cfg *Config, path string, svc *RoomService, mux *httprouter.Router) {
	base := cfg.prefix + path + "/rooms"

	mux.POST(base, serveCreateRoom(cfg, svc))

	mux.GET(base+"/:roomid", serveRoom(cfg, svc))

	mux.POST(base+"/:roomid/join", roomVerb(cfg, svc, func(roomID, playerID string, r *http.Request) error {
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil || body.Name == "" {
			return errBadAction
		}
		return svc.Join(roomID, playerID, body.Name)
	}))

	mux.POST(base+"/:roomid/leave", roomVerb(cfg, svc, func(roomID, playerID string, _ *http.Request) error {
		return svc.Leave(roomID, playerID)
	}))

	mux.POST(base+"/:roomid/ready", roomVerb(cfg, svc, func(roomID, playerID string, r *http.Request) error {
		var body struct {
			Ready bool `json:"ready"`
		}
		if err := decodeBody(r, &body); err != nil {
			return err
		}
		return svc.SetReady(roomID, playerID, body.Ready)
	}))

	mux.POST(base+"/:roomid/team", roomVerb(cfg, svc, func(roomID, playerID string, r *http.Request) error {
		var body struct {
			Team string `json:"team"`
			Role Role   `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			return err
		}
		if body.Team == "" {
			return errBadAction
		}
		return svc.JoinTeam(roomID, playerID, body.Team, body.Role)
	}))

	mux.POST(base+"/:roomid/settings", roomVerb(cfg, svc, func(roomID, playerID string, r *http.Request) error {
		var settings Settings
		if err := decodeBody(r, &settings); err != nil {
			return err
		}
		return svc.SetSettings(roomID, playerID, settings)
	}))

	mux.POST(base+"/:roomid/start", roomVerb(cfg, svc, func(roomID, playerID string, _ *http.Request) error {
		return svc.Start(roomID, playerID)
	}))

	mux.POST(base+"/:roomid/reset", roomVerb(cfg, svc, func(roomID, playerID string, _ *http.Request) error {
		return svc.Reset(roomID, playerID)
	}))

	mux.POST(base+"/:roomid/action", roomVerb(cfg, svc, func(roomID, playerID string, r *http.Request) error {
		var action Action
		if err := decodeBody(r, &action); err != nil {
			return err
		}
		return svc.Apply(roomID, playerID, action)
	}))

	mux.GET(base+"/:roomid/watch", serveWatch(cfg, svc))

	mux.GET(base+"/:roomid/qr", qrHandler(cfg))
}
