/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"log"
	"time"
)

// Domain rejections. Any of these leaves the stored room document untouched;
// the caller is expected to re-fetch the room snapshot and resynchronize.
var (
	errRoomNotFound   = errors.New("room not found")
	errPlayerNotFound = errors.New("player not in room")
	errTeamNotFound   = errors.New("team not found")
	errNotHost        = errors.New("only the host may do that")
	errNotCaptain     = errors.New("only the team captain may do that")
	errNotYourTurn    = errors.New("not your turn")
	errWrongPhase     = errors.New("action not valid in the current phase")
	errAlreadyDone    = errors.New("already recorded for this round")
	errBadAction      = errors.New("malformed or unknown action")
	errNotReady       = errors.New("room is not ready to start")
	errGameOver       = errors.New("the game has already ended")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}
