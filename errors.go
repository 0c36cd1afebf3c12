/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Caller-only rejections: reported to the requesting client, never
// broadcast, and never fatal to the process.
var (
	errRoomNotFound   = errors.New("room not found")
	errRoomFull       = errors.New("room is full")
	errRoomInProgress = errors.New("game already in progress")
	errTooManyRooms   = errors.New("room limit reached")
	errDuplicateCode  = errors.New("unable to generate an unused room code")

	errNotEnoughPlayers = errors.New("at least one other player is needed to start")
	errPlayersNotReady  = errors.New("all players must be ready to start")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body>%s</body></html>", body))

	return htmlBody.String()
}
