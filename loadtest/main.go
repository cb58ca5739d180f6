package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	BaseURL   = "http://localhost:8080"
	WSURL     = "ws://localhost:8080/ws"
	PairCount = 250 // each pair is two users messaging each other
	MsgCount  = 20  // messages per user
)

type AuthResponse struct {
	Token  string `json:"access_token"`
	UserID string `json:"user_id"`
}

func main() {
	log.Printf("starting load test: %d users, %d messages each", PairCount*2, MsgCount)
	var wg sync.WaitGroup

	for i := 0; i < PairCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(pairID)
		}(i)
	}

	wg.Wait()
	log.Println("load test complete")
}

func runPair(pairID int) {
	userA := fmt.Sprintf("u_%d_a", pairID)
	userB := fmt.Sprintf("u_%d_b", pairID)
	pass := "password123"

	authA := authenticate(userA, pass)
	authB := authenticate(userB, pass)
	if authA == nil || authB == nil {
		return
	}

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go chatWith(&wsWg, authA, authB.UserID)
	go chatWith(&wsWg, authB, authA.UserID)
	wsWg.Wait()
}

func authenticate(username, password string) *AuthResponse {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})

	// Register may 500 on rerun (already exists); login is what matters.
	http.Post(BaseURL+"/register", "application/json", bytes.NewReader(body))

	resp, err := http.Post(BaseURL+"/login", "application/json", bytes.NewReader(body))
	if err != nil || resp.StatusCode != http.StatusOK {
		log.Printf("login failed for %s", username)
		return nil
	}
	defer resp.Body.Close()

	var auth AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return nil
	}
	return &auth
}

func chatWith(wg *sync.WaitGroup, auth *AuthResponse, peerID string) {
	defer wg.Done()

	conn, _, err := websocket.DefaultDialer.Dial(WSURL+"?token="+auth.Token, nil)
	if err != nil {
		log.Printf("ws dial failed: %v", err)
		return
	}
	defer conn.Close()

	// Drain inbound events so the server never sees us as a slow subscriber.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	subscribe, _ := json.Marshal(map[string]any{"action": "subscribe", "peer": peerID})
	conn.WriteMessage(websocket.TextMessage, subscribe)

	for i := 0; i < MsgCount; i++ {
		typing, _ := json.Marshal(map[string]any{"action": "typing", "peer": peerID, "is_typing": true})
		conn.WriteMessage(websocket.TextMessage, typing)

		sendMessage(auth.Token, peerID, fmt.Sprintf("load message %d", i))
		time.Sleep(50 * time.Millisecond)
	}
}

func sendMessage(token, peerID, content string) {
	body, _ := json.Marshal(map[string]string{
		"recipient_id": peerID,
		"subject":      "load",
		"content":      content,
	})
	req, _ := http.NewRequest(http.MethodPost, BaseURL+"/api/messages", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
